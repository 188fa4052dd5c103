package store

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo keeps items keyed by PK.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	puts  int
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[pk]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts++
	pk := in.Item["PK"].(*types.AttributeValueMemberS).Value
	f.items[pk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoBackendThroughStore(t *testing.T) {
	fake := &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
	s := New(&DynamoBackend{client: fake, tableName: "docs"})
	ctx := context.Background()

	if res := s.LoadPosted(ctx); res.Status != Absent {
		t.Fatalf("expected Absent before any write, got %s", res.Status)
	}

	if err := s.MarkPosted(ctx, "x", "y"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.puts != 1 {
		t.Errorf("expected one PutItem, got %d", fake.puts)
	}

	item := fake.items["DOC#"+DocPosted]
	if enc, ok := item["encoding"].(*types.AttributeValueMemberS); !ok || enc.Value != "zstd" {
		t.Errorf("expected zstd encoding attribute, got %#v", item["encoding"])
	}
	if _, ok := item["body"].(*types.AttributeValueMemberB); !ok {
		t.Errorf("expected binary body, got %#v", item["body"])
	}

	res := s.LoadPosted(ctx)
	if res.Status != Present || !res.Value.Has("x") || !res.Value.Has("y") {
		t.Errorf("unexpected reload: %s %v", res.Status, res.Value.Sorted())
	}
}

func TestDecodeBodyUnknownEncoding(t *testing.T) {
	if _, err := decodeBody(docItem{PK: "DOC#x", Encoding: "lz4", Body: []byte("??")}); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

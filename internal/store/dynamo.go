package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// DynamoDB key layout: one item per document.
const (
	pkPrefix  = "DOC#"
	skCurrent = "CURRENT"

	encodingZstd = "zstd"
)

// dynamoAPI is the subset of the DynamoDB client used here.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// docItem is the stored shape. Body is zstd-compressed JSON: history and
// the location cache grow without bound and DynamoDB caps items at 400 KB.
type docItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Body      []byte `dynamodbav:"body"`
	Encoding  string `dynamodbav:"encoding"`
	RawBytes  int    `dynamodbav:"rawBytes"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// DynamoBackend stores documents in a DynamoDB table with string keys PK/SK.
// A single PutItem replaces the whole document.
type DynamoBackend struct {
	client    dynamoAPI
	tableName string
}

var _ Backend = (*DynamoBackend)(nil)

// NewDynamoBackend creates a DynamoBackend for the given table.
func NewDynamoBackend(client *dynamodb.Client, tableName string) *DynamoBackend {
	return &DynamoBackend{client: client, tableName: tableName}
}

func docPK(name string) string {
	return pkPrefix + name
}

// Read fetches and decompresses a document.
func (d *DynamoBackend) Read(ctx context.Context, name string) ([]byte, error) {
	pk := docPK(name)
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: skCurrent},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s: %w", pk, err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	var item docItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal PK=%s: %w", pk, err)
	}
	return decodeBody(item)
}

// Write compresses and stores a document.
func (d *DynamoBackend) Write(ctx context.Context, name string, data []byte) error {
	item := encodeBody(name, data, time.Now().UTC())
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s: %w", item.PK, err)
	}
	log.Debug().
		Str("doc", name).
		Int("rawBytes", len(data)).
		Int("storedBytes", len(item.Body)).
		Msg("Document written to DynamoDB")
	return nil
}

func encodeBody(name string, data []byte, now time.Time) docItem {
	return docItem{
		PK:        docPK(name),
		SK:        skCurrent,
		Body:      zstdEncoder.EncodeAll(data, nil),
		Encoding:  encodingZstd,
		RawBytes:  len(data),
		UpdatedAt: now.Format(time.RFC3339),
	}
}

func decodeBody(item docItem) ([]byte, error) {
	switch item.Encoding {
	case encodingZstd:
		out, err := zstdDecoder.DecodeAll(item.Body, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode PK=%s: %w", item.PK, err)
		}
		return out, nil
	case "":
		return item.Body, nil
	default:
		return nil, fmt.Errorf("PK=%s: unknown body encoding %q", item.PK, item.Encoding)
	}
}

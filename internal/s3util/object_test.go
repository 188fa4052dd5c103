package s3util

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeObjects struct {
	put     *s3.PutObjectInput
	body    []byte
	deleted []string
	err     error
}

func (f *fakeObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.put = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type fakePresigner struct {
	expires time.Duration
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := &s3.PresignOptions{}
	for _, fn := range optFns {
		fn(opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + *in.Bucket + "/" + *in.Key}, nil
}

func TestPutBytes(t *testing.T) {
	f := &fakeObjects{}
	if err := PutBytes(context.Background(), f, "bkt", "staging/a.jpg", "image/jpeg", []byte("jpeg"), true); err != nil {
		t.Fatalf("PutBytes() error: %v", err)
	}
	if *f.put.Key != "staging/a.jpg" || *f.put.ContentType != "image/jpeg" || string(f.body) != "jpeg" {
		t.Errorf("unexpected put input: %+v", f.put)
	}
	if f.put.Tagging == nil || *f.put.Tagging != projectTag {
		t.Error("expected project tagging")
	}

	f = &fakeObjects{}
	PutBytes(context.Background(), f, "bkt", "k", "image/jpeg", nil, false)
	if f.put.Tagging != nil {
		t.Error("tagging should be omitted when disabled")
	}
}

func TestPutBytesError(t *testing.T) {
	boom := errors.New("denied")
	err := PutBytes(context.Background(), &fakeObjects{err: boom}, "b", "k", "image/jpeg", nil, false)
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "PutObject k") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestDeleteAndPresign(t *testing.T) {
	f := &fakeObjects{}
	if err := Delete(context.Background(), f, "b", "k1"); err != nil || len(f.deleted) != 1 {
		t.Fatalf("Delete() = %v, deleted %v", err, f.deleted)
	}

	p := &fakePresigner{}
	url, err := GeneratePresignedURL(context.Background(), p, "b", "k1", 15*time.Minute)
	if err != nil || url != "https://signed.example/b/k1" {
		t.Errorf("GeneratePresignedURL() = %q, %v", url, err)
	}
	if p.expires != 15*time.Minute {
		t.Errorf("expiry = %v", p.expires)
	}
}

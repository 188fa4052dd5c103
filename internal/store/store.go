// Package store provides durable state for the auto-posting pipeline.
//
// State is a handful of independent JSON documents (schedule config, posted
// ledger, pending queue, history, location cache, publish token). Each is
// read and written as a whole; there are no partial merges and no
// transactions spanning documents. A Backend only moves opaque bytes, so the
// same documents can live on local disk or in DynamoDB.
//
// Loads never fail: a missing or unreadable document yields its default
// value, and the LoadResult status tells callers which case they hit.
package store

import (
	"context"
	"errors"
)

// Document names. The file backend appends ".json".
const (
	DocConfig    = "schedule_config"
	DocPosted    = "posted_photos"
	DocPending   = "pending_posts"
	DocHistory   = "post_history"
	DocLocations = "photo_locations"
	DocToken     = "token"
)

// ErrNotFound is returned by Backend.Read when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Backend reads and writes whole documents by name.
//
// Write must replace the stored document atomically: a reader sees either
// the previous bytes or the new bytes, never a mix.
type Backend interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
}

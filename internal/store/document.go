package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// LoadStatus says how a document load resolved.
type LoadStatus int

const (
	// Present means the document existed and decoded.
	Present LoadStatus = iota
	// Absent means the document has never been written.
	Absent
	// Corrupt means the document exists but could not be read or decoded.
	Corrupt
)

func (s LoadStatus) String() string {
	switch s {
	case Present:
		return "present"
	case Absent:
		return "absent"
	case Corrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("LoadStatus(%d)", int(s))
	}
}

// LoadResult carries a loaded document. Value always holds something usable:
// for Absent and Corrupt it is the document default.
type LoadResult[T any] struct {
	Value  T
	Status LoadStatus
	Err    error // set only when Status is Corrupt
}

// Load reads and decodes the named document. defaults builds the value used
// when the document is absent or corrupt, and is also the decode target so
// fields missing from an older document keep their default.
func Load[T any](ctx context.Context, b Backend, name string, defaults func() T) LoadResult[T] {
	data, err := b.Read(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return LoadResult[T]{Value: defaults(), Status: Absent}
	}
	if err != nil {
		log.Warn().Err(err).Str("doc", name).Msg("Document read failed, using default")
		return LoadResult[T]{Value: defaults(), Status: Corrupt, Err: err}
	}

	v := defaults()
	if err := json.Unmarshal(data, &v); err != nil {
		log.Warn().Err(err).Str("doc", name).Int("bytes", len(data)).Msg("Document is not valid JSON, using default")
		return LoadResult[T]{Value: defaults(), Status: Corrupt, Err: fmt.Errorf("decode %s: %w", name, err)}
	}
	return LoadResult[T]{Value: v, Status: Present}
}

// Save encodes v and overwrites the named document.
func Save[T any](ctx context.Context, b Backend, name string, v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := b.Write(ctx, name, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	log.Trace().Str("doc", name).Int("bytes", len(data)).Msg("Document saved")
	return nil
}

// Package ids generates identifiers for persisted records.
package ids

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// pendingAlphabet avoids characters that need escaping in URL paths.
const pendingAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// PendingPostID returns a short, URL-safe id for a pending post. Pending ids
// appear in approve/reject URLs, so they are kept short.
func PendingPostID() string {
	id, err := gonanoid.Generate(pendingAlphabet, 16)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate pending post ID")
	}
	return "pp-" + id
}

// HistoryID returns a random UUID for a history entry.
func HistoryID() string {
	return uuid.NewString()
}

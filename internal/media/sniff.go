package media

import (
	"github.com/h2non/filetype"
)

// PublishableMimeTypes are the formats the publish target accepts directly.
var PublishableMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// DetectMIME sniffs the MIME type from magic bytes, or returns
// "application/octet-stream" when unknown.
func DetectMIME(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}

// IsPublishable reports whether a MIME type can be published without the
// caller knowing anything else about the file.
func IsPublishable(mimeType string) bool {
	return PublishableMimeTypes[mimeType]
}

// CanTranscode reports whether Compress can decode the format.
func CanTranscode(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/webp":
		return true
	}
	return false
}

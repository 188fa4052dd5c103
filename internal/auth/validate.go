// Package auth checks generative-model credentials at start-up so a bad key
// is reported before the first scheduled tick needs it.
package auth

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/fpang/autopost/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ValidationError reports why the start-up key check failed.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType splits failures into the one that should stop start-up
// and everything else.
type ValidationErrorType int

const (
	// ErrTypeInvalidKey means the API refused the key.
	ErrTypeInvalidKey ValidationErrorType = iota
	// ErrTypeUnavailable means the key could not be checked (network, quota,
	// server errors, empty replies).
	ErrTypeUnavailable
)

// String returns the metric label for the failure type.
func (t ValidationErrorType) String() string {
	if t == ErrTypeInvalidKey {
		return "invalid"
	}
	return "unavailable"
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// rejectCodes are the statuses Gemini answers with for a bad or revoked key.
var rejectCodes = []int{400, 401, 403}

// ValidateAPIKey makes a minimal text-only call with the caption model. It
// returns nil if the key works, or a *ValidationError describing why not.
func ValidateAPIKey(ctx context.Context, client *genai.Client, model string) error {
	log.Debug().Str("model", model).Msg("Validating Gemini API key")

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	var valErr *ValidationError
	switch {
	case err != nil && keyRejected(err):
		valErr = &ValidationError{Type: ErrTypeInvalidKey, Message: "Gemini rejected the API key", Err: err}
	case err != nil:
		valErr = &ValidationError{Type: ErrTypeUnavailable, Message: "could not check the Gemini API key", Err: err}
	case resp == nil || len(resp.Candidates) == 0:
		valErr = &ValidationError{Type: ErrTypeUnavailable, Message: "Gemini returned an empty response"}
	}
	if valErr != nil {
		metrics.APIKeyValidations.WithLabelValues(valErr.Type.String()).Inc()
		return valErr
	}

	metrics.APIKeyValidations.WithLabelValues("success").Inc()
	log.Info().Dur("duration", elapsed).Msg("Gemini API key validated")
	return nil
}

// keyRejected reports whether err is the API refusing the key, either as a
// status code or, when the SDK did not surface one, by its message.
func keyRejected(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return slices.Contains(rejectCodes, apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return slices.Contains(rejectCodes, apiErrPtr.Code)
	}
	return strings.Contains(strings.ToLower(err.Error()), "api key not valid")
}

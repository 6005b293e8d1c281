package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingAPIKey is returned before any network call when no key is configured.
	ErrMissingAPIKey = errors.New("api key is not configured")
	// ErrUnknownProvider is returned for a provider value outside the known set.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrEmptyWord is returned when the submitted word is blank.
	ErrEmptyWord = errors.New("word is empty")
	// ErrUnsupported marks an operation the provider cannot perform. It is a
	// capability gap, not a failure, and is never retried.
	ErrUnsupported = errors.New("provider does not support this operation")
)

// ConfigurationError blocks a request before any network attempt
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// AnalysisError wraps any provider or parse failure of the text phase
type AnalysisError struct {
	Word string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze %q: %v", e.Word, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// ParseError is returned when model output is not valid JSON or lacks required fields
type ParseError struct {
	Missing []string
	Err     error
}

func (e *ParseError) Error() string {
	if len(e.Missing) > 0 {
		return "parse analysis: missing required fields: " + strings.Join(e.Missing, ", ")
	}
	return fmt.Sprintf("parse analysis: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// MediaErrorKind classifies a failed image or audio call
type MediaErrorKind int

const (
	MediaErrorUnknown MediaErrorKind = iota
	MediaErrorRateLimited
	MediaErrorContentPolicy
	MediaErrorPermissionDenied
)

// Messages shown in a failed image slot
const (
	MsgRateLimited      = "rate limited, please retry"
	MsgContentPolicy    = "image blocked by content policy (400), try regenerating"
	MsgPermissionDenied = "permission denied (403), check your API key"
	MsgMediaFailed      = "generation failed, tap to retry"
	MsgImageUnsupported = "provider does not support image generation"
)

// ClassifyMediaError maps an error to a kind by the status code embedded in its message.
func ClassifyMediaError(err error) MediaErrorKind {
	if err == nil {
		return MediaErrorUnknown
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"):
		return MediaErrorRateLimited
	case strings.Contains(msg, "400"):
		return MediaErrorContentPolicy
	case strings.Contains(msg, "403"):
		return MediaErrorPermissionDenied
	default:
		return MediaErrorUnknown
	}
}

// FormatMediaError returns the human-readable slot message for err.
func FormatMediaError(err error) string {
	if errors.Is(err, ErrUnsupported) {
		return MsgImageUnsupported
	}
	switch ClassifyMediaError(err) {
	case MediaErrorRateLimited:
		return MsgRateLimited
	case MediaErrorContentPolicy:
		return MsgContentPolicy
	case MediaErrorPermissionDenied:
		return MsgPermissionDenied
	default:
		return MsgMediaFailed
	}
}

package extraction

import (
	"fmt"
	"strings"
	"time"
)

// ErrorType is the category reported to clients in the error envelope.
type ErrorType string

const (
	ErrExtraction    ErrorType = "extraction_error"
	ErrPrivateVideo  ErrorType = "private_video"
	ErrAgeRestricted ErrorType = "age_restricted"
	ErrUnsupported   ErrorType = "unsupported_site"
	ErrUnavailable   ErrorType = "unavailable"
	ErrCopyright     ErrorType = "copyright"
	ErrTimeout       ErrorType = "timeout"
	ErrGeoRestricted ErrorType = "geo_restricted"
)

type classifyRule struct {
	typ     ErrorType
	needles []string
}

// Order matters: the first matching rule wins.
var classifyRules = []classifyRule{
	{ErrPrivateVideo, []string{"private"}},
	{ErrAgeRestricted, []string{"age", "sign in", "login"}},
	{ErrUnsupported, []string{"not supported", "unsupported"}},
	{ErrUnavailable, []string{"unavailable", "removed"}},
	{ErrCopyright, []string{"copyright"}},
	{ErrTimeout, []string{"timed out", "timeout"}},
	{ErrGeoRestricted, []string{"geo", "country"}},
}

// Classify maps an engine error message onto an ErrorType.
func Classify(msg string) ErrorType {
	lower := strings.ToLower(msg)
	for _, rule := range classifyRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.typ
			}
		}
	}
	return ErrExtraction
}

// ExtractionError is an engine-reported failure. Message is the cleaned
// engine text and is safe to show to clients.
type ExtractionError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction: %s: %s", e.Type, e.Message)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// TimeoutError means the engine did not answer within the configured wait.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("extraction: timed out after %s", e.After)
}

// EmptyResultError means the engine returned nothing usable: no document,
// an empty playlist, or an unavailable first entry.
type EmptyResultError struct {
	Reason string
}

func (e *EmptyResultError) Error() string {
	return "extraction: " + e.Reason
}

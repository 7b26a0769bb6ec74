package common

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"thirdcoast.systems/anyvid/internal/extraction"
	"thirdcoast.systems/anyvid/internal/mux"
	"thirdcoast.systems/anyvid/internal/proxy"
	"thirdcoast.systems/anyvid/pkg/formats"
)

// Error types reported in the envelope beside the extraction categories.
const (
	TypeInvalidURL = "invalid_url"
	TypeUpstream   = "upstream_error"
	TypeServer     = "server_error"
	TypeRateLimit  = "rate_limit"
	TypeTimeout    = string(extraction.ErrTimeout)
)

const genericMessage = "An unexpected error occurred. Please try again."

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// APIError is an error that knows how it is rendered to clients. Message is
// shown verbatim; Err is only logged.
type APIError struct {
	Status  int
	Type    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %s: %v", e.Status, e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Type, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// ErrInvalidURL returns a 400 invalid_url error.
func ErrInvalidURL(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Type: TypeInvalidURL, Message: msg}
}

// ErrInternal returns a 500 with the generic message; err is logged.
func ErrInternal(msg string, err error) *APIError {
	if msg == "" {
		msg = genericMessage
	}
	return &APIError{Status: http.StatusInternalServerError, Type: TypeServer, Message: msg, Err: err}
}

// ErrRateLimited returns a 429 rate_limit error.
func ErrRateLimited() *APIError {
	return &APIError{
		Status:  http.StatusTooManyRequests,
		Type:    TypeRateLimit,
		Message: "Rate limit exceeded. Please try again later.",
	}
}

// ToAPIError maps any error returned by a handler onto the envelope.
func ToAPIError(err error) *APIError {
	var (
		apiErr      *APIError
		extErr      *extraction.ExtractionError
		extTimeout  *extraction.TimeoutError
		emptyErr    *extraction.EmptyResultError
		upErr       *proxy.UpstreamError
		proxTimeout *proxy.TimeoutError
		muxErr      *mux.Error
		validErrs   validator.ValidationErrors
		httpErr     *echo.HTTPError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &extErr):
		return &APIError{Status: http.StatusBadRequest, Type: string(extErr.Type), Message: extErr.Message, Err: err}
	case errors.As(err, &extTimeout):
		return &APIError{
			Status:  http.StatusGatewayTimeout,
			Type:    TypeTimeout,
			Message: "Request timed out. The video might be too large or the site is slow.",
			Err:     err,
		}
	case errors.As(err, &emptyErr):
		return &APIError{Status: http.StatusBadRequest, Type: string(extraction.ErrExtraction), Message: emptyErr.Reason, Err: err}
	case errors.Is(err, formats.ErrInvalidTarget), errors.Is(err, proxy.ErrInvalidURL):
		return &APIError{Status: http.StatusBadRequest, Type: TypeInvalidURL, Message: "Invalid download URL.", Err: err}
	case errors.As(err, &proxTimeout):
		return &APIError{
			Status:  http.StatusGatewayTimeout,
			Type:    TypeTimeout,
			Message: "Download timed out. The source server is not responding.",
			Err:     err,
		}
	case errors.As(err, &upErr):
		msg := "Failed to connect to the download source."
		if upErr.Status != 0 {
			msg = "Failed to fetch file from source. The link may have expired."
		}
		return &APIError{Status: http.StatusBadGateway, Type: TypeUpstream, Message: msg, Err: err}
	case errors.As(err, &muxErr):
		return ErrInternal("Failed to start the merged download.", err)
	case errors.As(err, &validErrs):
		return &APIError{Status: http.StatusBadRequest, Type: TypeInvalidURL, Message: validationMessage(validErrs), Err: err}
	case errors.As(err, &httpErr):
		return fromHTTPError(httpErr)
	default:
		return ErrInternal("", err)
	}
}

func fromHTTPError(he *echo.HTTPError) *APIError {
	msg := http.StatusText(he.Code)
	if s, ok := he.Message.(string); ok && s != "" {
		msg = s
	}
	typ := TypeServer
	switch {
	case he.Code == http.StatusTooManyRequests:
		typ = TypeRateLimit
	case he.Code < http.StatusInternalServerError:
		typ = TypeInvalidURL
	}
	return &APIError{Status: he.Code, Type: typ, Message: msg, Err: he.Internal}
}

func validationMessage(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Invalid request."
	}
	fe := errs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// HTTPErrorHandler renders every error as an ErrorResponse. Server faults
// are logged with their cause; clients only see the generic message.
func HTTPErrorHandler(err error, c echo.Context) {
	apiErr := ToAPIError(err)

	if apiErr.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
			"status", apiErr.Status,
			"error", err,
		)
	}

	if c.Response().Committed {
		return
	}

	body := ErrorResponse{Success: false, Error: apiErr.Message, ErrorType: apiErr.Type}
	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(apiErr.Status)
	} else {
		werr = c.JSON(apiErr.Status, body)
	}
	if werr != nil {
		slog.Warn("failed to write error response", "error", werr)
	}
}

package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"thirdcoast.systems/anyvid/internal/extraction"
	"thirdcoast.systems/anyvid/internal/mux"
	"thirdcoast.systems/anyvid/internal/proxy"
	"thirdcoast.systems/anyvid/pkg/formats"
)

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"extraction", &extraction.ExtractionError{Type: extraction.ErrGeoRestricted, Message: "not in your country"}, 400, "geo_restricted"},
		{"extraction timeout", &extraction.TimeoutError{After: time.Second}, 504, TypeTimeout},
		{"empty result", &extraction.EmptyResultError{Reason: "Playlist is empty"}, 400, "extraction_error"},
		{"invalid target", fmt.Errorf("%w: bad", formats.ErrInvalidTarget), 400, TypeInvalidURL},
		{"upstream status", &proxy.UpstreamError{Status: 403}, 502, TypeUpstream},
		{"upstream dial", &proxy.UpstreamError{Err: errors.New("refused")}, 502, TypeUpstream},
		{"proxy timeout", &proxy.TimeoutError{Phase: "read", After: time.Second}, 504, TypeTimeout},
		{"mux", &mux.Error{Stage: mux.StageMuxer, Err: errors.New("missing")}, 500, TypeServer},
		{"echo not found", echo.ErrNotFound, 404, TypeInvalidURL},
		{"echo too large", echo.ErrStatusRequestEntityTooLarge, 413, TypeInvalidURL},
		{"unknown", errors.New("boom"), 500, TypeServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAPIError(tt.err)
			require.Equal(t, tt.status, got.Status)
			require.Equal(t, tt.typ, got.Type)
			require.NotEmpty(t, got.Message)
		})
	}
}

func TestHTTPErrorHandler_HidesServerDetail(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/info", nil), rec)

	HTTPErrorHandler(errors.New("pq: password authentication failed"), c)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"success":false,"error":"An unexpected error occurred. Please try again.","error_type":"server_error"}`, rec.Body.String())
}

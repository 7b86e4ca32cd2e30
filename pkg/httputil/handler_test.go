package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rx3lixir/bookclub/pkg/apperr"
	"github.com/rx3lixir/bookclub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandler_DomainErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not found",
			err:        apperr.NotFound("ROOM_NOT_FOUND", "room not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   "ROOM_NOT_FOUND",
		},
		{
			name:       "wrapped conflict",
			err:        fmt.Errorf("join: %w", apperr.Conflict("CAPACITY_FULL", "room is full")),
			wantStatus: http.StatusConflict,
			wantCode:   "CAPACITY_FULL",
		},
		{
			name:       "forbidden",
			err:        apperr.Forbidden("FORBIDDEN", "host only"),
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "plain error is internal",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Handler(func(w http.ResponseWriter, r *http.Request) error {
				return tt.err
			}, logger.Discard())

			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			if tt.wantCode == "" {
				assert.NotContains(t, body, "code")
			} else {
				assert.Equal(t, tt.wantCode, body["code"])
			}
		})
	}
}

func TestHandler_HTTPErrorDetails(t *testing.T) {
	h := Handler(func(w http.ResponseWriter, r *http.Request) error {
		return BadRequest("bad", map[string]string{"field": "topic"})
	}, logger.Discard())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "bad", body["error"])
	assert.Equal(t, map[string]any{"field": "topic"}, body["details"])
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=20&after=abc", nil)

	v, err := QueryInt(r, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	v, err = QueryInt(r, "missing", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, v)

	_, err = QueryInt64(r, "after", 0)
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Topic string `json:"topic"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"topic":"Dune"}`},
		{name: "empty body", body: "", wantErr: "Request body is required"},
		{name: "unknown field", body: `{"title":"Dune"}`, wantErr: "Invalid JSON format"},
		{name: "broken json", body: `{"topic":`, wantErr: "Invalid JSON format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var p payload
			err := DecodeJSON(r, &p)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Dune", p.Topic)
				return
			}

			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, http.StatusBadRequest, httpErr.Status)
			assert.Equal(t, tt.wantErr, httpErr.Message)
		})
	}
}

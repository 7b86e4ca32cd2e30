package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxBodyBytes caps JSON request bodies; the largest is a room with its quiz
const maxBodyBytes = 64 << 10

// DecodeJSON reads one JSON object into target, rejecting unknown fields
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return BadRequest("Request body is required")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return BadRequest("Request body is required")
		}
		return BadRequest("Invalid JSON format", map[string]string{
			"parse_error": err.Error(),
		})
	}

	return nil
}

// ParseUUID reads a uuid URL parameter such as roomID
func ParseUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, BadRequest(fmt.Sprintf("%s is required", paramName))
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, BadRequest(fmt.Sprintf("Invalid %s", paramName))
	}
	return id, nil
}

// QueryInt reads an optional integer query parameter like limit
func QueryInt(r *http.Request, name string, fallback int) (int, error) {
	v, err := QueryInt64(r, name, int64(fallback))
	return int(v), err
}

// QueryInt64 reads an optional 64-bit query parameter like the after cursor
func QueryInt64(r *http.Request, name string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, BadRequest(fmt.Sprintf("Invalid %s", name))
	}
	return v, nil
}

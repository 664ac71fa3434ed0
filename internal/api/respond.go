package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nhle/studysync/internal/calendar"
	"github.com/nhle/studysync/internal/source"
	"github.com/nhle/studysync/internal/store"
	lmssync "github.com/nhle/studysync/internal/sync"
	"github.com/nhle/studysync/internal/tasks"
)

// Error codes returned in the error envelope.
const (
	CodeBadRequest     = "bad_request"
	CodeValidation     = "validation_error"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeNotConnected   = "not_connected"
	CodeSyncDisabled   = "sync_disabled"
	CodeUnauthorized   = "unauthorized"
	CodeRemoteRejected = "remote_rejected"
	CodeRemoteError    = "remote_error"
	CodeInternal       = "internal_error"
	CodeUnavailable    = "unavailable"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DataResponse wraps every successful payload.
type DataResponse struct {
	Data any `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, DataResponse{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// statusFor classifies err into an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, tasks.ErrInvalid), errors.Is(err, errBadInput),
		errors.Is(err, lmssync.ErrMissingCredential):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, store.ErrAlreadySynced):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, lmssync.ErrNotConnected), errors.Is(err, calendar.ErrNotConnected):
		return http.StatusConflict, CodeNotConnected
	case errors.Is(err, lmssync.ErrSyncDisabled):
		return http.StatusConflict, CodeSyncDisabled
	case source.IsUnauthorized(err):
		return http.StatusUnprocessableEntity, CodeRemoteRejected
	}
	if _, ok := source.AsRemoteError(err); ok {
		return http.StatusBadGateway, CodeRemoteError
	}
	return http.StatusInternalServerError, CodeInternal
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		msg = "an unexpected error occurred"
	}
	writeError(w, status, code, msg)
}

// errBadInput marks malformed request bodies and parameters.
var errBadInput = errors.New("bad input")

const maxBody = 1 << 20

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadInput, err)
	}
	return nil
}

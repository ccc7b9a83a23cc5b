package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/gorilla/schema"

	"relief-backend/pkg/api"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(code int, err error) error {
	return &codedError{err: err, code: code}
}

func CodedErrorf(code int, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), code: code}
}

func ParseRequest[T any](r *http.Request) (T, error) {
	var data T
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		slog.Error("error parsing request body", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request body")
	}
	return data, nil
}

func ParseRequestQueryParams[T any](r *http.Request) (T, error) {
	var data T
	if err := r.ParseForm(); err != nil {
		slog.Error("error parsing form", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	err := schema.NewDecoder().Decode(&data, r.Form)
	if err != nil {
		slog.Error("error decoding query params", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	return data, nil
}

// RestHandler wraps a handler returning (payload, error) into JSON over HTTP.
// Errors are written as {"message": ...} with the coded status, defaulting to
// 500 for anything uncoded.
func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			WriteErrorResponse(w, err)
			return
		}

		if res == nil {
			res = struct{}{}
		}

		WriteJsonResponse(w, res)
	}
}

// NoContentHandler is RestHandler for endpoints whose success is a bare 204.
func NoContentHandler(handler func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := handler(r); err != nil {
			WriteErrorResponse(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// RasterHandler serves a handler's bytes as a TIFF attachment.
func RasterHandler(handler func(r *http.Request) ([]byte, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := handler(r)
		if err != nil {
			WriteErrorResponse(w, err)
			return
		}

		w.Header().Set("Content-Type", "image/tiff")
		if _, err := w.Write(data); err != nil {
			slog.Error("error writing raster response", "error", err)
		}
	}
}

func WriteErrorResponse(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var cerr *codedError
	if errors.As(err, &cerr) {
		code = cerr.code
	} else {
		slog.Error("recieved non coded error from endpoint", "error", err)
	}
	if code == http.StatusInternalServerError {
		slog.Error("internal server error received in endpoint", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if encErr := json.NewEncoder(w).Encode(api.ErrorResponse{Message: err.Error()}); encErr != nil {
		slog.Error("error serializing error response", "error", encErr)
	}
}

func WriteJsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
		http.Error(w, fmt.Sprintf("error serializing response body: %v", err), http.StatusInternalServerError)
	}
}

var jobIdPattern = regexp.MustCompile(`^[\w-]+$`)

// validateJobId keeps identifiers safe for use in artifact keys and scratch
// directory names.
func validateJobId(id string) error {
	if id == "" {
		return CodedErrorf(http.StatusBadRequest, "missing job id")
	}
	if !jobIdPattern.MatchString(id) {
		return CodedErrorf(http.StatusBadRequest, "invalid job id '%s': only alphanumeric characters, underscores, and hyphens are allowed", id)
	}
	return nil
}

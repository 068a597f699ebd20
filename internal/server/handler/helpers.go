package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON marshals v and writes it with status. Marshal failures become a
// plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRecord), errors.Is(err, domain.ErrInvalidRatingInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNonMonotonicUpdate),
		errors.Is(err, domain.ErrMatchAlreadyFinished),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs server-side failures and answers with the mapped
// status. Internal details are not echoed for 5xx answers.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", domain.ErrInvalidRecord)
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	return nil
}

// parseListOpts reads limit (default 50, max 500), offset, since and until
// (RFC 3339) from the query string.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = n
	}
	if limit > 500 {
		limit = 500
	}
	offset := 0
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		offset = n
	}

	opts := domain.ListOpts{Limit: limit, Offset: offset}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		opts.Since = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		opts.Until = &t
	}
	return opts
}

func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}

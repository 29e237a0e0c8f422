// ABOUTME: Small request-parsing helpers shared by the chi handlers:
// ABOUTME: strict JSON body decoding and UUID path parameters.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// decodeJSON reads and decodes the request body into v. Unknown fields and
// trailing garbage are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// uuidParam parses a chi URL parameter as a UUID.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return id, nil
}

// Keyset pagination cursors encode (created_at, id) of the last row seen.
// Format: <unix-nanos>_<uuid>.

func formatCursor(createdAt time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%d_%s", createdAt.UnixNano(), id)
}

func parseCursor(s string) (time.Time, uuid.UUID, error) {
	ts, idStr, ok := strings.Cut(s, "_")
	if !ok {
		return time.Time{}, uuid.Nil, errors.New("malformed cursor")
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor: %w", err)
	}
	return time.Unix(0, nanos).UTC(), id, nil
}

// isUniqueViolation returns true if err (or any wrapped error) is a Postgres
// unique constraint violation. Handlers use it to tell "row already exists"
// apart from genuine database failures.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// writeBadRequest writes a 400 with the VALIDATION code.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, "VALIDATION", message)
}

// writeNotFound writes a 404 with the NOT_FOUND code.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", message)
}

// writeConflict writes a 409 with the CONFLICT code.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, "CONFLICT", message)
}

// writeInternal logs err with the request's correlation ID and writes a 500.
func writeInternal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if rc := RequestContextFrom(r.Context()); rc != nil {
		rc.Log.ErrorContext(r.Context(), msg, "error", err)
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

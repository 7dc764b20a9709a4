package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"timecard/internal/auth"
	"timecard/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeMessage writes {key: msg}. Auth routes use "message", the rest
// "error".
func writeMessage(w http.ResponseWriter, status int, key, msg string) {
	writeJSON(w, status, map[string]string{key: msg})
}

// writeError maps use case errors to status codes. Unexpected errors are
// logged and hidden from the client.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, key string, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeMessage(w, http.StatusBadRequest, key, ve.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, key, "Unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		msg := "Not found"
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			msg = nf.Message
		}
		writeMessage(w, http.StatusNotFound, key, msg)
	case errors.Is(err, domain.ErrConflict):
		writeMessage(w, http.StatusConflict, key, "Conflict")
	default:
		a.log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, key, "Internal server error")
	}
}

// decodeJSON reads a JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return &domain.ValidationError{Message: "Invalid request"}
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		return &domain.ValidationError{Message: "Invalid request"}
	}
	return nil
}

func userID(r *http.Request) int64 {
	id, _ := auth.UserID(r.Context())
	return id
}

// Timestamp accepts RFC3339 or a naive 2006-01-02T15:04:05 value read as
// UTC, and always encodes as domain.TimestampLayout.
type Timestamp struct {
	time.Time
}

const naiveLayout = "2006-01-02T15:04:05"

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if v, err := time.Parse(time.RFC3339, s); err == nil {
		t.Time = v.UTC()
		return nil
	}
	if v, err := time.ParseInLocation(naiveLayout, s, time.UTC); err == nil {
		t.Time = v
		return nil
	}
	if v, err := time.ParseInLocation(naiveLayout+".999999", s, time.UTC); err == nil {
		t.Time = v
		return nil
	}
	return &domain.ValidationError{Message: "timestamps must be RFC3339 or YYYY-MM-DDTHH:MM:SS"}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(domain.TimestampLayout))
}

func timestamp(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	return &Timestamp{Time: *t}
}

func timePtr(t *Timestamp) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

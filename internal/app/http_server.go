package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"timecard/internal/auth"
)

// HTTPServer returns a configured http.Server exposing the JSON API under
// /api. Call ListenAndServe on the returned server in a goroutine and
// Shutdown it on exit.
func (a *App) HTTPServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.log.Info("http server configured", slog.String("addr", addr))
	return srv
}

// Handler builds the routed handler with CORS and request logging.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	access := func(h http.HandlerFunc) http.Handler { return auth.Middleware(a.tokens, auth.AccessToken)(h) }
	refresh := func(h http.HandlerFunc) http.Handler { return auth.Middleware(a.tokens, auth.RefreshToken)(h) }

	mux.HandleFunc("GET /healthz", a.healthz)

	mux.HandleFunc("POST /api/register", a.register)
	mux.HandleFunc("POST /api/login", a.login)
	mux.Handle("POST /api/refresh", refresh(a.refresh))

	mux.Handle("GET /api/timerecords", access(a.listRecords))
	mux.Handle("POST /api/timerecords", access(a.createRecord))
	mux.Handle("GET /api/timerecords/{id}", access(a.getRecord))
	mux.Handle("PUT /api/timerecords/{id}", access(a.updateRecord))
	mux.Handle("DELETE /api/timerecords/{id}", access(a.deleteRecord))
	mux.Handle("POST /api/timerecords/{id}/stop", access(a.stopRecord))
	mux.Handle("GET /api/recordattributes", access(a.listAttributes))
	mux.Handle("PUT /api/recordattributes/{id}", access(a.updateAttribute))

	mux.Handle("GET /api/jira/connections", access(a.listConnections))
	mux.Handle("POST /api/jira/connections", access(a.createConnection))
	mux.Handle("PUT /api/jira/connections/{id}", access(a.updateConnection))
	mux.Handle("DELETE /api/jira/connections/{id}", access(a.deleteConnection))
	mux.Handle("POST /api/jira/connections/{id}/test", access(a.testConnection))
	mux.Handle("GET /api/jira/issues/search", access(a.searchIssues))
	mux.Handle("GET /api/jira/issues/assigned", access(a.assignedIssues))
	mux.Handle("GET /api/jira/issues/{key}", access(a.getIssue))
	mux.Handle("POST /api/jira/sync/record/{id}", access(a.syncRecord))
	mux.Handle("POST /api/jira/sync/bulk", access(a.bulkSync))
	mux.Handle("GET /api/jira/sync/history", access(a.syncHistory))
	mux.Handle("DELETE /api/jira/worklog/{id}", access(a.deleteWorklog))

	return loggingMiddleware(a.log, corsMiddleware(a.cors, mux))
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := a.store.Ping(ctx); err != nil {
		a.log.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware provides basic request logging.
func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("dur", time.Since(start)),
		)
	})
}

// corsMiddleware answers preflight requests and sets the allow-origin
// header for the configured origins. "*" allows any origin.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	wildcard := slices.Contains(origins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (wildcard || slices.Contains(origins, origin)) {
			if wildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseStartHTTP parses a start boundary that may be RFC3339 or YYYY-MM-DD.
// An empty value means no bound.
func parseStartHTTP(val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if d, err := time.Parse("2006-01-02", val); err == nil {
		t := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		return &t, nil
	}
	return nil, errors.New("start_date must be RFC3339 or YYYY-MM-DD")
}

// parseEndHTTP parses an end boundary that may be RFC3339 or YYYY-MM-DD.
// Date-only form is treated as inclusive by converting to next-day 00:00 UTC.
func parseEndHTTP(val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if d, err := time.Parse("2006-01-02", val); err == nil {
		next := d.Add(24 * time.Hour)
		t := time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC)
		return &t, nil
	}
	return nil, errors.New("end_date must be RFC3339 or YYYY-MM-DD")
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

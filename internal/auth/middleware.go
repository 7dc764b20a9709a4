package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const contextKeyUser contextKey = "user"

// WithUserID stores the authenticated user id on ctx.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, contextKeyUser, id)
}

// UserID returns the authenticated user id, if any.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKeyUser).(int64)
	return id, ok
}

// Middleware requires a bearer token of the given type.
func Middleware(issuer *Issuer, want TokenType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "Missing Authorization Header")
				return
			}
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "Missing 'Bearer' type in 'Authorization' header")
				return
			}
			id, err := issuer.Parse(strings.TrimPrefix(header, "Bearer "), want)
			if err != nil {
				if errors.Is(err, ErrWrongTokenType) {
					unauthorized(w, "Only "+string(want)+" tokens are allowed")
					return
				}
				unauthorized(w, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"msg": msg})
}

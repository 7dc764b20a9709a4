package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	h, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "hunter2"))
	assert.False(t, CheckPassword(h, "hunter3"))
	assert.False(t, CheckPassword("not-a-hash", "hunter2"))
}

func TestIssuer_RoundTrip(t *testing.T) {
	iss := NewIssuer("s3cret", time.Minute, time.Hour)
	pair, err := iss.Pair(42)
	require.NoError(t, err)

	id, err := iss.Parse(pair.AccessToken, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	id, err = iss.Parse(pair.RefreshToken, RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestIssuer_WrongType(t *testing.T) {
	iss := NewIssuer("s3cret", time.Minute, time.Hour)
	pair, err := iss.Pair(1)
	require.NoError(t, err)

	_, err = iss.Parse(pair.RefreshToken, AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestIssuer_Expired(t *testing.T) {
	iss := NewIssuer("s3cret", time.Minute, time.Hour)
	iss.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	tok, err := iss.Issue(1, AccessToken)
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Parse(tok, AccessToken)
	assert.Error(t, err)
}

func TestIssuer_WrongSecret(t *testing.T) {
	tok, err := NewIssuer("a", time.Minute, time.Hour).Issue(1, AccessToken)
	require.NoError(t, err)
	_, err = NewIssuer("b", time.Minute, time.Hour).Parse(tok, AccessToken)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	iss := NewIssuer("s3cret", time.Minute, time.Hour)
	pair, err := iss.Pair(7)
	require.NoError(t, err)

	var seen int64
	h := Middleware(iss, AccessToken)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"refresh token", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"access token", "Bearer " + pair.AccessToken, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
	assert.Equal(t, int64(7), seen)
}

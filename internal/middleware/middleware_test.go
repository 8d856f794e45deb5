package middleware

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/baharkarakas/coinmatch/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whoami(w http.ResponseWriter, r *http.Request) {
	u, ok := FromCtx(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	_, _ = w.Write([]byte(u.UserID + "/" + u.Role))
}

func TestAuth(t *testing.T) {
	tm := auth.NewTokenManager("a", "r", "coinmatch", time.Minute, time.Hour)
	access, refresh, _, err := tm.GeneratePair("u1", "tutor")
	require.NoError(t, err)

	cases := []struct {
		name   string
		env    string
		header string
		status int
		body   string
	}{
		{"missing", "dev", "", http.StatusUnauthorized, ""},
		{"jwt", "prod", "Bearer " + access, http.StatusOK, "u1/tutor"},
		{"lowercase scheme", "prod", "bearer " + access, http.StatusOK, "u1/tutor"},
		{"refresh rejected", "prod", "Bearer " + refresh, http.StatusUnauthorized, ""},
		{"dev token", "dev", "Bearer dev-s9", http.StatusOK, "s9/"},
		{"dev token outside dev", "prod", "Bearer dev-s9", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAuthMiddleware(tm, tc.env).Auth(http.HandlerFunc(whoami))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	h := RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000"))
}

func TestRateLimit_DropsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLimiter(2, func() time.Time { return now })

	for i := 0; i < 50; i++ {
		assert.True(t, l.allow(fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.Len(t, l.buckets, 50)

	now = now.Add(l.idleAfter())
	assert.True(t, l.allow("10.0.1.1"))
	assert.Len(t, l.buckets, 1)

	// a fresh bucket still limits
	assert.True(t, l.allow("10.0.1.1"))
	assert.False(t, l.allow("10.0.1.1"))
}

func TestRequestIDAndRecover(t *testing.T) {
	h := RequestID(Recover(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

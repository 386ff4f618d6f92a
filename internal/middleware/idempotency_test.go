package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheResponseSkipsServerErrors(t *testing.T) {
	// A nil client would panic if the redis write path were reached.
	m := NewIdempotencyMiddleware(nil, time.Minute)

	cw := newCaptureWriter(httptest.NewRecorder(), 1<<20)
	cw.WriteHeader(http.StatusInternalServerError)
	_, _ = cw.Write([]byte(`{"error":"Internal server error"}`))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.NoError(t, m.cacheResponse(req, "idempotency:data:POST:k", cw))
}

func TestIdempotencyMiddleware_ServerErrorIsNotReplayed(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skip("Redis not available")
	}

	mw := NewIdempotencyMiddleware(rdb, 10*time.Second)

	// First attempt fails transiently, the retry succeeds.
	var calls int32
	flaky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"in_progress"}`))
	})

	wrapped := mw.Require(flaky)
	key := uuid.NewString()

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Idempotency-Key", key)
	wrapped.ServeHTTP(first, req)
	require.Equal(t, http.StatusInternalServerError, first.Code)

	// The retry with the same key must reach the handler instead of
	// replaying the cached failure.
	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Idempotency-Key", key)
	wrapped.ServeHTTP(second, req)
	assert.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// A third attempt replays the stored success.
	third := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Idempotency-Key", key)
	wrapped.ServeHTTP(third, req)
	assert.Equal(t, http.StatusAccepted, third.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

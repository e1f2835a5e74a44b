package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestIdempotencyMiddleware_ConcurrentRequests(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skip("Redis not available")
	}

	mw := NewIdempotencyMiddleware(rdb, 10*time.Second)

	// Handler that sleeps 2 seconds
	slowHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	})

	wrapped := mw.Require(slowHandler)

	var wg sync.WaitGroup
	wg.Add(2)

	// First request
	go func() {
		defer wg.Done()
		req := httptest.NewRequest("POST", "/", nil)
		req.Header.Set("Idempotency-Key", "test-key-1")
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}()

	// Second request (starts 100ms later)
	go func() {
		defer wg.Done()
		time.Sleep(100 * time.Millisecond)
		req := httptest.NewRequest("POST", "/", nil)
		req.Header.Set("Idempotency-Key", "test-key-1")
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)
		// Should also be OK (replayed)
		assert.Equal(t, http.StatusOK, w.Code)
	}()

	wg.Wait()
}

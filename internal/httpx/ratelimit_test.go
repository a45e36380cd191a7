package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("allows up to the burst", func(t *testing.T) {
		rl := NewRateLimiter(1, 3)

		for i := 0; i < 3; i++ {
			if !rl.Allow("10.0.0.1") {
				t.Fatalf("request %d denied within burst", i+1)
			}
		}
		if rl.Allow("10.0.0.1") {
			t.Error("request beyond burst was allowed")
		}
	})

	t.Run("tracks clients independently", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)

		if !rl.Allow("10.0.0.1") {
			t.Fatal("first client denied")
		}
		if rl.Allow("10.0.0.1") {
			t.Error("first client allowed beyond burst")
		}
		if !rl.Allow("10.0.0.2") {
			t.Error("second client denied by first client's bucket")
		}
	})
}

func TestRateLimit_Middleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("answers 429 once the bucket is empty", func(t *testing.T) {
		handler := RateLimit(NewRateLimiter(1, 2))(okHandler)

		statuses := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest("GET", "/l/abcde", nil)
			req.RemoteAddr = "10.0.0.1:52311"
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			statuses = append(statuses, rr.Code)
		}

		if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
			t.Errorf("statuses within burst = %v, want 200s", statuses[:2])
		}
		if statuses[2] != http.StatusTooManyRequests {
			t.Errorf("status beyond burst = %d, want 429", statuses[2])
		}
	})

	t.Run("keys on host, not port", func(t *testing.T) {
		handler := RateLimit(NewRateLimiter(1, 1))(okHandler)

		first := httptest.NewRequest("GET", "/l/abcde", nil)
		first.RemoteAddr = "10.0.0.1:52311"
		handler.ServeHTTP(httptest.NewRecorder(), first)

		// Same host on a new port shares the bucket.
		second := httptest.NewRequest("GET", "/l/abcde", nil)
		second.RemoteAddr = "10.0.0.1:52312"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, second)

		if rr.Code != http.StatusTooManyRequests {
			t.Errorf("status = %d, want 429", rr.Code)
		}
	})

	t.Run("nil limiter disables limiting", func(t *testing.T) {
		handler := RateLimit(nil)(okHandler)

		for i := 0; i < 10; i++ {
			req := httptest.NewRequest("GET", "/l/abcde", nil)
			req.RemoteAddr = "10.0.0.1:52311"
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("request %d status = %d, want 200", i+1, rr.Code)
			}
		}
	})
}

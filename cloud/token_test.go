package cloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func tokenServer(t *testing.T, fetches *int32, fail *int32, lifetime int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(fetches, 1)
		if atomic.LoadInt32(fail) != 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		// Slow response widens the window for duplicate fetches
		time.Sleep(50 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-123",
			"expires_in":   lifetime,
		})
	}))
}

func TestTokenConcurrentMissesCoalesce(t *testing.T) {
	var fetches, fail int32
	srv := tokenServer(t, &fetches, &fail, 7200)
	defer srv.Close()

	tc := NewTokenCache(srv.URL, "id", "secret", 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := tc.Token(context.Background())
			if err != nil {
				t.Errorf("Token: %v", err)
				return
			}
			if token != "tok-123" {
				t.Errorf("token = %q", token)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("expected exactly one upstream fetch, got %d", n)
	}
}

func TestTokenCachedWhileValid(t *testing.T) {
	var fetches, fail int32
	srv := tokenServer(t, &fetches, &fail, 7200)
	defer srv.Close()

	tc := NewTokenCache(srv.URL, "id", "secret", 5*time.Second)

	for i := 0; i < 3; i++ {
		if _, err := tc.Token(context.Background()); err != nil {
			t.Fatalf("Token: %v", err)
		}
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("expected one fetch for sequential calls, got %d", n)
	}
}

func TestTokenShortLifetimeNotCached(t *testing.T) {
	// Lifetime below the safety margin expires immediately, so every
	// call goes upstream rather than serving a near-dead token
	var fetches, fail int32
	srv := tokenServer(t, &fetches, &fail, 60)
	defer srv.Close()

	tc := NewTokenCache(srv.URL, "id", "secret", 5*time.Second)

	for i := 0; i < 2; i++ {
		if _, err := tc.Token(context.Background()); err != nil {
			t.Fatalf("Token: %v", err)
		}
	}
	if n := atomic.LoadInt32(&fetches); n != 2 {
		t.Errorf("expected a fetch per call, got %d", n)
	}
}

func TestTokenFetchFailureLeavesCacheEmpty(t *testing.T) {
	var fetches, fail int32
	atomic.StoreInt32(&fail, 1)
	srv := tokenServer(t, &fetches, &fail, 7200)
	defer srv.Close()

	tc := NewTokenCache(srv.URL, "id", "secret", 5*time.Second)

	if _, err := tc.Token(context.Background()); err == nil {
		t.Fatal("expected error from failing auth endpoint")
	}

	// Recovery: the next call fetches fresh instead of serving junk
	atomic.StoreInt32(&fail, 0)
	token, err := tc.Token(context.Background())
	if err != nil {
		t.Fatalf("Token after recovery: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token = %q", token)
	}
	if n := atomic.LoadInt32(&fetches); n != 2 {
		t.Errorf("expected two fetches, got %d", n)
	}
}

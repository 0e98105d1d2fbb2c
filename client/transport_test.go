package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

// fakeAuthServer speaks the service wire contract: a private endpoint
// guarded by the access token, and a rotating single-use refresh token.
type fakeAuthServer struct {
	mu          sync.Mutex
	access      string
	refresh     string
	rotations   int
	privateHits atomic.Int64
}

func newFakeAuthServer() *fakeAuthServer {
	return &fakeAuthServer{access: "access-0", refresh: "refresh-0"}
}

func (f *fakeAuthServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		f.privateHits.Add(1)

		f.mu.Lock()
		ok := r.Header.Get("Authorization") == "Bearer "+f.access
		f.mu.Unlock()

		if !ok {
			writeWireError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	mux.HandleFunc("/token/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		defer f.mu.Unlock()

		if req.RefreshToken != f.refresh {
			writeWireError(w, http.StatusUnauthorized, "session_not_active")
			return
		}
		f.rotations++
		f.access = fmt.Sprintf("access-%d", f.rotations)
		f.refresh = fmt.Sprintf("refresh-%d", f.rotations)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":         f.access,
			"refresh_token": f.refresh,
			"user":          map[string]any{"id": "u1", "email": "buyer@example.com"},
		})
	})

	return mux
}

func (f *fakeAuthServer) rotationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rotations
}

func writeWireError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": code},
	})
}

func newTestClient(t *testing.T, srv *fakeAuthServer) (*Client, *httptest.Server) {
	t.Helper()

	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	c := New(ts.URL)
	c.State().Set(Session{
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
		User:         User{ID: "u1"},
	})
	return c, ts
}

func TestTransportAttachesBearer(t *testing.T) {
	srv := newFakeAuthServer()
	c, ts := newTestClient(t, srv)

	resp, err := c.HTTPClient().Get(ts.URL + "/private")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := srv.rotationCount(); got != 0 {
		t.Fatalf("rotations = %d, want 0", got)
	}
}

func TestTransportLoggedOut(t *testing.T) {
	srv := newFakeAuthServer()
	c, ts := newTestClient(t, srv)
	c.State().Clear()

	_, err := c.HTTPClient().Get(ts.URL + "/private")
	if !errors.Is(err, ErrLoggedOut) {
		t.Fatalf("err = %v, want ErrLoggedOut", err)
	}
}

func TestTransportRefreshesOnceOnExpiry(t *testing.T) {
	srv := newFakeAuthServer()
	c, ts := newTestClient(t, srv)

	// Invalidate the access token server-side; the refresh token stays
	// good, mirroring an access-token expiry.
	srv.mu.Lock()
	srv.access = "rotated-away"
	srv.mu.Unlock()

	resp, err := c.HTTPClient().Get(ts.URL + "/private")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d after refresh", resp.StatusCode)
	}
	if got := srv.rotationCount(); got != 1 {
		t.Fatalf("rotations = %d, want 1", got)
	}

	sess, ok := c.State().Snapshot()
	if !ok || sess.AccessToken != "access-1" || sess.RefreshToken != "refresh-1" {
		t.Fatalf("state after refresh = %+v, %v", sess, ok)
	}
}

func TestTransportSingleFlightUnderConcurrency(t *testing.T) {
	srv := newFakeAuthServer()
	c, ts := newTestClient(t, srv)

	srv.mu.Lock()
	srv.access = "rotated-away"
	srv.mu.Unlock()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	codes := make([]int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := c.HTTPClient().Get(ts.URL + "/private")
			if err != nil {
				errs[i] = err
				return
			}
			codes[i] = resp.StatusCode
			_ = resp.Body.Close()
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d: %v", i, errs[i])
		}
		if codes[i] != http.StatusOK {
			t.Fatalf("request %d: status %d", i, codes[i])
		}
	}

	// The refresh token is single-use server-side: more than one rotation
	// would mean a second concurrent refresh escaped the single-flight.
	if got := srv.rotationCount(); got != 1 {
		t.Fatalf("rotations = %d, want exactly 1", got)
	}
}

func TestTransportDoesNotRetryTwice(t *testing.T) {
	srv := newFakeAuthServer()

	// Refresh works, but the private endpoint rejects every token. The
	// transport must stop after one refresh and one retry.
	var privateHits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/refresh" {
			srv.handler().ServeHTTP(w, r)
			return
		}
		privateHits.Add(1)
		writeWireError(w, http.StatusUnauthorized, "invalid_token")
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL)
	c.State().Set(Session{AccessToken: "access-0", RefreshToken: "refresh-0", User: User{ID: "u1"}})

	resp, err := c.HTTPClient().Get(ts.URL + "/private")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if got := privateHits.Load(); got != 2 {
		t.Fatalf("private hits = %d, want exactly 2 (original + one retry)", got)
	}
	if got := srv.rotationCount(); got != 1 {
		t.Fatalf("rotations = %d, want exactly 1", got)
	}

	// The refresh itself succeeded, so the rotated session stays installed.
	sess, ok := c.State().Snapshot()
	if !ok || sess.RefreshToken != "refresh-1" {
		t.Fatalf("state after failed retry = %+v, %v", sess, ok)
	}
}

func TestTransportRevokedSessionLogsOut(t *testing.T) {
	srv := newFakeAuthServer()
	c, ts := newTestClient(t, srv)

	ch, cancel := c.State().Subscribe()
	defer cancel()

	// Kill both tokens server-side, as a logout-everywhere would.
	srv.mu.Lock()
	srv.access = "gone"
	srv.refresh = "gone"
	srv.mu.Unlock()

	resp, err := c.HTTPClient().Get(ts.URL + "/private")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if _, ok := c.State().Snapshot(); ok {
		t.Fatal("state should be cleared after a revoked refresh")
	}

	ev := waitEvent(t, ch)
	if ev.Type != EventLoggedOut {
		t.Fatalf("event = %+v, want logged_out", ev)
	}
}

func TestTransportRetriesWithRewoundBody(t *testing.T) {
	srv := newFakeAuthServer()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/refresh" {
			srv.handler().ServeHTTP(w, r)
			return
		}

		var body struct {
			Value string `json:"value"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		srv.mu.Lock()
		ok := r.Header.Get("Authorization") == "Bearer "+srv.access
		srv.mu.Unlock()

		if !ok {
			writeWireError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		if body.Value != "hello" {
			t.Errorf("retried body = %q, want %q", body.Value, "hello")
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL)
	c.State().Set(Session{AccessToken: "stale", RefreshToken: "refresh-0"})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, ts.URL+"/private", jsonBody(`{"value":"hello"}`))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

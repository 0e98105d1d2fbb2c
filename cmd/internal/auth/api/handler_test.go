package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"toutlux/cmd/identity"
	"toutlux/cmd/internal/auth/session"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type fakeGoogle struct {
	identities map[string]GoogleIdentity
}

func (f *fakeGoogle) VerifyIDToken(_ context.Context, raw string) (GoogleIdentity, error) {
	gid, ok := f.identities[raw]
	if !ok {
		return GoogleIdentity{}, ErrGoogleToken
	}
	return gid, nil
}

type testEnv struct {
	handler  *Handler
	mux      *http.ServeMux
	users    *identity.MemoryStore
	sessions *session.Service
}

func newTestEnv(t *testing.T, opts ...HandlerOption) *testEnv {
	t.Helper()

	cfg := session.DefaultConfig()
	cfg.JWTSecret = testJWTSecret

	tokens, err := session.NewJWTManager(cfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	users := identity.NewMemoryStore()
	svc := session.NewService(cfg, session.NewMemoryStore(), tokens)

	h, err := NewHandler(slog.New(slog.DiscardHandler), Config{MaxBodyBytes: 1 << 16}, users, svc, opts...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	return &testEnv{handler: h, mux: mux, users: users, sessions: svc}
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) authResponse {
	t.Helper()

	var out authResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return out
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return out.Error.Code
}

func register(t *testing.T, e *testEnv, email, pass string) authResponse {
	t.Helper()

	rec := e.post(t, "/register", map[string]string{"email": email, "password": pass})
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeAuth(t, rec)
}

func TestRegisterIssuesSession(t *testing.T) {
	e := newTestEnv(t)

	got := register(t, e, "buyer@example.com", "s3cret-pass")
	if got.Token == "" || got.RefreshToken == "" {
		t.Fatalf("expected token pair, got %+v", got)
	}
	if got.User.Email != "buyer@example.com" {
		t.Fatalf("user email = %q", got.User.Email)
	}

	claims, err := e.sessions.VerifyAccessToken(got.Token, time.Now().UTC())
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.UserID != got.User.ID {
		t.Fatalf("claims user = %q, want %q", claims.UserID, got.User.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	e := newTestEnv(t)
	register(t, e, "buyer@example.com", "s3cret-pass")

	rec := e.post(t, "/register", map[string]string{"email": "Buyer@Example.com", "password": "s3cret-pass"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "email_taken" {
		t.Fatalf("error code = %q", code)
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	register(t, e, "buyer@example.com", "s3cret-pass")

	t.Run("valid credentials", func(t *testing.T) {
		rec := e.post(t, "/login", map[string]string{"email": "buyer@example.com", "password": "s3cret-pass"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		got := decodeAuth(t, rec)
		if got.Token == "" || got.RefreshToken == "" {
			t.Fatalf("expected token pair, got %+v", got)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := e.post(t, "/login", map[string]string{"email": "buyer@example.com", "password": "not-it"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if code := decodeErrorCode(t, rec); code != "invalid_credentials" {
			t.Fatalf("error code = %q", code)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := e.post(t, "/login", map[string]string{"email": "ghost@example.com", "password": "whatever-pass"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if code := decodeErrorCode(t, rec); code != "invalid_credentials" {
			t.Fatalf("error code = %q", code)
		}
	})
}

func TestLoginDisplacesPreviousSession(t *testing.T) {
	e := newTestEnv(t)
	first := register(t, e, "buyer@example.com", "s3cret-pass")

	rec := e.post(t, "/login", map[string]string{"email": "buyer@example.com", "password": "s3cret-pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}

	rec = e.post(t, "/token/refresh", map[string]string{"refresh_token": first.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("displaced refresh status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "session_not_active" {
		t.Fatalf("error code = %q", code)
	}
}

func TestRefreshRotation(t *testing.T) {
	e := newTestEnv(t)
	first := register(t, e, "buyer@example.com", "s3cret-pass")

	rec := e.post(t, "/token/refresh", map[string]string{"refresh_token": first.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	second := decodeAuth(t, rec)
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if second.User.ID != first.User.ID {
		t.Fatalf("user changed across refresh: %q vs %q", second.User.ID, first.User.ID)
	}

	// The consumed token is gone for good.
	rec = e.post(t, "/token/refresh", map[string]string{"refresh_token": first.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "session_not_active" {
		t.Fatalf("error code = %q", code)
	}

	// The rotated token still works.
	rec = e.post(t, "/token/refresh", map[string]string{"refresh_token": second.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("rotated refresh status = %d", rec.Code)
	}
}

func TestRefreshValidation(t *testing.T) {
	e := newTestEnv(t)

	rec := e.post(t, "/token/refresh", map[string]string{"refresh_token": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty token status = %d, want 400", rec.Code)
	}

	rec = e.post(t, "/token/refresh", map[string]string{"refresh_token": "not-a-real-token"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "session_not_active" {
		t.Fatalf("error code = %q", code)
	}
}

func TestLogoutWithRefreshToken(t *testing.T) {
	e := newTestEnv(t)
	got := register(t, e, "buyer@example.com", "s3cret-pass")

	rec := e.post(t, "/logout", map[string]string{"refresh_token": got.RefreshToken})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", rec.Code)
	}

	rec = e.post(t, "/token/refresh", map[string]string{"refresh_token": got.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", rec.Code)
	}

	// Logout is idempotent.
	rec = e.post(t, "/logout", map[string]string{"refresh_token": got.RefreshToken})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("second logout status = %d, want 204", rec.Code)
	}
}

func TestLogoutWithBearerRevokesAll(t *testing.T) {
	e := newTestEnv(t)
	got := register(t, e, "buyer@example.com", "s3cret-pass")

	req := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer "+got.Token)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", rec.Code)
	}

	post := e.post(t, "/token/refresh", map[string]string{"refresh_token": got.RefreshToken})
	if post.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout-all status = %d, want 401", post.Code)
	}
}

func TestLogoutWithoutCredentials(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(""))
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "invalid_token" {
		t.Fatalf("error code = %q", code)
	}
}

func TestMe(t *testing.T) {
	e := newTestEnv(t)
	got := register(t, e, "buyer@example.com", "s3cret-pass")

	t.Run("with bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+got.Token)
		rec := httptest.NewRecorder()
		e.mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		var out meResponse
		if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.User.ID != got.User.ID {
			t.Fatalf("user id = %q, want %q", out.User.ID, got.User.ID)
		}
	})

	t.Run("without bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		rec := httptest.NewRecorder()
		e.mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("garbage bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		e.mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if code := decodeErrorCode(t, rec); code != "invalid_token" {
			t.Fatalf("error code = %q", code)
		}
	})
}

func TestGoogleLogin(t *testing.T) {
	verifier := &fakeGoogle{identities: map[string]GoogleIdentity{
		"good-token": {
			Subject:       "google-sub-1",
			Email:         "social@example.com",
			EmailVerified: true,
			Name:          "Social Buyer",
		},
		"unverified-token": {
			Subject: "google-sub-2",
			Email:   "shady@example.com",
		},
	}}
	e := newTestEnv(t, WithGoogleVerifier(verifier))

	t.Run("first sight creates account", func(t *testing.T) {
		rec := e.post(t, "/auth/google", map[string]string{"id_token": "good-token"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		got := decodeAuth(t, rec)
		if got.User.Email != "social@example.com" {
			t.Fatalf("user email = %q", got.User.Email)
		}
		if got.Token == "" || got.RefreshToken == "" {
			t.Fatalf("expected token pair, got %+v", got)
		}

		// Second sign-in resolves to the same account.
		rec = e.post(t, "/auth/google", map[string]string{"id_token": "good-token"})
		again := decodeAuth(t, rec)
		if again.User.ID != got.User.ID {
			t.Fatalf("subject resolved to a new user: %q vs %q", again.User.ID, got.User.ID)
		}
	})

	t.Run("unverified email rejected", func(t *testing.T) {
		rec := e.post(t, "/auth/google", map[string]string{"id_token": "unverified-token"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("bad token rejected", func(t *testing.T) {
		rec := e.post(t, "/auth/google", map[string]string{"id_token": "forged"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}

func TestGoogleLoginDisabled(t *testing.T) {
	e := newTestEnv(t)

	rec := e.post(t, "/auth/google", map[string]string{"id_token": "anything"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSocialOnlyAccountCannotPasswordLogin(t *testing.T) {
	verifier := &fakeGoogle{identities: map[string]GoogleIdentity{
		"good-token": {Subject: "s1", Email: "social@example.com", EmailVerified: true},
	}}
	e := newTestEnv(t, WithGoogleVerifier(verifier))

	rec := e.post(t, "/auth/google", map[string]string{"id_token": "good-token"})
	if rec.Code != http.StatusOK {
		t.Fatalf("google login status = %d", rec.Code)
	}

	rec = e.post(t, "/login", map[string]string{"email": "social@example.com", "password": "any-password"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "invalid_credentials" {
		t.Fatalf("error code = %q", code)
	}
}

func TestNewHandlerRejectsNilDeps(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.JWTSecret = testJWTSecret
	tokens, err := session.NewJWTManager(cfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	svc := session.NewService(cfg, session.NewMemoryStore(), tokens)

	if _, err := NewHandler(nil, Config{}, nil, svc); err == nil {
		t.Fatal("expected error for nil user directory")
	}
	if _, err := NewHandler(nil, Config{}, identity.NewMemoryStore(), nil); err == nil {
		t.Fatal("expected error for nil session service")
	}
}

package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"toutlux/cmd/identity"
	"toutlux/cmd/internal/auth/session"
	"toutlux/cmd/security/password"
)

// Handler wires the HTTP auth endpoints to the user directory and the
// session service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	users    identity.Store
	sessions *session.Service
	google   GoogleVerifier

	dummyHash string
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithGoogleVerifier enables /auth/google.
func WithGoogleVerifier(v GoogleVerifier) HandlerOption {
	return func(h *Handler) {
		if h == nil || v == nil {
			return
		}
		h.google = v
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Service, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil || sessions == nil {
		return nil, errors.New("auth: nil user directory or session service")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		sessions: sessions,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}

	// Dummy hash for timing-resistant login checks.
	if hash, err := identity.HashPassword("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires auth routes onto the provided mux. All routes here are
// public except /me; they must never sit behind RequireAuth, or a failing
// refresh could trigger a refresh loop in the client.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/register", h.handleRegister)
	mux.HandleFunc("/login", h.handleLogin)
	mux.HandleFunc("/auth/google", h.handleGoogle)
	mux.HandleFunc("/token/refresh", h.handleRefresh)
	mux.HandleFunc("/logout", h.handleLogout)
	mux.Handle("/me", h.RequireAuth(http.HandlerFunc(h.handleMe)))
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Now:         now,
	})
	if err != nil {
		switch {
		case identity.IsEmailTaken(err):
			writeError(w, http.StatusConflict, "email_taken", "email already registered")
		case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, "invalid_password", "password does not meet policy")
		case errors.Is(err, identity.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		default:
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.issueAndRespond(w, r, u, "register")
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()

	ua, err := h.users.GetAuthByEmail(ctx, req.Email)
	if err != nil {
		// Timing resistance: perform a dummy verify when the user is missing.
		if h.dummyHash != "" {
			_, _ = identity.VerifyPassword(req.Password, h.dummyHash)
		}
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	if ua.PasswordHash == nil {
		// Social-only account; no password to check.
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	ok, err := identity.VerifyPassword(req.Password, *ua.PasswordHash)
	if err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	h.issueAndRespond(w, r, ua.User, "login")
}

func (h *Handler) handleGoogle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.google == nil {
		writeError(w, http.StatusServiceUnavailable, "google_disabled", "google sign-in not configured")
		return
	}

	var req googleLoginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.IDToken) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id_token is required")
		return
	}

	ctx := r.Context()

	gid, err := h.google.VerifyIDToken(ctx, req.IDToken)
	if err != nil || !gid.EmailVerified {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	var displayName *string
	if gid.Name != "" {
		displayName = &gid.Name
	}

	u, err := h.users.FindOrCreateBySubject(ctx, "google", gid.Subject, gid.Email, displayName, time.Now().UTC())
	if err != nil {
		h.log.Error("auth.google.directory.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.issueAndRespond(w, r, u, "google")
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	issued, err := h.sessions.RefreshSession(ctx, now, req.RefreshToken, clientContext(r, h.cfg.TrustProxy))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionExpired):
			// Deliberately indistinguishable on the wire.
			refreshTotal.WithLabelValues("not_active").Inc()
			writeError(w, http.StatusUnauthorized, "session_not_active", "session not active")
		default:
			refreshTotal.WithLabelValues("error").Inc()
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	u, err := h.users.GetUserByID(ctx, issued.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			// Owner vanished between rotation and lookup; treat the
			// session as over.
			_, _ = h.sessions.RevokeSession(ctx, issued.RefreshToken)
			refreshTotal.WithLabelValues("not_active").Inc()
			writeError(w, http.StatusUnauthorized, "session_not_active", "session not active")
			return
		}
		refreshTotal.WithLabelValues("error").Inc()
		h.log.Error("auth.refresh.user.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	refreshTotal.WithLabelValues("rotated").Inc()
	writeJSON(w, http.StatusOK, toAuthResponse(issued, u))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req logoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	ctx := r.Context()

	// Possession of the refresh token authorizes revoking that session.
	// Without one, the bearer's whole session set is revoked.
	if strings.TrimSpace(req.RefreshToken) != "" {
		if _, err := h.sessions.RevokeSession(ctx, req.RefreshToken); err != nil {
			h.log.Error("auth.logout.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	if _, err := h.sessions.RevokeAllSessions(ctx, claims.UserID); err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, _ := ClaimsFromContext(r.Context())

	u, err := h.users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "not_found", "user not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

// issueAndRespond runs the shared tail of every issuance endpoint.
func (h *Handler) issueAndRespond(w http.ResponseWriter, r *http.Request, u identity.User, via string) {
	issued, err := h.sessions.IssueSession(r.Context(), time.Now().UTC(), u.ID, clientContext(r, h.cfg.TrustProxy))
	if err != nil {
		h.log.Error("auth.issue_session.fail", "via", via, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	sessionsIssuedTotal.WithLabelValues(via).Inc()
	writeJSON(w, http.StatusOK, toAuthResponse(issued, u))
}

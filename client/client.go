package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client talks to the toutlux auth service.
//
// Public endpoints (login, register, refresh) go through a plain HTTP
// client; everything obtained from HTTPClient carries the access token
// and self-heals on expiry.
type Client struct {
	baseURL string
	state   *State

	public *http.Client
	authed *http.Client

	// Serializes explicit Refresh calls against transport-driven ones.
	refreshMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client used for all calls.
// Its Transport becomes the base of the authenticated transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.public = hc
		}
	}
}

// New constructs a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		state:   NewState(),
		public:  &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}

	c.authed = &http.Client{
		Timeout:   c.public.Timeout,
		Transport: NewTransport(c.public.Transport, c.state, c),
	}

	return c
}

// State exposes the session state for snapshots and subscriptions.
func (c *Client) State() *State { return c.state }

// HTTPClient returns the authenticated client. Requests made with it get
// the Bearer header and the transparent 401-refresh-retry behavior.
func (c *Client) HTTPClient() *http.Client { return c.authed }

// ---- wire shapes ----

type authResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ---- session entry points ----

// Register creates an account and starts a session.
func (c *Client) Register(ctx context.Context, email, password string, displayName *string) (Session, error) {
	body := map[string]any{"email": email, "password": password}
	if displayName != nil {
		body["display_name"] = *displayName
	}
	return c.startSession(ctx, "/register", body)
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	sess, err := c.startSession(ctx, "/login", map[string]any{
		"email":    email,
		"password": password,
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return Session{}, ErrInvalidCredentials
	}
	return sess, err
}

// LoginWithGoogle authenticates with a Google ID token.
func (c *Client) LoginWithGoogle(ctx context.Context, idToken string) (Session, error) {
	sess, err := c.startSession(ctx, "/auth/google", map[string]any{
		"id_token": idToken,
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return Session{}, ErrInvalidCredentials
	}
	return sess, err
}

func (c *Client) startSession(ctx context.Context, path string, body any) (Session, error) {
	var out authResponse
	if err := c.postJSON(ctx, c.public, path, body, &out); err != nil {
		return Session{}, err
	}

	sess := Session{
		AccessToken:  out.Token,
		RefreshToken: out.RefreshToken,
		User:         out.User,
	}
	c.state.Set(sess)
	return sess, nil
}

// Refresh rotates the session explicitly. Most callers never need this;
// the authenticated transport refreshes on demand.
func (c *Client) Refresh(ctx context.Context) (Session, error) {
	if err := c.refreshSession(ctx); err != nil {
		return Session{}, err
	}
	sess, ok := c.state.Snapshot()
	if !ok {
		return Session{}, ErrLoggedOut
	}
	return sess, nil
}

// refreshSession implements Refresher for the Transport.
func (c *Client) refreshSession(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	sess, ok := c.state.Snapshot()
	if !ok {
		return ErrLoggedOut
	}

	var out authResponse
	err := c.postJSON(ctx, c.public, "/token/refresh", map[string]any{
		"refresh_token": sess.RefreshToken,
	}, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			// The session is gone server-side; holding dead tokens
			// would make every later call fail the same way.
			c.state.Clear()
			return ErrSessionNotActive
		}
		return err
	}

	c.state.Set(Session{
		AccessToken:  out.Token,
		RefreshToken: out.RefreshToken,
		User:         out.User,
	})
	return nil
}

// Logout revokes the current session server-side and clears local state.
// Safe to call when already logged out.
func (c *Client) Logout(ctx context.Context) error {
	sess, ok := c.state.Snapshot()
	if !ok {
		return nil
	}

	// Local state clears regardless: a network failure must not leave
	// the app half logged-in.
	defer c.state.Clear()

	err := c.postJSON(ctx, c.public, "/logout", map[string]any{
		"refresh_token": sess.RefreshToken,
	}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil
	}
	return err
}

// Me fetches the profile behind the current session.
func (c *Client) Me(ctx context.Context) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/me", nil)
	if err != nil {
		return User{}, err
	}

	resp, err := c.authed.Do(req)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return User{}, apiErrorFrom(resp)
	}

	var out struct {
		User User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return User{}, err
	}
	return out.User, nil
}

// ---- plumbing ----

func (c *Client) postJSON(ctx context.Context, hc *http.Client, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErrorFrom(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiErrorFrom(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil && body.Error.Code != "" {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

package client

import (
	"context"
	"io"
	"net/http"

	"golang.org/x/sync/singleflight"
)

// Refresher exchanges the held refresh token for a new session. *Client
// satisfies it; tests substitute fakes.
type Refresher interface {
	refreshSession(ctx context.Context) error
}

// Transport is an http.RoundTripper that attaches the access token and
// transparently refreshes it once on 401.
//
// The refresh is single-flight: when many concurrent requests observe the
// same stale access token, exactly one refresh call reaches the server.
// The refresh token rotates on every use, so a second concurrent refresh
// would be rejected and take the whole session down with it.
type Transport struct {
	base      http.RoundTripper
	state     *State
	refresher Refresher

	group singleflight.Group
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, state *State, refresher Refresher) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, state: state, refresher: refresher}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	access := t.state.AccessToken()
	if access == "" {
		return nil, ErrLoggedOut
	}

	resp, err := t.send(req, access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Retry needs a rewindable body. Without GetBody the 401 stands.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	if err := t.refreshOnce(req.Context(), access); err != nil {
		return resp, nil
	}

	newAccess := t.state.AccessToken()
	if newAccess == "" || newAccess == access {
		return resp, nil
	}

	drain(resp)

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return t.send(retry, newAccess)
}

func (t *Transport) send(req *http.Request, access string) (*http.Response, error) {
	// Per-attempt clone keeps the caller's request untouched.
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+access)
	return t.base.RoundTrip(r)
}

// refreshOnce collapses concurrent refresh attempts for the same stale
// access token into one server call.
func (t *Transport) refreshOnce(ctx context.Context, staleAccess string) error {
	_, err, _ := t.group.Do("refresh", func() (any, error) {
		// A winner from a prior flight may already have rotated the
		// session; verify the token is still the stale one.
		if cur := t.state.AccessToken(); cur != staleAccess {
			if cur == "" {
				return nil, ErrLoggedOut
			}
			return nil, nil
		}
		return nil, t.refresher.refreshSession(ctx)
	})
	return err
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}

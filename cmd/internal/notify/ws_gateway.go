package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"toutlux/cmd/internal/auth/session"
)

const (
	wsDefaultSendQueue    = 8
	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultPingEvery    = 30 * time.Second
	wsDefaultPingTimeout  = 10 * time.Second
)

// AccessVerifier validates the bearer access token presented on upgrade.
// *session.Service satisfies it.
type AccessVerifier interface {
	VerifyAccessToken(token string, now time.Time) (session.AccessClaims, error)
}

// WSGateway is the WebSocket entrypoint for session events.
//
// Clients connect with their access token and receive Event frames until
// the connection drops or their sessions are revoked. The gateway never
// reads application frames; the socket is push-only.
type WSGateway struct {
	log    *slog.Logger
	hub    *Hub
	verify AccessVerifier

	originPatterns []string
	devInsecure    bool

	sendQueueSize int
	writeTimeout  time.Duration
	pingEvery     time.Duration
	pingTimeout   time.Duration
}

// NewWSGateway constructs a gateway over the given hub and verifier.
//
// Optional environment knobs:
//   - TOUTLUX_WS_ALLOWED_ORIGINS (comma-separated host patterns)
//   - TOUTLUX_WS_DEV_INSECURE (dev-only, skips origin verification)
//   - TOUTLUX_WS_SEND_QUEUE
//   - TOUTLUX_WS_WRITE_TIMEOUT
//   - TOUTLUX_WS_PING_INTERVAL
func NewWSGateway(log *slog.Logger, hub *Hub, verify AccessVerifier) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log)
	}

	g := &WSGateway{
		log:    log,
		hub:    hub,
		verify: verify,

		sendQueueSize: wsDefaultSendQueue,
		writeTimeout:  wsDefaultWriteTimeout,
		pingEvery:     wsDefaultPingEvery,
		pingTimeout:   wsDefaultPingTimeout,
	}

	g.originPatterns = envCSV("TOUTLUX_WS_ALLOWED_ORIGINS")
	g.devInsecure = envBool("TOUTLUX_WS_DEV_INSECURE")

	if n := envInt("TOUTLUX_WS_SEND_QUEUE"); n > 0 {
		g.sendQueueSize = n
	}
	if d := envDuration("TOUTLUX_WS_WRITE_TIMEOUT"); d > 0 {
		g.writeTimeout = d
	}
	if d := envDuration("TOUTLUX_WS_PING_INTERVAL"); d > 0 {
		g.pingEvery = d
	}

	return g
}

// ServeHTTP adapter so the gateway mounts as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS authenticates the request, upgrades it, and streams session
// events until the peer leaves or the session set is revoked.
//
// The token is taken from the Authorization header, or from the
// access_token query parameter for clients that cannot set headers on
// a WebSocket dial.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	tok := upgradeToken(r)
	if tok == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	claims, err := g.verify.VerifyAccessToken(tok, time.Now().UTC())
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Info("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	sub := newSubscriber(claims.UserID, g.sendQueueSize)
	g.hub.attach(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.hub.detach(sub)
			sub.close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	// Reader exists only to observe the peer closing; inbound frames are
	// not part of the protocol.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				shutdown(websocket.StatusNormalClosure, "peer closed")
				return
			}
		}
	}()

	go func() {
		t := time.NewTicker(g.pingEvery)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case <-t.C:
				pingCtx, pingCancel := context.WithTimeout(ctx, g.pingTimeout)
				err := conn.Ping(pingCtx)
				pingCancel()
				if err != nil {
					shutdown(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			shutdown(websocket.StatusNormalClosure, "context done")
			return
		case <-sub.done:
			return
		case ev := <-sub.send:
			if err := writeEvent(ctx, conn, ev, g.writeTimeout); err != nil {
				g.log.Info("ws.write.fail", "user_id", claims.UserID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "write failed")
				return
			}
			// The tokens behind this socket are dead; hang up after the
			// notice so the client reconnects with fresh credentials.
			if ev.Type == EventSessionRevoked {
				shutdown(websocket.StatusNormalClosure, "session revoked")
				return
			}
		}
	}
}

func upgradeToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func writeEvent(parent context.Context, conn *websocket.Conn, ev Event, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- env helpers ----

func envBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}

func envInt(key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return 0
	}
	return n
}

func envDuration(key string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return 0
	}
	return d
}

func envCSV(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

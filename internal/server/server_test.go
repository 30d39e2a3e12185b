package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chetanK28/PlanningPoker-Backend/pkg/config"
	"github.com/chetanK28/PlanningPoker-Backend/pkg/logging"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			AllowedOrigin:   "*",
			ConnectionLimit: config.ConnectionLimitConfig{Mode: "reject"},
		},
		Transport: config.TransportConfig{WriteTimeout: time.Second, SendBuffer: 16},
		Router:    config.RouterConfig{QueueSize: 16},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	app, err := NewApp(logging.Discard(), ctx, cfg)
	require.NoError(t, err)
	app.Start()

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, c *websocket.Conn, event string, payload any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, c, envelope{Event: event, Payload: raw}))
}

func expect(t *testing.T, c *websocket.Conn, event string) envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var env envelope
	require.NoError(t, wsjson.Read(ctx, c, &env))
	require.Equal(t, event, env.Event, "payload: %s", env.Payload)
	return env
}

func TestHealthAndRoot(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, map[string]bool{"ok": true}, body)

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	text, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(text), "running")
}

func TestPlanningRoundOverWebSocket(t *testing.T) {
	srv := newTestServer(t, testConfig())
	alice := dial(t, srv)
	bob := dial(t, srv)

	send(t, alice, "join-room", map[string]string{"room": "R1", "username": "alice", "role": "facilitator"})
	env := expect(t, alice, "room-update")
	require.Contains(t, string(env.Payload), `"alice"`)

	send(t, bob, "join-room", map[string]string{"room": "R1", "username": "bob", "role": "voter"})
	for _, c := range []*websocket.Conn{alice, bob} {
		env := expect(t, c, "room-update")
		var snap struct {
			Users map[string]struct{ Username, Role string } `json:"users"`
		}
		require.NoError(t, json.Unmarshal(env.Payload, &snap))
		require.Len(t, snap.Users, 2)
	}

	send(t, bob, "vote", map[string]any{"room": "R1", "username": "bob", "vote": 8})
	for _, c := range []*websocket.Conn{alice, bob} {
		require.JSONEq(t, `{"bob":8}`, string(expect(t, c, "vote-update").Payload))
	}

	send(t, alice, "reveal-votes", "R1")
	require.JSONEq(t, `{"bob":8}`, string(expect(t, bob, "reveal").Payload))
	expect(t, alice, "reveal")

	send(t, alice, "set-title-description", map[string]string{
		"room": "R1", "title": "Sprint 3", "description": "", "username": "alice",
	})
	require.JSONEq(t, `{"title":"Sprint 3","description":""}`, string(expect(t, bob, "title-description-updated").Payload))
	require.JSONEq(t, `"alice updated the title and description."`, string(expect(t, bob, "notification").Payload))

	send(t, alice, "reset-votes", "R1")
	require.JSONEq(t, `{}`, string(expect(t, bob, "vote-update").Payload))
	require.Empty(t, expect(t, bob, "reset").Payload)

	// alice leaves; bob is told, and bob's vote slot is untouched
	require.NoError(t, alice.Close(websocket.StatusNormalClosure, "bye"))
	env = expect(t, bob, "room-update")
	var snap struct {
		Usernames map[string]string `json:"usernames"`
	}
	require.NoError(t, json.Unmarshal(env.Payload, &snap))
	require.Len(t, snap.Usernames, 1)
	for _, name := range snap.Usernames {
		require.Equal(t, "bob", name)
	}
}

func TestInvalidFramesAreIgnored(t *testing.T) {
	srv := newTestServer(t, testConfig())
	c := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("not json")))
	send(t, c, "join-room", map[string]string{"room": "R1"})
	send(t, c, "vote", map[string]any{"room": "nowhere", "username": "x", "vote": 1})
	send(t, c, "disconnect", nil)

	// the connection is still alive and served in order
	send(t, c, "join-room", map[string]string{"room": "R1", "username": "alice", "role": "voter"})
	expect(t, c, "room-update")
}

func TestConnectionLimitRejects(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ConnectionLimit = config.ConnectionLimitConfig{MaxPerIP: 1, Mode: "reject"}
	srv := newTestServer(t, cfg)
	dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Eventually(t, func() bool {
		_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
		return err != nil && resp != nil && resp.StatusCode == http.StatusTooManyRequests
	}, 2*time.Second, 20*time.Millisecond)
}

func dialAs(ctx context.Context, srv *httptest.Server, forwardedFor string) (*websocket.Conn, *http.Response, error) {
	return websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", &websocket.DialOptions{
		HTTPHeader: http.Header{"X-Forwarded-For": []string{forwardedFor}},
	})
}

func TestConnectionLimit_IgnoresForwardedForByDefault(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ConnectionLimit = config.ConnectionLimitConfig{MaxPerIP: 1, Mode: "reject"}
	srv := newTestServer(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	first, _, err := dialAs(ctx, srv, "203.0.113.1")
	require.NoError(t, err)
	t.Cleanup(func() { first.Close(websocket.StatusNormalClosure, "") })

	// a spoofed header does not buy a fresh per-IP budget
	require.Eventually(t, func() bool {
		c, resp, err := dialAs(ctx, srv, "203.0.113.2")
		if c != nil {
			c.CloseNow()
		}
		return err != nil && resp != nil && resp.StatusCode == http.StatusTooManyRequests
	}, 2*time.Second, 20*time.Millisecond)
}

func TestConnectionLimit_TrustsForwardedForWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ConnectionLimit = config.ConnectionLimitConfig{MaxPerIP: 1, Mode: "reject"}
	cfg.Server.TrustProxyHeaders = true
	srv := newTestServer(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		c, _, err := dialAs(ctx, srv, ip)
		require.NoError(t, err, "client %s", ip)
		t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	}
}

func TestNewApp_RejectsUnknownModifier(t *testing.T) {
	cfg := testConfig()
	cfg.Events = map[string]config.EventConfig{
		"vote": {Modifiers: []config.ModifierConfig{{Name: "secure"}}},
	}
	_, err := NewApp(logging.Discard(), context.Background(), cfg)
	require.ErrorContains(t, err, "unknown modifier")
}

func TestAcceptOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AllowedOrigin = "https://poker.example.com"
	app, err := NewApp(logging.Discard(), context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"poker.example.com"}, app.acceptOptions().OriginPatterns)

	cfg.Server.AllowedOrigin = "*"
	require.True(t, app.acceptOptions().InsecureSkipVerify)
}

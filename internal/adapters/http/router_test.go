package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/auth"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/storage/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testAdminToken = "admin-test-token"

type testServer struct {
	srv      *httptest.Server
	verifier *auth.Verifier
	store    *sqlite.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "huddle.db"))
	require.NoError(t, err)

	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.NewPolicy("open", store, app.DropFrame),
		Store:    store,
	}
	ctrl := signal.NewSignalWSController(o, signal.NewChatRateLimiter(100, time.Second))
	verifier := auth.NewVerifier("jwt-test-secret", "")
	cfg := &config.Config{Mode: "test", Secret: "cookie-test-secret", AdminToken: testAdminToken}

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(SetupRouter(ctx, cfg, ctrl, verifier, store))
	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = store.Close()
	})
	return &testServer{srv: srv, verifier: verifier, store: store}
}

func (s *testServer) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	token, err := s.verifier.Issue(domain.UserID(user), time.Minute)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/ws/signal?token=" + token
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = ws.Close() })

	expect(t, ws, "connected")
	send(t, ws, map[string]any{"type": "authenticate", "ack": "auth"})
	got := expect(t, ws, "authenticated")
	require.Equal(t, user, got["user_id"])
	ack := expect(t, ws, "ack")
	require.Equal(t, true, ack["ok"])
	return ws
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

// expect reads frames until one of the given type shows up.
func expect(t *testing.T, ws *websocket.Conn, typ string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		if m["type"] == typ {
			return m
		}
	}
}

func next(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func (s *testServer) getJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	resp, err := http.Get(s.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func (s *testServer) kick(t *testing.T, user, token string) int {
	t.Helper()
	r, err := http.NewRequest(http.MethodDelete, s.srv.URL+"/api/presence/"+user, nil)
	require.NoError(t, err)
	if token != "" {
		r.Header.Set(adminHeader, token)
	}
	resp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestSignaling_Two_Peers(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	a := s.dial(t, "alice")
	b := s.dial(t, "bob")

	// Alice signals Bob
	send(t, a, map[string]any{
		"type":   "webrtc-signal",
		"to":     "bob",
		"signal": map[string]any{"type": "offer", "sdp": "x"},
		"ack":    "s1",
	})
	got := expect(t, b, "webrtc-signal")
	req.Equal("alice", got["from"])
	req.NotEmpty(got["from_conn"])
	ack := expect(t, a, "ack")
	req.Equal("s1", ack["ack"])
	req.Equal(true, ack["ok"])

	// Bob answers on the legacy event
	send(t, b, map[string]any{
		"type":   "answer",
		"target": "alice",
		"sdp":    map[string]any{"type": "answer", "sdp": "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"},
	})
	got = expect(t, a, "answer")
	req.Equal("bob", got["sender"])

	// A peer nobody knows
	send(t, a, map[string]any{"type": "webrtc-signal", "to": "ghost", "signal": map[string]any{}})
	got = expect(t, a, "call-error")
	req.Equal("target_unavailable", got["error"])
	req.Equal("ghost", got["target"])

	// Once Bob is gone, signals to him bounce
	req.NoError(b.Close())
	req.Eventually(func() bool {
		return s.getJSON(t, "/api/presence/bob")["online"] == false
	}, 3*time.Second, 20*time.Millisecond)
	send(t, a, map[string]any{"type": "webrtc-signal", "to": "bob", "signal": "Y"})
	got = expect(t, a, "call-error")
	req.Equal("bob", got["target"])
}

func TestChat_Direct_And_Group(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	a := s.dial(t, "alice")
	b := s.dial(t, "bob")
	c := s.dial(t, "carol")

	send(t, a, map[string]any{"type": "send-chat-message", "recipient_id": "bob", "body": "hi bob", "ack": "m1"})
	got := expect(t, b, "receive-chat-message")
	req.Equal("alice", got["sender_id"])
	req.Equal("hi bob", got["body"])
	req.Equal(true, got["delivered"])
	ack := expect(t, a, "ack")
	req.Equal(true, ack["ok"])
	req.Equal(got["id"], ack["message_id"])

	for _, ws := range []*websocket.Conn{b, c} {
		send(t, ws, map[string]any{"type": "join-group", "group_id": "g1"})
		expect(t, ws, "group-joined")
	}
	send(t, b, map[string]any{"type": "send-chat-message", "group_id": "g1", "body": "hello group"})
	got = expect(t, c, "receive-chat-message")
	req.Equal("g1", got["group_id"])
	req.Equal("bob", got["sender_id"])

	send(t, a, map[string]any{"type": "send-chat-message", "recipient_id": "bob", "group_id": "g1", "body": "x"})
	got = expect(t, a, "message-error")
	req.Equal("invalid_message_target", got["error"])

	rooms := s.getJSON(t, "/api/rooms")
	req.Len(rooms["rooms"], 1)
}

func TestPresence_And_Kick(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	s.dial(t, "alice")
	b := s.dial(t, "bob")

	health := s.getJSON(t, "/healthz")
	req.Equal(float64(2), health["connections"])
	req.Equal(float64(2), health["users"])

	got := s.getJSON(t, "/api/presence/bob")
	req.Equal(true, got["online"])

	req.Equal(http.StatusNoContent, s.kick(t, "bob", testAdminToken))

	// Bob's socket is closed by the server
	req.NoError(b.SetReadDeadline(time.Now().Add(3 * time.Second)))
	for {
		if _, _, err := b.ReadMessage(); err != nil {
			break
		}
	}
	got = s.getJSON(t, "/api/presence/bob")
	req.Equal(false, got["online"])

	req.Equal(http.StatusNotFound, s.kick(t, "bob", testAdminToken))
}

func TestKick_Requires_Admin_Token(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	b := s.dial(t, "bob")

	req.Equal(http.StatusUnauthorized, s.kick(t, "bob", ""))
	req.Equal(http.StatusUnauthorized, s.kick(t, "bob", "guess"))

	// Bob is still online and reachable
	got := s.getJSON(t, "/api/presence/bob")
	req.Equal(true, got["online"])
	send(t, b, map[string]any{"type": "ping"})
	expect(t, b, "pong")
}

func TestHealth_Reports_Store(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	req.Equal("ok", s.getJSON(t, "/healthz")["status"])

	req.NoError(s.store.Close())
	resp, err := http.Get(s.srv.URL + "/healthz")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCallRoom_Relays_To_Other_Members(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	a := s.dial(t, "alice")
	b := s.dial(t, "bob")
	c := s.dial(t, "carol")
	outsider := s.dial(t, "dave")

	for _, ws := range []*websocket.Conn{a, b, c} {
		send(t, ws, map[string]any{"type": "join-room", "room": "standup"})
		got := expect(t, ws, "room-joined")
		req.Equal("standup", got["room"])
	}

	send(t, a, map[string]any{
		"type": "offer",
		"room": "standup",
		"sdp":  map[string]any{"type": "offer", "sdp": "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"},
		"ack":  "o1",
	})
	for _, ws := range []*websocket.Conn{b, c} {
		got := expect(t, ws, "offer")
		req.Equal("alice", got["sender"])
		req.Equal("standup", got["room"])
	}
	ack := expect(t, a, "ack")
	req.Equal(true, ack["ok"])

	send(t, b, map[string]any{
		"type":      "ice-candidate",
		"room":      "standup",
		"candidate": map[string]any{"candidate": "candidate:1 1 udp 2122260223 10.0.0.1 54321 typ host", "sdpMid": "0", "sdpMLineIndex": 0},
	})
	got := expect(t, a, "ice-candidate")
	req.Equal("bob", got["sender"])
	expect(t, c, "ice-candidate")

	// The outsider got nothing; its next frame is the pong
	send(t, outsider, map[string]any{"type": "ping"})
	req.Equal("pong", next(t, outsider)["type"])

	// A room nobody joined
	send(t, a, map[string]any{"type": "webrtc-signal", "room": "empty", "signal": map[string]any{}})
	got = expect(t, a, "call-error")
	req.Equal("target_unavailable", got["error"])
	req.Equal("empty", got["target"])
}

func TestIdentity_Bad_Token_Refused(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/ws/signal?token=forged"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestIdentity_Anonymous_Cannot_Authenticate(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/ws/signal"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	_ = resp.Body.Close()
	defer ws.Close()

	expect(t, ws, "connected")
	send(t, ws, map[string]any{"type": "authenticate", "user_id": "alice", "ack": "a"})
	ack := expect(t, ws, "ack")
	req.Equal(false, ack["ok"])
	req.Equal("not_authenticated", ack["error"])
}

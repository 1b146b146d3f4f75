package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/meterdetect/internal/detection"
	"github.com/nerrad567/meterdetect/internal/infrastructure/config"
	"github.com/nerrad567/meterdetect/internal/infrastructure/logging"
	"github.com/nerrad567/meterdetect/internal/monitor"
	"github.com/nerrad567/meterdetect/internal/preset"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testDeps() Deps {
	catalog := preset.NewDefaultCatalog()
	return Deps{
		Config: config.APIConfig{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
		WS:       config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30 * time.Second, PongTimeout: 10 * time.Second},
		Logger:   testLogger(),
		Catalog:  catalog,
		Detector: detection.NewDetector(catalog),
		Version:  "test",
	}
}

// testServer creates a Server over the built-in preset catalog with its hub running.
func testServer(t *testing.T) *Server {
	t.Helper()
	return testServerWith(t, testDeps())
}

func testServerWith(t *testing.T, deps Deps) *Server {
	t.Helper()
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)
	return srv
}

// do sends a request through the router and returns the recorder.
func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

// fakeEvents captures the live feed handler.
type fakeEvents struct {
	mu      sync.Mutex
	handler func(monitor.Event)
	stopped bool
	err     error
}

func (f *fakeEvents) WatchEvents(handler func(monitor.Event)) (detection.StopFunc, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()
	}, nil
}

func (f *fakeEvents) emit(ev monitor.Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(ev)
}

// ─── Construction & Health ─────────────────────────────────────────

func TestNew_RequiredDeps(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"no logger", func(d *Deps) { d.Logger = nil }},
		{"no catalog", func(d *Deps) { d.Catalog = nil }},
		{"no detector", func(d *Deps) { d.Detector = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			tt.mutate(&deps)
			if _, err := New(deps); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	deps := testDeps()
	deps.Checks = map[string]HealthChecker{"database": fakeChecker{}}
	srv := testServerWith(t, deps)

	w := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	resp := decodeBody[map[string]any](t, w)
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health = %v", resp)
	}
	if resp["presets"] != float64(len(preset.DefaultPresets())) {
		t.Errorf("presets = %v", resp["presets"])
	}
	if comps, _ := resp["components"].(map[string]any); comps["database"] != "ok" {
		t.Errorf("components = %v", resp["components"])
	}
}

func TestHealth_Degraded(t *testing.T) {
	deps := testDeps()
	deps.Checks = map[string]HealthChecker{
		"database": fakeChecker{},
		"mqtt":     fakeChecker{err: errors.New("mqtt: client not connected")},
	}
	srv := testServerWith(t, deps)

	w := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want 503", w.Code)
	}
	resp := decodeBody[map[string]any](t, w)
	comps, _ := resp["components"].(map[string]any)
	if resp["status"] != "degraded" || comps["mqtt"] != "mqtt: client not connected" {
		t.Errorf("health = %v", resp)
	}
}

// ─── Middleware ────────────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	srv := testServer(t)

	if w := do(t, srv, http.MethodGet, "/api/v1/health", ""); w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS(t *testing.T) {
	deps := testDeps()
	deps.Config.CORS.AllowedOrigins = []string{"http://installer.local"}
	srv := testServerWith(t, deps)

	tests := []struct {
		origin string
		want   string
	}{
		{"http://installer.local", "http://installer.local"},
		{"http://elsewhere", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/detect", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		srv.buildRouter().ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: ACAO = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestNotFound(t *testing.T) {
	if w := do(t, testServer(t), http.MethodGet, "/api/v1/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", w.Code)
	}
}

func TestJoinOrDefault(t *testing.T) {
	if got := joinOrDefault(nil, "GET"); got != "GET" {
		t.Errorf("joinOrDefault(nil) = %q", got)
	}
	if got := joinOrDefault([]string{"GET", "POST"}, "x"); got != "GET, POST" {
		t.Errorf("joinOrDefault() = %q", got)
	}
}

// ─── Lifecycle & live feed ─────────────────────────────────────────

func TestServer_StartRelaysEvents(t *testing.T) {
	events := &fakeEvents{}
	deps := testDeps()
	deps.Events = events

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	client := newWSClient(srv.hub, nil, []string{ChannelDetectionResult}, nil)
	srv.hub.Register(client)

	events.emit(monitor.Event{ID: "ev-1", Source: "han-1"})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent || wsMsg.EventType != ChannelDetectionResult {
			t.Errorf("message = %+v", wsMsg)
		}
		payload, _ := wsMsg.Payload.(map[string]any)
		if payload["source"] != "han-1" {
			t.Errorf("payload = %v", wsMsg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() after Start error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	events.mu.Lock()
	defer events.mu.Unlock()
	if !events.stopped {
		t.Error("live feed not stopped on Close()")
	}
}

func TestServer_StartFeedError(t *testing.T) {
	deps := testDeps()
	deps.Events = &fakeEvents{err: monitor.ErrStopped}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := srv.Start(context.Background()); !errors.Is(err, monitor.ErrStopped) {
		t.Errorf("Start() error = %v, want ErrStopped", err)
	}
}

func TestServer_HealthCheckNotStarted(t *testing.T) {
	if err := testServer(t).HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() on unstarted server should fail")
	}
}

func TestServer_CloseNotStarted(t *testing.T) {
	srv, err := New(testDeps())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	subscribed := newWSClient(hub, nil, []string{ChannelDetectionResult}, nil)
	other := newWSClient(hub, nil, []string{"something.else"}, nil)
	hub.Register(subscribed)
	hub.Register(other)
	if hub.ClientCount() != 2 {
		t.Errorf("ClientCount() = %d, want 2", hub.ClientCount())
	}

	hub.Broadcast(ChannelDetectionResult, "han-1", map[string]any{"source": "han-1"})

	select {
	case <-subscribed.send:
	case <-time.After(time.Second):
		t.Error("subscribed client did not receive broadcast")
	}
	select {
	case <-other.send:
		t.Error("unsubscribed client received broadcast")
	case <-time.After(50 * time.Millisecond):
	}

	hub.Unregister(other)
	hub.Unregister(other)
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() after unregister = %d, want 1", hub.ClientCount())
	}
}

func TestHub_MeterFilterAndReplay(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())

	hub.Broadcast(ChannelDetectionResult, "han-1", map[string]any{"n": 1})
	hub.Broadcast(ChannelDetectionResult, "han-2", map[string]any{"n": 2})
	hub.Broadcast(ChannelDetectionResult, "han-1", map[string]any{"n": 3})

	// A client for han-1 only is replayed the newest han-1 event.
	client := newWSClient(hub, nil, []string{ChannelDetectionResult}, []string{"han-1"})
	hub.Register(client)

	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		payload, _ := msg.Payload.(map[string]any)
		if msg.Meter != "han-1" || payload["n"] != float64(3) {
			t.Errorf("replayed = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no replay on register")
	}
	select {
	case data := <-client.send:
		t.Errorf("unexpected extra replay: %s", data)
	default:
	}

	hub.Broadcast(ChannelDetectionResult, "han-2", map[string]any{"n": 4})
	select {
	case data := <-client.send:
		t.Errorf("han-2 event reached han-1 client: %s", data)
	case <-time.After(50 * time.Millisecond):
	}

	hub.Broadcast(ChannelDetectionResult, "", map[string]any{"n": 5})
	select {
	case <-client.send:
	case <-time.After(time.Second):
		t.Error("unscoped event should reach every subscriber")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, ,b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitList() = %q", got)
	}
	if got := splitList(""); len(got) != 0 {
		t.Errorf("splitList(\"\") = %q", got)
	}
}

func TestWSTimings(t *testing.T) {
	ping, pong := wsTimings(config.WebSocketConfig{})
	if ping != defaultPingInterval || pong != defaultPongTimeout {
		t.Errorf("defaults = %v, %v", ping, pong)
	}
	ping, pong = wsTimings(config.WebSocketConfig{PingInterval: 5 * time.Second, PongTimeout: 2 * time.Second})
	if ping != 5*time.Second || pong != 2*time.Second {
		t.Errorf("configured = %v, %v", ping, pong)
	}
}

func TestWebSocket_FullConnection(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	defer ws.Close()

	// Ping round-trip proves the read pump is running and the client registered.
	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong WSMessage
	if err := ws.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != WSTypePong || pong.ID != "p-1" {
		t.Errorf("pong = %+v", pong)
	}

	srv.hub.Broadcast(ChannelDetectionResult, "han-1", map[string]any{"source": "han-1", "result": map[string]any{"confidence": 120}})

	var event WSMessage
	if err := ws.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.EventType != ChannelDetectionResult {
		t.Errorf("event_type = %q", event.EventType)
	}

	// Unknown message types get an error reply.
	if err := ws.WriteJSON(WSMessage{Type: "bogus", ID: "b-1"}); err != nil {
		t.Fatalf("write bogus: %v", err)
	}
	var reply WSMessage
	if err := ws.ReadJSON(&reply); err != nil {
		t.Fatalf("read error reply: %v", err)
	}
	if reply.Type != WSTypeError || reply.ID != "b-1" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestWebSocket_CustomChannels(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?channels=other.feed"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer ws.Close()

	// Subscribe explicitly, then unsubscribe from the custom channel.
	if err := ws.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "s-1", Payload: WSSubscribePayload{Channels: []string{ChannelDetectionResult}}}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack WSMessage
	if err := ws.ReadJSON(&ack); err != nil {
		t.Fatalf("read subscribe ack: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "s-1" {
		t.Errorf("ack = %+v", ack)
	}

	srv.hub.Broadcast("other.feed", "", map[string]any{"n": 1})
	srv.hub.Broadcast(ChannelDetectionResult, "", map[string]any{"n": 2})

	for _, want := range []string{"other.feed", ChannelDetectionResult} {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("read %s: %v", want, err)
		}
		if msg.EventType != want {
			t.Errorf("event_type = %q, want %q", msg.EventType, want)
		}
	}
}

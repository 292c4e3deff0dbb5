package bridge

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"figlens/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// captureBus records published selection events and signals arrivals.
type captureBus struct {
	mu      sync.Mutex
	events  []domain.SelectionEvent
	eventCh chan struct{}
}

func newCaptureBus() *captureBus {
	return &captureBus{eventCh: make(chan struct{}, 16)}
}

func (c *captureBus) Publish(ev domain.SelectionEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	select {
	case c.eventCh <- struct{}{}:
	default:
	}
}

func (c *captureBus) Subscribe() <-chan domain.SelectionEvent     { return nil }
func (c *captureBus) SendUpdate(u domain.Update)                  {}
func (c *captureBus) OnUpdate(name string, h func(domain.Update)) {}
func (c *captureBus) Close()                                      {}

func (c *captureBus) waitEvent(t *testing.T) domain.SelectionEvent {
	t.Helper()
	select {
	case <-c.eventCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for selection event")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func (c *captureBus) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newTestBridge(bus domain.Bus, exportTimeout time.Duration) *Bridge {
	return New(Config{
		Host:          "127.0.0.1",
		Port:          1, // never listened on, tests drive handleUpgrade directly
		ExportTimeout: exportTimeout,
		Logger:        testLogger(),
	}, bus)
}

func dialBridge(t *testing.T, b *Bridge) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(b.handleUpgrade))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// --- Connection state ---

func TestBridge_ConnectedTransitions(t *testing.T) {
	b := newTestBridge(newCaptureBus(), time.Second)
	if b.Connected() {
		t.Fatal("fresh bridge must not report a connection")
	}

	conn := dialBridge(t, b)
	waitFor(t, "connect", b.Connected)

	conn.Close()
	waitFor(t, "disconnect", func() bool { return !b.Connected() })
}

func TestBridge_HelloSetsFileInfo(t *testing.T) {
	b := newTestBridge(newCaptureBus(), time.Second)
	conn := dialBridge(t, b)

	hello := `{"type":"hello","fileKey":"abc123","fileName":"Checkout Flow","plugin":"figlens-host"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(hello)); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "file info", func() bool {
		key, name := b.FileInfo()
		return key == "abc123" && name == "Checkout Flow"
	})
}

// --- Selection ---

func TestBridge_SelectionPublishes(t *testing.T) {
	bus := newCaptureBus()
	b := newTestBridge(bus, time.Second)
	conn := dialBridge(t, b)

	raw := `{"type":"selection","fileKey":"abc","nodes":[{"id":"1:1","name":"Box","type":"RECTANGLE"}]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatal(err)
	}

	ev := bus.waitEvent(t)
	if ev.FileKey != "abc" {
		t.Fatalf("expected fileKey abc, got %q", ev.FileKey)
	}
	if len(ev.Roots) != 1 || ev.Roots[0].ID() != "1:1" {
		t.Fatalf("roots wrong: %+v", ev.Roots)
	}
}

func TestBridge_EmptySelectionPublishesNilRoots(t *testing.T) {
	bus := newCaptureBus()
	b := newTestBridge(bus, time.Second)
	conn := dialBridge(t, b)

	raw := `{"type":"selection","fileKey":"abc","nodes":[]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatal(err)
	}

	ev := bus.waitEvent(t)
	if ev.Roots != nil {
		t.Fatalf("expected nil roots for empty selection, got %+v", ev.Roots)
	}
}

func TestBridge_UnparseableSelectionIsDropped(t *testing.T) {
	bus := newCaptureBus()
	b := newTestBridge(bus, time.Second)
	conn := dialBridge(t, b)

	// Outer JSON is valid, the node dump itself is not (id must be a string)
	bad := `{"type":"selection","fileKey":"abc","nodes":{"id":5}}`
	good := `{"type":"selection","fileKey":"abc","nodes":[{"id":"2:2"}]}`
	for _, raw := range []string{bad, good} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatal(err)
		}
	}

	ev := bus.waitEvent(t)
	if len(ev.Roots) != 1 || ev.Roots[0].ID() != "2:2" {
		t.Fatalf("expected only the parseable selection, got %+v", ev.Roots)
	}
	if bus.count() != 1 {
		t.Fatalf("bad selection must not publish, got %d events", bus.count())
	}
}

func TestBridge_SelectionInheritsHelloFileKey(t *testing.T) {
	bus := newCaptureBus()
	b := newTestBridge(bus, time.Second)
	conn := dialBridge(t, b)

	msgs := []string{
		`{"type":"hello","fileKey":"abc123","fileName":"Design"}`,
		`{"type":"selection","nodes":[{"id":"1:1"}]}`,
	}
	for _, raw := range msgs {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatal(err)
		}
	}

	ev := bus.waitEvent(t)
	if ev.FileKey != "abc123" || ev.FileName != "Design" {
		t.Fatalf("expected hello identity inherited, got %+v", ev)
	}
}

// --- Export ---

func TestBridge_ExportRoundTrip(t *testing.T) {
	b := newTestBridge(newCaptureBus(), 2*time.Second)
	conn := dialBridge(t, b)
	waitFor(t, "connect", b.Connected)

	// Plugin side: answer the export request with SVG payload
	go func() {
		var req Message
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Type != "export" || req.NodeID != "1:1" || req.Format != "svg" {
			conn.WriteJSON(Message{Type: "exportResult", RequestID: req.RequestID, Error: "unexpected request"})
			return
		}
		conn.WriteJSON(Message{
			Type:      "exportResult",
			RequestID: req.RequestID,
			Data:      base64.StdEncoding.EncodeToString([]byte("<svg/>")),
		})
	}()

	svg, err := b.Export(context.Background(), "1:1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if svg != "<svg/>" {
		t.Fatalf("expected decoded SVG, got %q", svg)
	}
}

func TestBridge_ExportHostError(t *testing.T) {
	b := newTestBridge(newCaptureBus(), 2*time.Second)
	conn := dialBridge(t, b)
	waitFor(t, "connect", b.Connected)

	go func() {
		var req Message
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		conn.WriteJSON(Message{Type: "exportResult", RequestID: req.RequestID, Error: "node not found"})
	}()

	_, err := b.Export(context.Background(), "9:9")
	if err == nil || !strings.Contains(err.Error(), "node not found") {
		t.Fatalf("expected host error surfaced, got %v", err)
	}
}

func TestBridge_ExportBadPayload(t *testing.T) {
	b := newTestBridge(newCaptureBus(), 2*time.Second)
	conn := dialBridge(t, b)
	waitFor(t, "connect", b.Connected)

	go func() {
		var req Message
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		conn.WriteJSON(Message{Type: "exportResult", RequestID: req.RequestID, Data: "not-base64!!!"})
	}()

	if _, err := b.Export(context.Background(), "1:1"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestBridge_ExportTimeout(t *testing.T) {
	b := newTestBridge(newCaptureBus(), 100*time.Millisecond)
	dialBridge(t, b)
	waitFor(t, "connect", b.Connected)

	start := time.Now()
	_, err := b.Export(context.Background(), "1:1")
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout took far longer than configured")
	}
}

func TestBridge_ExportWithoutConnection(t *testing.T) {
	b := newTestBridge(newCaptureBus(), time.Second)
	if _, err := b.Export(context.Background(), "1:1"); err == nil {
		t.Fatal("expected error without a host connection")
	}
}

func TestBridge_ExportCancelledContext(t *testing.T) {
	b := newTestBridge(newCaptureBus(), 10*time.Second)
	dialBridge(t, b)
	waitFor(t, "connect", b.Connected)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if _, err := b.Export(ctx, "1:1"); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBridge_ReconnectFailsPendingExports(t *testing.T) {
	b := newTestBridge(newCaptureBus(), 10*time.Second)
	dialBridge(t, b)
	waitFor(t, "connect", b.Connected)

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Export(context.Background(), "1:1")
		errCh <- err
	}()

	// Let the request register, then supersede the connection
	waitFor(t, "pending export", func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.pending) == 1
	})
	dialBridge(t, b)

	select {
	case err := <-errCh:
		if err == nil || !strings.Contains(err.Error(), "superseded") {
			t.Fatalf("expected superseded error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending export never failed over")
	}
}

// --- Close ---

func TestBridge_RequestClose(t *testing.T) {
	b := newTestBridge(newCaptureBus(), time.Second)
	conn := dialBridge(t, b)
	waitFor(t, "connect", b.Connected)

	if err := b.RequestClose(); err != nil {
		t.Fatalf("request close: %v", err)
	}

	var msg Message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read close: %v", err)
	}
	if msg.Type != "close" {
		t.Fatalf("expected close message, got %q", msg.Type)
	}
}

func TestBridge_RequestCloseWithoutConnection(t *testing.T) {
	b := newTestBridge(newCaptureBus(), time.Second)
	if err := b.RequestClose(); err == nil {
		t.Fatal("expected error without a host connection")
	}
}

// Package bridge runs the websocket endpoint the design-tool plugin dials.
// The plugin pushes the raw object tree of the current selection on every
// selection change; the bridge answers export requests against the live
// document and forwards panel-initiated close to the plugin.
package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"figlens/internal/domain"
	"figlens/internal/figma"
	"figlens/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Message is the tagged JSON protocol between the host plugin and the daemon.
type Message struct {
	Type      string          `json:"type"`
	FileKey   string          `json:"fileKey,omitempty"`
	FileName  string          `json:"fileName,omitempty"`
	Plugin    string          `json:"plugin,omitempty"`
	Nodes     json.RawMessage `json:"nodes,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	NodeID    string          `json:"nodeId,omitempty"`
	Format    string          `json:"format,omitempty"`
	Data      string          `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type Config struct {
	Host          string
	Port          int
	Path          string // endpoint path (default: /host)
	ExportTimeout time.Duration
	Heartbeat     time.Duration
	Logger        *slog.Logger
}

// Bridge holds at most one live host connection. A plugin reconnect
// supersedes the previous connection; pending exports on the old connection
// fail over to the error path.
type Bridge struct {
	cfg    Config
	bus    domain.Bus
	logger *slog.Logger
	server *http.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	writeMu  sync.Mutex
	fileKey  string
	fileName string
	pending  map[string]chan Message
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // plugin connects from the host's embedded browser, origin varies
	},
}

func New(cfg Config, bus domain.Bus) *Bridge {
	if cfg.Path == "" {
		cfg.Path = "/host"
	}
	if cfg.Port == 0 {
		cfg.Port = 8765
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = 10 * time.Second
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		cfg:     cfg,
		bus:     bus,
		logger:  cfg.Logger,
		pending: make(map[string]chan Message),
	}
}

func (b *Bridge) Name() string { return "bridge" }

// Serve runs the endpoint until ctx is cancelled.
func (b *Bridge) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(b.cfg.Path, b.handleUpgrade)

	b.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", b.cfg.Host, b.cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	b.logger.Info("bridge listening", "addr", b.server.Addr, "path", b.cfg.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		b.dropConnection(nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return b.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (b *Bridge) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("bridge upgrade failed", "err", err)
		return
	}

	b.mu.Lock()
	if old := b.conn; old != nil {
		b.logger.Warn("new host connection supersedes previous one")
		old.Close()
		b.failPendingLocked("host connection superseded")
	}
	b.conn = conn
	b.mu.Unlock()

	metrics.HostConnected.Set(1)
	b.logger.Info("host plugin connected", "remote", conn.RemoteAddr().String())

	conn.SetReadDeadline(time.Now().Add(2 * b.cfg.Heartbeat))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(2 * b.cfg.Heartbeat))
		return nil
	})

	stopPing := make(chan struct{})
	go b.pingLoop(conn, stopPing)

	defer func() {
		close(stopPing)
		b.dropConnection(conn)
		b.logger.Info("host plugin disconnected")
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Error("bridge read error", "err", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(2 * b.cfg.Heartbeat))

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			b.logger.Warn("invalid bridge message", "err", err)
			continue
		}
		b.dispatch(msg)
	}
}

func (b *Bridge) dispatch(msg Message) {
	switch msg.Type {
	case "hello":
		b.mu.Lock()
		b.fileKey = msg.FileKey
		b.fileName = msg.FileName
		b.mu.Unlock()
		b.logger.Info("host hello", "file", msg.FileName, "fileKey", msg.FileKey, "plugin", msg.Plugin)

	case "selection":
		metrics.SelectionsTotal.Inc()
		b.mu.Lock()
		if msg.FileKey != "" {
			b.fileKey = msg.FileKey
		}
		fileKey, fileName := b.fileKey, b.fileName
		b.mu.Unlock()

		roots, err := figma.ParseNodes(msg.Nodes)
		if err != nil {
			b.logger.Warn("unparseable selection dump, keeping previous state", "err", err)
			return
		}
		b.bus.Publish(domain.SelectionEvent{FileKey: fileKey, FileName: fileName, Roots: roots})

	case "exportResult":
		b.mu.Lock()
		ch, ok := b.pending[msg.RequestID]
		if ok {
			delete(b.pending, msg.RequestID)
		}
		b.mu.Unlock()
		if !ok {
			// Reply arrived after its timeout, nothing is waiting anymore.
			b.logger.Debug("orphan export result", "requestId", msg.RequestID)
			return
		}
		ch <- msg

	default:
		b.logger.Debug("unknown bridge message type", "type", msg.Type)
	}
}

// Export implements domain.Exporter: it asks the plugin to render one node as
// SVG and waits for the correlated reply.
func (b *Bridge) Export(ctx context.Context, nodeID string) (string, error) {
	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return "", fmt.Errorf("no host connection")
	}
	id := uuid.NewString()
	ch := make(chan Message, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	metrics.ExportsTotal.Inc()
	req := Message{Type: "export", RequestID: id, NodeID: nodeID, Format: "svg"}
	if err := b.write(conn, req); err != nil {
		b.forgetPending(id)
		metrics.ExportFailures.Inc()
		return "", fmt.Errorf("send export request: %w", err)
	}

	timer := time.NewTimer(b.cfg.ExportTimeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		if reply.Error != "" {
			metrics.ExportFailures.Inc()
			return "", fmt.Errorf("host export failed: %s", reply.Error)
		}
		svg, err := base64.StdEncoding.DecodeString(reply.Data)
		if err != nil {
			metrics.ExportFailures.Inc()
			return "", fmt.Errorf("decode export payload: %w", err)
		}
		return string(svg), nil
	case <-timer.C:
		b.forgetPending(id)
		metrics.ExportFailures.Inc()
		return "", fmt.Errorf("export timed out after %s", b.cfg.ExportTimeout)
	case <-ctx.Done():
		b.forgetPending(id)
		metrics.ExportFailures.Inc()
		return "", ctx.Err()
	}
}

// RequestClose forwards the panel's close action to the plugin, which shuts
// itself down inside the host.
func (b *Bridge) RequestClose() error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("no host connection")
	}
	return b.write(conn, Message{Type: "close"})
}

// Connected reports whether a host plugin is currently attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// FileInfo returns the key and name of the file the plugin announced.
func (b *Bridge) FileInfo() (key, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fileKey, b.fileName
}

func (b *Bridge) write(conn *websocket.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Bridge) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(b.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			b.writeMu.Unlock()
			if err != nil {
				b.logger.Debug("host ping failed", "err", err)
				return
			}
		}
	}
}

// dropConnection clears the active connection if it is still the given one
// (nil drops unconditionally) and fails everything waiting on it.
func (b *Bridge) dropConnection(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if conn != nil && b.conn != conn {
		return // already superseded
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.failPendingLocked("host disconnected")
	metrics.HostConnected.Set(0)
}

func (b *Bridge) failPendingLocked(reason string) {
	for id, ch := range b.pending {
		ch <- Message{RequestID: id, Error: reason}
		delete(b.pending, id)
	}
}

func (b *Bridge) forgetPending(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

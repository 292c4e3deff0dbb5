// Package panel serves the browser side panel: an embedded page that shows
// the current selection as formatted JSON or generated markup. Updates are
// pushed over a websocket; the page holds no state beyond the latest update.
package panel

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"figlens/internal/config"
	"figlens/internal/domain"
	"figlens/internal/markup"
	"figlens/internal/metrics"

	"github.com/gorilla/websocket"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets/*
var assetsFS embed.FS

// Source is the panel's view of the inspector: the latest finished pass and
// an explicit comment refresh, requested after a token save.
type Source interface {
	Latest() domain.Update
	Refresh(ctx context.Context)
}

// Host is the panel's view of the plugin connection.
type Host interface {
	Connected() bool
	FileInfo() (key, name string)
	RequestClose() error
}

// Previewer renders generated markup to a PNG screenshot.
type Previewer interface {
	Render(ctx context.Context, markupHTML string, width, height int) ([]byte, error)
}

type Config struct {
	Host       string
	Port       int
	Logger     *slog.Logger
	Config     *config.Config
	ConfigPath string
	Version    string

	Store     domain.SettingsStore
	Source    Source
	Bridge    Host
	Generator *markup.Generator
	Previewer Previewer // nil disables /api/preview
}

// Panel implements the display surface.
type Panel struct {
	host      string
	port      int
	logger    *slog.Logger
	server    *http.Server
	tmpl      *htmltemplate.Template
	version   string
	store     domain.SettingsStore
	source    Source
	bridge    Host
	generator *markup.Generator
	previewer Previewer
	bus       domain.Bus
	baseCtx   context.Context

	// Config reference for settings API (protected by cfgMu)
	cfg     *config.Config
	cfgPath string
	cfgMu   sync.RWMutex

	// Auth settings
	authEnabled  bool
	authUser     string
	authPassHash string

	// Connected panel clients and the last selection push for late joiners.
	clientsMu sync.RWMutex
	clients   map[*client]struct{}
	lastPush  []byte
}

// client is one panel websocket connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // panel binds loopback, the page is served from here
	},
}

func New(cfg Config) *Panel {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8766
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	tmpl := htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))

	p := &Panel{
		host:      cfg.Host,
		port:      cfg.Port,
		logger:    cfg.Logger,
		tmpl:      tmpl,
		version:   cfg.Version,
		store:     cfg.Store,
		source:    cfg.Source,
		bridge:    cfg.Bridge,
		generator: cfg.Generator,
		previewer: cfg.Previewer,
		cfg:       cfg.Config,
		cfgPath:   cfg.ConfigPath,
		baseCtx:   context.Background(), // replaced by Serve's ctx
		clients:   make(map[*client]struct{}),
	}

	// Apply auth settings from config
	if cfg.Config != nil && cfg.Config.Panel.Auth.Enabled {
		p.authEnabled = true
		p.authUser = cfg.Config.Panel.Auth.Username
		p.authPassHash = cfg.Config.Panel.Auth.PasswordHash
	}

	return p
}

func (p *Panel) Name() string { return "panel" }

// Handler builds the panel's route table. Split out from Serve so tests can
// drive it with httptest.
func (p *Panel) Handler() http.Handler {
	mux := http.NewServeMux()

	// Static assets served from the embedded assets/ tree.
	assetsHandler := http.FileServer(http.FS(assetsFS))
	mux.Handle("GET /assets/", http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Cache-Control", "public, max-age=86400")
		assetsHandler.ServeHTTP(rw, r)
	}))

	mux.HandleFunc("GET /{$}", p.requireAuth(p.handleIndex))
	mux.HandleFunc("GET /ws", p.requireAuth(p.handleWS))
	mux.HandleFunc("GET /status", p.handleStatus) // public endpoint

	// Settings API (always requires auth)
	mux.HandleFunc("GET /api/config", p.requireAuth(p.handleGetConfig))
	mux.HandleFunc("PUT /api/config", p.requireAuth(p.handleUpdateConfig))
	mux.HandleFunc("POST /api/config/save", p.requireAuth(p.handleSaveConfig))
	mux.HandleFunc("POST /api/preview", p.requireAuth(p.handlePreview))

	if p.cfg != nil && p.cfg.Metrics.Enabled {
		mux.HandleFunc("GET "+p.cfg.Metrics.Endpoint, p.requireAuth(metrics.Collector.Handler()))
	}

	return mux
}

// Serve runs the panel server until ctx is cancelled.
func (p *Panel) Serve(ctx context.Context) error {
	p.baseCtx = ctx

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	p.server = &http.Server{
		Addr:              addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	p.logger.Info("panel started", "addr", "http://"+addr, "auth", p.authEnabled)

	go func() {
		<-ctx.Done()
		p.closeAllClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.server.Shutdown(shutdownCtx)
	}()

	if err := p.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Register subscribes the panel to finished passes. Updates are marshaled
// once and the bytes fanned out, so handlers never retain the node trees.
func (p *Panel) Register(bus domain.Bus) {
	p.bus = bus
	bus.OnUpdate("panel", func(u domain.Update) {
		data, err := json.Marshal(selectionMsg{
			Type:    "selection",
			Rev:     u.Rev,
			FileKey: u.FileKey,
			Data:    u.Data,
		})
		if err != nil {
			p.logger.Error("marshal update", "err", err)
			return
		}
		p.clientsMu.Lock()
		p.lastPush = data
		clients := make([]*client, 0, len(p.clients))
		for c := range p.clients {
			clients = append(clients, c)
		}
		p.clientsMu.Unlock()

		for _, c := range clients {
			if err := c.send(data); err != nil {
				p.logger.Debug("panel push failed", "err", err)
			}
		}
	})
}

// requireAuth wraps a handler with HTTP Basic Auth when auth is enabled.
func (p *Panel) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !p.authEnabled {
			next(rw, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || !p.checkCredentials(user, pass) {
			rw.Header().Set("WWW-Authenticate", `Basic realm="FigLens"`)
			http.Error(rw, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(rw, r)
	}
}

// checkCredentials verifies username and password against stored hash.
func (p *Panel) checkCredentials(user, pass string) bool {
	if subtle.ConstantTimeCompare([]byte(user), []byte(p.authUser)) != 1 {
		return false
	}
	hash := sha256.Sum256([]byte(pass))
	got := hex.EncodeToString(hash[:])
	return subtle.ConstantTimeCompare([]byte(got), []byte(p.authPassHash)) == 1
}

func (p *Panel) handleIndex(rw http.ResponseWriter, r *http.Request) {
	if err := p.tmpl.ExecuteTemplate(rw, "panel.html", map[string]any{
		"Title":   "FigLens",
		"Version": p.version,
	}); err != nil {
		p.logger.Error("template error", "template", "panel", "err", err)
	}
}

func (p *Panel) closeAllClients() {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	for c := range p.clients {
		c.conn.Close()
		delete(p.clients, c)
	}
}

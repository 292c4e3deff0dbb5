package panel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"figlens/internal/config"
	"figlens/internal/metrics"
)

const maxBodySize = 1 << 20

// handleStatus is the public health endpoint. It never exposes the token,
// only whether one is present.
func (p *Panel) handleStatus(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tokenPresent := false
	if token, err := p.store.Token(ctx); err == nil && token != "" {
		tokenPresent = true
	}
	fileKey, fileName := p.bridge.FileInfo()

	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]any{
		"status":        "ok",
		"version":       p.version,
		"hostConnected": p.bridge.Connected(),
		"fileKey":       fileKey,
		"fileName":      fileName,
		"tokenPresent":  tokenPresent,
		"uptimeSeconds": int64(metrics.Collector.Uptime().Seconds()),
		"time":          time.Now().Format(time.RFC3339),
	})
}

// handleGetConfig returns the current config (with secrets masked).
func (p *Panel) handleGetConfig(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")

	p.cfgMu.RLock()
	cfg := p.cfg
	p.cfgMu.RUnlock()

	if cfg == nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(rw).Encode(map[string]string{"error": "config not loaded"})
		return
	}
	sanitized := config.Sanitize(cfg)
	json.NewEncoder(rw).Encode(sanitized)
}

// handleUpdateConfig applies partial or full config updates (in-memory only).
func (p *Panel) handleUpdateConfig(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")

	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()

	if p.cfg == nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(rw).Encode(map[string]string{"error": "config not loaded"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "read body: " + err.Error()})
		return
	}
	defer r.Body.Close()

	// Partial update: { "path": "markup.centerTolerance", "value": 8 }
	// Applied to a copy first so a rejected value never reaches the live config.
	var partial struct {
		Path  string `json:"path"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(body, &partial); err == nil && partial.Path != "" {
		patched := *p.cfg
		if err := config.SetByPath(&patched, partial.Path, partial.Value); err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
			return
		}
		if err := config.Validate(&patched); err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(rw).Encode(map[string]string{"error": "validation: " + err.Error()})
			return
		}
		*p.cfg = patched
		p.logger.Info("config updated via path", "path", partial.Path, "value", partial.Value)
		json.NewEncoder(rw).Encode(map[string]string{"status": "updated", "path": partial.Path})
		return
	}

	// Full config update: unmarshal into a temporary copy first, then validate
	var candidate config.Config
	if err := json.Unmarshal(body, &candidate); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "invalid config: " + err.Error()})
		return
	}
	if err := config.Validate(&candidate); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "validation: " + err.Error()})
		return
	}
	*p.cfg = candidate

	p.logger.Info("config updated (full)")
	json.NewEncoder(rw).Encode(map[string]string{"status": "updated"})
}

// handleSaveConfig persists the in-memory config to disk.
func (p *Panel) handleSaveConfig(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")

	p.cfgMu.RLock()
	cfg := p.cfg
	cfgPath := p.cfgPath
	p.cfgMu.RUnlock()

	if cfg == nil || cfgPath == "" {
		rw.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(rw).Encode(map[string]string{"error": "config not available"})
		return
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(rw).Encode(map[string]string{"error": "save failed: " + err.Error()})
		return
	}

	p.logger.Info("config saved to disk", "path", cfgPath)
	json.NewEncoder(rw).Encode(map[string]string{"status": "saved", "path": cfgPath})
}

// handlePreview renders the current selection's markup in headless Chrome
// and returns a PNG.
func (p *Panel) handlePreview(rw http.ResponseWriter, r *http.Request) {
	if p.previewer == nil {
		http.Error(rw, "preview disabled", http.StatusNotFound)
		return
	}

	u := p.source.Latest()
	if len(u.Data) == 0 {
		http.Error(rw, "nothing selected", http.StatusUnprocessableEntity)
		return
	}

	width, height := 0, 0
	if geo := u.Data[0].Geometry; geo != nil {
		width, height = geo.Width, geo.Height
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	png, err := p.previewer.Render(ctx, p.generator.Generate(u.Data), width, height)
	if err != nil {
		p.logger.Error("preview render failed", "err", err)
		http.Error(rw, "preview failed", http.StatusBadGateway)
		return
	}

	rw.Header().Set("Content-Type", "image/png")
	rw.Write(png)
}

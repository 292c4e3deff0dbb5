// Package preview renders generated markup to a PNG with headless Chrome.
package preview

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/chromedp/chromedp"
)

// Renderer screenshots markup in a headless Chrome instance. Each call spins
// up a fresh browser so a wedged page never poisons the next render.
type Renderer struct {
	chromePath    string
	defaultWidth  int
	defaultHeight int
	logger        *slog.Logger
}

// Config holds configuration for the renderer.
type Config struct {
	ChromePath string // explicit Chrome binary, empty = let chromedp find one
	Width      int    // viewport fallback when the markup has no root geometry
	Height     int
	Logger     *slog.Logger
}

// New creates a Renderer.
func New(cfg Config) *Renderer {
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 800
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Renderer{
		chromePath:    cfg.ChromePath,
		defaultWidth:  cfg.Width,
		defaultHeight: cfg.Height,
		logger:        cfg.Logger,
	}
}

// Render loads the markup into a blank page and captures the viewport.
// Non-positive dimensions fall back to the configured defaults.
func (r *Renderer) Render(ctx context.Context, markup string, width, height int) ([]byte, error) {
	if width <= 0 {
		width = r.defaultWidth
	}
	if height <= 0 {
		height = r.defaultHeight
	}

	taskCtx, cancel := r.newContext(ctx)
	defer cancel()

	page := wrapDocument(markup)
	url := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(page))

	var buf []byte
	err := chromedp.Run(taskCtx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("render preview: %w", err)
	}

	r.logger.Debug("preview rendered", "width", width, "height", height, "bytes", len(buf))
	return buf, nil
}

// newContext creates a chromedp context for one render. The caller MUST call
// cancel() when done.
func (r *Renderer) newContext(parentCtx context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.Flag("hide-scrollbars", true),
	)
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	return taskCtx, func() {
		taskCancel()
		allocCancel()
	}
}

// wrapDocument embeds the markup fragment in a minimal page so absolute
// positioning resolves against a clean body.
func wrapDocument(markup string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>preview</title>
<style>
  html, body { margin: 0; padding: 0; background: #ffffff; }
  * { box-sizing: border-box; }
</style>
</head>
<body>
%s
</body>
</html>`, markup)
}

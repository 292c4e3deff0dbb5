package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"figlens/internal/domain"
	"figlens/internal/metrics"

	"github.com/gorilla/websocket"
)

// selectionMsg is a pushed pass. Data marshals as null for an empty
// selection so the page can tell "nothing selected" from "empty list".
type selectionMsg struct {
	Type    string         `json:"type"`
	Rev     uint64         `json:"rev"`
	FileKey string         `json:"fileKey,omitempty"`
	Data    []*domain.Node `json:"data"`
}

// panelMsg is a command from the page.
type panelMsg struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// outMsg is every non-selection reply to the page.
type outMsg struct {
	Type    string `json:"type"`
	Token   string `json:"token,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Content string `json:"content,omitempty"`
	Rev     uint64 `json:"rev,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (p *Panel) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		p.logger.Error("panel upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn}
	p.clientsMu.Lock()
	p.clients[c] = struct{}{}
	last := p.lastPush
	p.clientsMu.Unlock()

	metrics.PanelClients.Inc()
	p.logger.Info("panel client connected", "remote", conn.RemoteAddr().String())

	// Late joiners get the latest selection right away.
	if last != nil {
		c.send(last)
	}

	defer func() {
		p.clientsMu.Lock()
		delete(p.clients, c)
		p.clientsMu.Unlock()
		conn.Close()
		metrics.PanelClients.Dec()
		p.logger.Info("panel client disconnected")
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Error("panel read error", "err", err)
			}
			return
		}

		var msg panelMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			p.logger.Warn("invalid panel message", "err", err)
			continue
		}
		p.handleCommand(c, msg)
	}
}

// handleCommand serves one page command. Token operations hit the settings
// store synchronously; they are rare and the page expects a confirmation
// message for each.
func (p *Panel) handleCommand(c *client, msg panelMsg) {
	ctx, cancel := context.WithTimeout(p.baseCtx, 10*time.Second)
	defer cancel()

	switch msg.Type {
	case "getToken":
		token, err := p.store.Token(ctx)
		if err != nil {
			p.logger.Error("token read failed", "err", err)
			p.reply(c, outMsg{Type: "error", Error: "token read failed"})
			return
		}
		p.reply(c, outMsg{Type: "token", Token: token})

	case "saveToken":
		if err := p.store.SaveToken(ctx, msg.Token); err != nil {
			p.logger.Error("token save failed", "err", err)
			p.reply(c, outMsg{Type: "error", Error: "token save failed"})
			return
		}
		p.logger.Info("access token saved")
		p.reply(c, outMsg{Type: "tokenSaved"})

	case "clearToken":
		if err := p.store.ClearToken(ctx); err != nil {
			p.logger.Error("token clear failed", "err", err)
			p.reply(c, outMsg{Type: "error", Error: "token clear failed"})
			return
		}
		p.logger.Info("access token cleared")
		p.reply(c, outMsg{Type: "tokenCleared"})

	case "refresh":
		p.source.Refresh(p.baseCtx)

	case "render":
		u := p.source.Latest()
		content, err := p.renderContent(u, msg.Mode)
		if err != nil {
			p.reply(c, outMsg{Type: "error", Error: err.Error()})
			return
		}
		p.reply(c, outMsg{Type: "rendered", Mode: msg.Mode, Content: content, Rev: u.Rev})

	case "close":
		if err := p.bridge.RequestClose(); err != nil {
			p.logger.Warn("close request failed", "err", err)
			p.reply(c, outMsg{Type: "error", Error: "no host connection"})
			return
		}
		p.logger.Info("close forwarded to host plugin")

	default:
		p.logger.Debug("unknown panel command", "type", msg.Type)
	}
}

func (p *Panel) renderContent(u domain.Update, mode string) (string, error) {
	switch mode {
	case "markup":
		return p.generator.Generate(u.Data), nil
	case "", "json":
		data, err := json.MarshalIndent(u.Data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown render mode: %s", mode)
	}
}

func (p *Panel) reply(c *client, msg outMsg) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := c.send(data); err != nil {
		p.logger.Debug("panel reply failed", "err", err)
	}
}

// Package notify announces newly seen Figma comments to chat backends.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"figlens/internal/domain"
	"figlens/internal/metrics"
)

// Store is the persistence the dispatcher needs for deduplication.
type Store interface {
	// MarkCommentSeen records the comment id and reports whether it was new.
	MarkCommentSeen(ctx context.Context, id string) (bool, error)
}

// Config configures the Dispatcher.
type Config struct {
	Notifiers []domain.Notifier
	Store     Store
	Logger    *slog.Logger
	QueueSize int
}

// Dispatcher watches finished passes for comments it has not announced before
// and fans each announcement out to every configured notifier. Updates are
// queued so the publisher never blocks on notifier I/O.
type Dispatcher struct {
	notifiers []domain.Notifier
	store     Store
	logger    *slog.Logger
	queue     chan domain.Update
}

// New creates a Dispatcher. It does nothing until Register and Serve are called.
func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 8
	}
	return &Dispatcher{
		notifiers: cfg.Notifiers,
		store:     cfg.Store,
		logger:    cfg.Logger,
		queue:     make(chan domain.Update, cfg.QueueSize),
	}
}

// Register hooks the dispatcher into the bus. A full queue sheds the update;
// the comments ride along on the next pass anyway.
func (d *Dispatcher) Register(bus domain.Bus) {
	bus.OnUpdate("notify", func(u domain.Update) {
		select {
		case d.queue <- u:
		default:
			d.logger.Debug("notify queue full, dropping update", "rev", u.Rev)
		}
	})
}

// Serve drains the queue until ctx is done. Implements suture.Service.
func (d *Dispatcher) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u := <-d.queue:
			d.process(ctx, u)
		}
	}
}

type freshComment struct {
	nodeName string
	comment  domain.Comment
}

func (d *Dispatcher) process(ctx context.Context, u domain.Update) {
	var fresh []freshComment
	for _, root := range u.Data {
		root.Walk(func(n *domain.Node) {
			for _, c := range n.Comments {
				isNew, err := d.store.MarkCommentSeen(ctx, c.ID)
				if err != nil {
					d.logger.Warn("comment dedup failed", "comment", c.ID, "err", err)
					continue
				}
				if isNew {
					fresh = append(fresh, freshComment{nodeName: n.Name, comment: c})
				}
			}
		})
	}
	if len(fresh) == 0 {
		return
	}

	text := formatAnnouncement(u.FileKey, fresh)
	for _, n := range d.notifiers {
		if err := n.Send(ctx, text); err != nil {
			d.logger.Error("notifier send failed", "notifier", n.Name(), "err", err)
			continue
		}
		metrics.NotifierSends.Inc()
		d.logger.Info("comments announced", "notifier", n.Name(), "count", len(fresh))
	}
}

func formatAnnouncement(fileKey string, fresh []freshComment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💬 %d new comment(s)", len(fresh))
	if fileKey != "" {
		fmt.Fprintf(&b, " in file %s", fileKey)
	}
	b.WriteString("\n")
	for _, f := range fresh {
		fmt.Fprintf(&b, "• %s (%s): %s\n", f.nodeName, f.comment.User, f.comment.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

// splitMessage splits a message into chunks that fit within the max length,
// trying to split on newlines when possible.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}

		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}

		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}

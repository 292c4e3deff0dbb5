// Package inspector orchestrates selection passes: serialize the tree, push
// it to the panel right away, then enrich a copy with vector exports and
// remote comments. Every pass carries a generation number; a pass whose
// augmentation outlives its generation is discarded, so a slow fetch can
// never overwrite the output of a newer selection.
package inspector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"figlens/internal/domain"
	"figlens/internal/metrics"
	"figlens/internal/serialize"

	"github.com/oklog/ulid/v2"
)

const defaultExportConcurrency = 3

type Config struct {
	Serializer *serialize.Serializer
	Exporter   domain.Exporter      // nil disables vector exports
	Comments   domain.CommentSource // nil disables comment lookups
	Bus        domain.Bus
	Logger     *slog.Logger
	// ExportConcurrency bounds parallel export requests per pass (default 3).
	ExportConcurrency int
}

type Inspector struct {
	ser         *serialize.Serializer
	exporter    domain.Exporter
	comments    domain.CommentSource
	bus         domain.Bus
	logger      *slog.Logger
	concurrency int

	gen atomic.Uint64

	mu         sync.Mutex
	cancelPass context.CancelFunc
	latest     domain.Update
}

func New(cfg Config) *Inspector {
	if cfg.ExportConcurrency <= 0 {
		cfg.ExportConcurrency = defaultExportConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Inspector{
		ser:         cfg.Serializer,
		exporter:    cfg.Exporter,
		comments:    cfg.Comments,
		bus:         cfg.Bus,
		logger:      cfg.Logger,
		concurrency: cfg.ExportConcurrency,
	}
}

func (i *Inspector) Name() string { return "inspector" }

// Serve consumes selection events until ctx is cancelled. Each event starts a
// new generation and cancels whatever the previous pass was still doing.
func (i *Inspector) Serve(ctx context.Context) error {
	i.logger.Info("inspector started")
	events := i.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			i.logger.Info("inspector stopping")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				i.logger.Info("selection channel closed, inspector stopping")
				return nil
			}
			gen := i.gen.Add(1)
			passCtx := i.beginPass(ctx)
			go i.process(passCtx, gen, ev)
		}
	}
}

// beginPass cancels the previous pass and returns the context for a new one.
func (i *Inspector) beginPass(parent context.Context) context.Context {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancelPass != nil {
		i.cancelPass()
	}
	ctx, cancel := context.WithCancel(parent)
	i.cancelPass = cancel
	return ctx
}

func (i *Inspector) process(ctx context.Context, gen uint64, ev domain.SelectionEvent) {
	start := time.Now()
	defer func() { metrics.PassLatency.Observe(time.Since(start).Seconds()) }()

	passID := ulid.Make().String()
	i.logger.Debug("selection pass", "pass", passID, "rev", gen, "file", ev.FileKey, "roots", len(ev.Roots))

	if len(ev.Roots) == 0 {
		// Empty selection publishes a null payload immediately, no
		// augmentation to wait for.
		i.publish(domain.Update{Rev: gen, FileKey: ev.FileKey, Data: nil})
		return
	}

	nodes := i.ser.SerializeAll(ev.Roots)
	metrics.NodesSerialized.Add(int64(len(domain.CollectIDs(nodes))))

	// Fast path: the panel gets the plain records before any slow work.
	i.publish(domain.Update{Rev: gen, FileKey: ev.FileKey, Data: nodes})

	enriched := domain.CloneNodes(nodes)
	i.exportRoots(ctx, enriched)
	if i.stale(gen, passID, "exports") {
		return
	}
	i.attachComments(ctx, ev.FileKey, enriched)
	if i.stale(gen, passID, "comments") {
		return
	}

	i.publish(domain.Update{Rev: gen, FileKey: ev.FileKey, Data: enriched})
	i.logger.Debug("pass complete", "pass", passID, "rev", gen, "took", time.Since(start))
}

// exportRoots requests one vector export per top-level node with bounded
// concurrency. A failed export is logged and the field stays empty.
func (i *Inspector) exportRoots(ctx context.Context, nodes []*domain.Node) {
	if i.exporter == nil {
		return
	}
	sem := make(chan struct{}, i.concurrency)
	var wg sync.WaitGroup
	for _, n := range nodes {
		wg.Add(1)
		go func(n *domain.Node) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			svg, err := i.exporter.Export(ctx, n.ID)
			if err != nil {
				i.logger.Warn("vector export failed, omitting", "node", n.ID, "err", err)
				return
			}
			n.SVG = svg
		}(n)
	}
	wg.Wait()
}

// attachComments looks up remote comments and hangs them off matching nodes
// anywhere in the trees. Lookup failures degrade to no comments.
func (i *Inspector) attachComments(ctx context.Context, fileKey string, nodes []*domain.Node) {
	if i.comments == nil || fileKey == "" {
		return
	}
	byNode, err := i.comments.CommentsByNode(ctx, fileKey, domain.CollectIDs(nodes))
	if err != nil {
		i.logger.Warn("comment lookup failed, continuing without comments", "file", fileKey, "err", err)
		return
	}
	if len(byNode) == 0 {
		return
	}
	for _, n := range nodes {
		n.Walk(func(m *domain.Node) {
			if cs := byNode[m.ID]; len(cs) > 0 {
				m.Comments = cs
			}
		})
	}
}

// stale reports whether a newer generation has started since gen.
func (i *Inspector) stale(gen uint64, passID, phase string) bool {
	if i.gen.Load() == gen {
		return false
	}
	metrics.StaleDrops.Inc()
	i.logger.Debug("discarding stale pass", "pass", passID, "rev", gen, "after", phase)
	return true
}

func (i *Inspector) publish(u domain.Update) {
	i.mu.Lock()
	i.latest = u
	i.mu.Unlock()
	i.bus.SendUpdate(u)
}

// Latest returns a deep copy of the most recently published update.
func (i *Inspector) Latest() domain.Update {
	i.mu.Lock()
	defer i.mu.Unlock()
	return domain.Update{
		Rev:     i.latest.Rev,
		FileKey: i.latest.FileKey,
		Data:    domain.CloneNodes(i.latest.Data),
	}
}

// Refresh re-runs comment augmentation over the retained records and
// publishes the result as a new generation. The panel calls this right after
// a token save is confirmed, so comments appear without waiting for the next
// selection change.
func (i *Inspector) Refresh(parent context.Context) {
	i.mu.Lock()
	latest := i.latest
	i.mu.Unlock()
	if latest.Rev == 0 || len(latest.Data) == 0 {
		return
	}

	gen := i.gen.Add(1)
	ctx := i.beginPass(parent)
	go func() {
		passID := ulid.Make().String()
		enriched := domain.CloneNodes(latest.Data)
		i.attachComments(ctx, latest.FileKey, enriched)
		if i.stale(gen, passID, "refresh") {
			return
		}
		i.publish(domain.Update{Rev: gen, FileKey: latest.FileKey, Data: enriched})
	}()
}

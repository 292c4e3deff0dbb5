package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"figlens/internal/domain"
	"figlens/internal/metrics"
)

const (
	defaultAPIBase        = "https://api.figma.com"
	defaultRequestTimeout = 15 * time.Second
)

// CommentsClient fetches file comments from the REST API and partitions them
// by the node each comment is attached to. Lookups are advisory: the caller
// treats any error as an empty result. The client itself never retries and
// never caches.
type CommentsClient struct {
	base    string
	store   domain.SettingsStore
	client  *http.Client
	limiter *RateLimiter
	logger  *slog.Logger
}

type CommentsConfig struct {
	APIBase       string
	Timeout       time.Duration
	RatePerMinute float64
	Logger        *slog.Logger
}

// NewCommentsClient creates a comments client reading the access token from
// the settings store on every call, so a token saved mid-session is picked up
// without a restart.
func NewCommentsClient(store domain.SettingsStore, cfg CommentsConfig) *CommentsClient {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CommentsClient{
		base:    cfg.APIBase,
		store:   store,
		client:  SharedHTTPClient(cfg.Timeout),
		limiter: NewRateLimiter(5, cfg.RatePerMinute),
		logger:  cfg.Logger,
	}
}

type wireComment struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	User    struct {
		Handle string `json:"handle"`
	} `json:"user"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
	ClientMeta *struct {
		NodeID string `json:"node_id"`
	} `json:"client_meta"`
}

type wireCommentsPage struct {
	Comments []wireComment `json:"comments"`
}

// CommentsByNode returns the file's comments grouped by node id, keeping only
// ids in the requested set. Without a stored token it returns an empty result
// and performs no network traffic at all.
func (c *CommentsClient) CommentsByNode(ctx context.Context, fileKey string, ids []string) (map[string][]domain.Comment, error) {
	token, err := c.store.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if token == "" || fileKey == "" || len(ids) == 0 {
		return map[string][]domain.Comment{}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/files/%s/comments", c.base, url.PathEscape(fileKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-Figma-Token", token)

	metrics.CommentFetches.Inc()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.CommentFailures.Inc()
		return nil, fmt.Errorf("comments request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.CommentFailures.Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("comments %d: %s", resp.StatusCode, string(body))
	}

	var page wireCommentsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		metrics.CommentFailures.Inc()
		return nil, fmt.Errorf("decode comments: %w", err)
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	out := make(map[string][]domain.Comment)
	for _, wc := range page.Comments {
		if wc.ClientMeta == nil || wc.ClientMeta.NodeID == "" {
			continue // file-level comment, nothing to anchor it to
		}
		nodeID := wc.ClientMeta.NodeID
		if !wanted[nodeID] {
			continue
		}
		out[nodeID] = append(out[nodeID], domain.Comment{
			ID:         wc.ID,
			Message:    wc.Message,
			User:       wc.User.Handle,
			CreatedAt:  wc.CreatedAt,
			ResolvedAt: wc.ResolvedAt,
		})
	}
	c.logger.Debug("comments fetched", "file", fileKey, "total", len(page.Comments), "matched", len(out))
	return out, nil
}

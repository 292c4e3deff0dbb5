package domain

import "context"

// Exporter renders one node to vector markup through the live host
// connection. A failed export degrades to an omitted field, never an aborted
// pass, so callers log the error and move on.
type Exporter interface {
	Export(ctx context.Context, nodeID string) (string, error)
}

// CommentSource looks up remote comments for a file, partitioned by the node
// id each comment is attached to. Ids absent from the result simply have no
// comments.
type CommentSource interface {
	CommentsByNode(ctx context.Context, fileKey string, ids []string) (map[string][]Comment, error)
}

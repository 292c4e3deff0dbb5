package domain

import "context"

// Notifier announces comment activity on an outbound messaging service.
// Notifiers never talk back to the design service.
type Notifier interface {
	Name() string
	Send(ctx context.Context, text string) error
}

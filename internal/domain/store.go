package domain

import "context"

// SettingsStore persists panel settings, including the single access-token
// slot. A missing key reads back as the empty string, not an error.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	Token(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error

	Close() error
}

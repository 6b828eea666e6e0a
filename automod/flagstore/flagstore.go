// Automod component for local moderation flags, keyed by subject (eg, "reddit/comment/abc123").
//
// Flags never result in a platform call. They mark comments for human review.
package flagstore

import (
	"context"
)

type FlagStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Add(ctx context.Context, key string, flags []string) error
	Remove(ctx context.Context, key string, flags []string) error
}

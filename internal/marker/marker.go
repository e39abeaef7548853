// Package marker records which Pub/Sub messages have already been counted so
// that a redelivered message is not counted twice.
package marker

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

type ProcessMarker interface {
	// Acquire returns true if the caller got the right to process msgID.
	Acquire(ctx context.Context, msgID string) (bool, error)
	// Release gives up the right so that a redelivery can be processed again.
	Release(ctx context.Context, msgID string) error
}

var _ ProcessMarker = (*LocalMarker)(nil)

// LocalMarker only deduplicates deliveries to this process.
type LocalMarker struct {
	cache *cache.Cache
}

func NewLocalMarker(ttl time.Duration) *LocalMarker {
	return &LocalMarker{cache: cache.New(ttl, ttl)}
}

func (c *LocalMarker) Acquire(ctx context.Context, msgID string) (bool, error) {
	err := c.cache.Add(msgID, struct{}{}, cache.DefaultExpiration)
	return err == nil, nil
}

func (c *LocalMarker) Release(ctx context.Context, msgID string) error {
	c.cache.Delete(msgID)
	return nil
}

package storage

import (
	"context"
	"errors"
	"slices"

	"expensetrack/internal/cache"
)

// Cached is a read-through, write-through decorator over a KV.
type Cached struct {
	next  KV
	cache cache.Cache[[]byte]
}

func NewCached(next KV, c cache.Cache[[]byte]) *Cached {
	return &Cached{next: next, cache: c}
}

func (c *Cached) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.cache.Get(key); ok {
		return slices.Clone(v), nil
	}
	v, err := c.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, slices.Clone(v))
	return v, nil
}

func (c *Cached) Set(ctx context.Context, key string, value []byte) error {
	if err := c.next.Set(ctx, key, value); err != nil {
		c.cache.Delete(key)
		return err
	}
	c.cache.Set(key, slices.Clone(value))
	return nil
}

func (c *Cached) Delete(ctx context.Context, key string) error {
	c.cache.Delete(key)
	return c.next.Delete(ctx, key)
}

// Close closes the wrapped store when it holds resources.
func (c *Cached) Close() error {
	if cl, ok := c.next.(Closer); ok {
		return cl.Close()
	}
	return nil
}

// Stats exposes cache counters for diagnostics.
func (c *Cached) Stats() cache.Stats {
	return c.cache.Stats()
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

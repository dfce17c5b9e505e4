package cache

import (
	"context"
	"fmt"
)

// Query is a cached read. Fetch is called only when the cache holds no
// fresh value for Key.
type Query[T any] struct {
	Key      Key
	Fetch    func(ctx context.Context) (T, error)
	Disabled bool
}

// Run returns the cached value of q.Key or fetches it.
func (q Query[T]) Run(ctx context.Context, c *Client) (T, error) {
	var zero T
	if q.Disabled {
		return zero, ErrDisabled
	}
	l, err := c.load(ctx, q.Key, func(ctx context.Context) (any, error) {
		return q.Fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	value, ok := l.value.(T)
	if !ok {
		return zero, fmt.Errorf("cache: key %s holds %T", q.Key, l.value)
	}
	return value, nil
}

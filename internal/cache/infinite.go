package cache

import (
	"context"
	"fmt"
	"slices"
)

// InfiniteQuery is a cached sequence of pages. Each next page is fetched with
// the cursor of the last item of the last loaded page.
type InfiniteQuery[T any] struct {
	Key       Key
	FetchPage func(ctx context.Context, cursor string) ([]T, error)
	Cursor    func(item T) string
}

// Run returns the loaded pages, fetching the first page when nothing fresh is
// cached. A refetch starts over from the first page.
func (q InfiniteQuery[T]) Run(ctx context.Context, c *Client) ([][]T, error) {
	pages, _, err := q.run(ctx, c)
	if err != nil {
		return nil, err
	}
	return slices.Clone(pages), nil
}

func (q InfiniteQuery[T]) run(ctx context.Context, c *Client) ([][]T, uint64, error) {
	l, err := c.load(ctx, q.Key, func(ctx context.Context) (any, error) {
		page, err := q.FetchPage(ctx, "")
		if err != nil {
			return nil, err
		}
		return [][]T{page}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	pages, ok := l.value.([][]T)
	if !ok {
		return nil, 0, fmt.Errorf("cache: key %s holds %T", q.Key, l.value)
	}
	return pages, l.gen, nil
}

// FetchNextPage loads the page after the last loaded one and returns all
// pages. When the last page is empty it returns ErrNoMorePages without
// fetching. A page whose sequence was invalidated or refetched while it was
// in flight is returned to the caller but not cached.
func (q InfiniteQuery[T]) FetchNextPage(ctx context.Context, c *Client) ([][]T, error) {
	pages, gen, err := q.run(ctx, c)
	if err != nil {
		return nil, err
	}
	if !HasNextPage(pages) {
		return nil, ErrNoMorePages
	}

	last := pages[len(pages)-1]
	cursor := q.Cursor(last[len(last)-1])

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fmt.Sprintf("%snext:%d:%s", q.Key.id(), gen, cursor), func() (any, error) {
		page, err := q.FetchPage(shared, cursor)
		if err != nil {
			return nil, err
		}
		next := append(slices.Clone(pages), page)
		if !c.replace(q.Key, gen, next) {
			c.logger.Debug("page fetched for an outdated query", "key", q.Key.String())
		}
		return next, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.logger.Debug("page fetch failed", "key", q.Key.String(), "error", res.Err)
			return nil, res.Err
		}
		return slices.Clone(res.Val.([][]T)), nil
	}
}

// HasNextPage reports whether another page may follow: the sequence is
// non-empty and its last page is non-empty.
func HasNextPage[T any](pages [][]T) bool {
	return len(pages) > 0 && len(pages[len(pages)-1]) > 0
}

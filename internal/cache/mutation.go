package cache

import "context"

// Mutation is a write with declared cache side effects. After Do succeeds,
// the keys returned by Invalidates are marked stale and those returned by
// Removes are dropped. Nothing is touched when Do fails.
type Mutation[In, Out any] struct {
	Name        string
	Do          func(ctx context.Context, in In) (Out, error)
	Invalidates func(in In, out Out) []Key
	Removes     func(in In, out Out) []Key
}

// Run performs the mutation.
func (m Mutation[In, Out]) Run(ctx context.Context, c *Client, in In) (Out, error) {
	out, err := m.Do(ctx, in)
	if err != nil {
		c.logger.Debug("mutation failed", "mutation", m.Name, "error", err)
		return out, err
	}
	if m.Invalidates != nil {
		c.Invalidate(m.Invalidates(in, out)...)
	}
	if m.Removes != nil {
		c.Remove(m.Removes(in, out)...)
	}
	return out, nil
}

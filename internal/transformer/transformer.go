// Package transformer defines the in-place table transformations applied
// between reading a raw table and caching it.
package transformer

import (
	"context"

	"kgtorrent/internal/table"
)

// Transformer mutates a table in place.
type Transformer interface {
	Apply(ctx context.Context, t *table.Table) error
}

// Func adapts a function to Transformer.
type Func func(ctx context.Context, t *table.Table) error

// Apply calls f.
func (f Func) Apply(ctx context.Context, t *table.Table) error { return f(ctx, t) }

// Chain is an ordered list of transformers; the first error stops the chain.
type Chain []Transformer

// Apply runs every transformer in order.
func (c Chain) Apply(ctx context.Context, t *table.Table) error {
	for _, tr := range c {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := tr.Apply(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Package batch runs a slice of independent tasks with bounded concurrency and
// returns one typed outcome per task, in input order.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one task. Exactly one of Value or Err is meaningful.
type Outcome[R any] struct {
	Index int
	Value R
	Err   error
}

// OK reports whether the task succeeded.
func (o Outcome[R]) OK() bool { return o.Err == nil }

// Run calls fn for every item with at most limit calls in flight. A failing
// task never cancels its siblings; its error is stored in its outcome.
// limit <= 0 means unbounded.
func Run[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) []Outcome[R] {
	out := make([]Outcome[R], len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		out[i].Index = i
		if err := ctx.Err(); err != nil {
			out[i].Err = err
			continue
		}
		g.Go(func() error {
			v, err := fn(ctx, item)
			out[i].Value = v
			out[i].Err = err
			return nil
		})
	}

	_ = g.Wait()
	return out
}

// Partition splits outcomes into successful values and failures, both in
// input order.
func Partition[R any](outcomes []Outcome[R]) (ok []R, failed []Outcome[R]) {
	for _, o := range outcomes {
		if o.OK() {
			ok = append(ok, o.Value)
		} else {
			failed = append(failed, o)
		}
	}
	return ok, failed
}

package async

import (
	"context"

	"github.com/comalice/fsmx"
)

// AwaitFunc is an async effect producing no output.
type AwaitFunc[E, O, C any] func(ctx context.Context, ev E, c *C, tok CancelToken, pub fsmx.Publisher[O]) error

// EmitFunc is a synchronous effect producing a required output.
type EmitFunc[E, O, C any] func(ev E, c *C, pub fsmx.Publisher[O]) O

// Backoff runs between retry attempts.
type Backoff[E, O, C any] func(ctx context.Context, attempt int, ev E, c *C, tok CancelToken, pub fsmx.Publisher[O]) error

// FromStage anchors a fluent pipeline declaration at a source state.
type FromStage[S comparable, E, O, C any] struct {
	attach func(from, to S, fr Fragment[E, O, C])
	from   S
}

// From starts a fluent pipeline declaration on the adapter.
func (a *Adapter[S, E, O, C]) From(s S) FromStage[S, E, O, C] {
	return FromStage[S, E, O, C]{attach: a.BindAsync, from: s}
}

// On documents the event shape that triggers the base transition. Pipelines
// are keyed by (from, to); the event type does not narrow the binding.
func On[T any, S comparable, E, O, C any](fs FromStage[S, E, O, C]) FromStage[S, E, O, C] {
	return fs
}

// To fixes the destination state and opens the pipeline for fragments.
func (fs FromStage[S, E, O, C]) To(to S) *Pipeline[S, E, O, C] {
	return &Pipeline[S, E, O, C]{attach: fs.attach, from: fs.from, to: to}
}

// Pipeline accumulates fragments for one (from, to) binding. Fragments run
// in declaration order; the last produced output wins.
type Pipeline[S comparable, E, O, C any] struct {
	attach    func(from, to S, fr Fragment[E, O, C])
	from, to  S
	fragments []Fragment[E, O, C]
}

// Await appends an async effect producing no output.
func (p *Pipeline[S, E, O, C]) Await(fn AwaitFunc[E, O, C]) *Pipeline[S, E, O, C] {
	p.fragments = append(p.fragments, func(ctx context.Context, ev E, c *C, tok CancelToken, pub fsmx.Publisher[O]) (O, bool, error) {
		var zero O
		if err := fn(ctx, ev, c, tok, pub); err != nil {
			return zero, false, err
		}
		return zero, false, nil
	})
	return p
}

// Emit appends a synchronous effect whose result is always produced.
func (p *Pipeline[S, E, O, C]) Emit(fn EmitFunc[E, O, C]) *Pipeline[S, E, O, C] {
	p.fragments = append(p.fragments, func(_ context.Context, ev E, c *C, _ CancelToken, pub fsmx.Publisher[O]) (O, bool, error) {
		return fn(ev, c, pub), true, nil
	})
	return p
}

// Then appends an async effect producing an optional output.
func (p *Pipeline[S, E, O, C]) Then(fn Fragment[E, O, C]) *Pipeline[S, E, O, C] {
	p.fragments = append(p.fragments, fn)
	return p
}

// Retry wraps the fragments accumulated so far into a single looping
// fragment: up to attempts runs of the sequence, invoking backoff between
// attempts. A stop observed at any point yields no output (and no error).
func (p *Pipeline[S, E, O, C]) Retry(attempts int, backoff Backoff[E, O, C]) *Pipeline[S, E, O, C] {
	seq := p.fragments
	p.fragments = []Fragment[E, O, C]{retryFragment(seq, attempts, backoff)}
	return p
}

// Attach composes the accumulated fragments and registers the binding.
func (p *Pipeline[S, E, O, C]) Attach() {
	p.attach(p.from, p.to, composeFragments(p.fragments))
}

func composeFragments[E, O, C any](frs []Fragment[E, O, C]) Fragment[E, O, C] {
	return func(ctx context.Context, ev E, c *C, tok CancelToken, pub fsmx.Publisher[O]) (O, bool, error) {
		var out O
		var produced bool
		for _, fr := range frs {
			v, ok, err := fr(ctx, ev, c, tok, pub)
			if err != nil {
				var zero O
				return zero, false, err
			}
			if ok {
				out, produced = v, true
			}
			if tok.StopRequested() {
				break
			}
		}
		return out, produced, nil
	}
}

func retryFragment[E, O, C any](seq []Fragment[E, O, C], attempts int, backoff Backoff[E, O, C]) Fragment[E, O, C] {
	return func(ctx context.Context, ev E, c *C, tok CancelToken, pub fsmx.Publisher[O]) (O, bool, error) {
		var zero O
		for attempt := 1; attempt <= attempts; attempt++ {
			var result O
			var produced bool
			for _, step := range seq {
				v, ok, err := step(ctx, ev, c, tok, pub)
				if err != nil {
					return zero, false, err
				}
				if ok {
					result, produced = v, true
				}
				if tok.StopRequested() {
					return zero, false, nil
				}
			}
			if produced {
				return result, true, nil
			}
			if attempt < attempts && backoff != nil {
				if err := backoff(ctx, attempt, ev, c, tok, pub); err != nil {
					return zero, false, err
				}
			}
			if tok.StopRequested() {
				return zero, false, nil
			}
		}
		return zero, false, nil
	}
}

// Package async overlays asynchronous effect pipelines on a built fsmx
// machine.
//
// A pipeline is bound per (from, to) pair. DispatchAsync first commits the
// selected transition on the base machine synchronously (state change and
// hooks complete before DispatchAsync returns), then runs the bound pipeline
// concurrently; the pipeline's output, if any, overrides the commit's.
//
// The adapter is single-writer: two concurrent DispatchAsync calls on the
// same adapter produce unspecified behavior. Cancellation is cooperative
// through CancelToken; timeouts are the caller's business via the context.
package async

import (
	"context"

	"github.com/comalice/fsmx"
)

// Fragment is a single step of an async pipeline. The boolean reports
// whether an output was produced; a non-nil error terminates the pipeline
// and surfaces from Task.Await.
type Fragment[E, O, C any] func(ctx context.Context, ev E, c *C, tok CancelToken, pub fsmx.Publisher[O]) (O, bool, error)

type bindingKey[S comparable] struct {
	from, to S
}

// Adapter overlays per-(from, to) pipelines on a machine.
type Adapter[S comparable, E, O, C any] struct {
	machine  *fsmx.Machine[S, E, O, C]
	cancel   *CancelSource
	bindings map[bindingKey[S]][]Fragment[E, O, C]
}

// NewAdapter creates an adapter over a built machine. The cancel source may
// be nil; tokens handed to fragments then never report a stop.
func NewAdapter[S comparable, E, O, C any](m *fsmx.Machine[S, E, O, C], cancel *CancelSource) *Adapter[S, E, O, C] {
	return &Adapter[S, E, O, C]{
		machine:  m,
		cancel:   cancel,
		bindings: make(map[bindingKey[S]][]Fragment[E, O, C]),
	}
}

// Machine returns the underlying base machine.
func (a *Adapter[S, E, O, C]) Machine() *fsmx.Machine[S, E, O, C] {
	return a.machine
}

// BindAsync registers a pipeline fragment for the (from, to) pair. The first
// binding for a pair wins at dispatch time.
func (a *Adapter[S, E, O, C]) BindAsync(from, to S, fr Fragment[E, O, C]) {
	key := bindingKey[S]{from: from, to: to}
	a.bindings[key] = append(a.bindings[key], fr)
}

func (a *Adapter[S, E, O, C]) token() CancelToken {
	if a.cancel != nil {
		return a.cancel.Token()
	}
	return CancelToken{}
}

// DispatchAsync selects on the base machine and, when an async binding
// exists for the matched (from, to) pair, commits synchronously and runs the
// pipeline concurrently. By the time DispatchAsync returns, the base commit
// has settled, completion transitions included: the machine's state is the
// transition target, or the state its completions moved on to.
//
// Without a binding the event is committed normally; without a match the
// returned task is already completed and empty.
func (a *Adapter[S, E, O, C]) DispatchAsync(ctx context.Context, ev E) *Task[O] {
	sel := a.machine.Select(ev)
	if !sel.Ok() {
		var zero O
		return completedTask(zero, false, nil)
	}

	from := a.machine.State()
	to, _ := sel.Target()
	frs := a.bindings[bindingKey[S]{from: from, to: to}]
	if len(frs) == 0 {
		out, ok := a.machine.Commit(sel, &ev)
		return completedTask(out, ok, nil)
	}

	commitOut, commitOk := a.machine.Commit(sel, &ev)
	a.machine.BeginAsyncEffect()
	tok := a.token()
	task := newTask[O]()
	go func() {
		out, ok, err := func() (O, bool, error) {
			defer a.machine.EndAsyncEffect()
			return frs[0](ctx, ev, a.machine.Context(), tok, a.machine.Publisher())
		}()
		if err != nil {
			var zero O
			task.complete(zero, false, err)
			return
		}
		if ok {
			task.complete(out, true, nil)
			return
		}
		task.complete(commitOut, commitOk, nil)
	}()
	return task
}

package async

import (
	"github.com/comalice/fsmx"
)

// Builder declares a base machine and its async pipelines together, then
// builds both in one shot.
type Builder[S comparable, E, O, C any] struct {
	base  *fsmx.Builder[S, E, O, C]
	plans []plan[S, E, O, C]
}

type plan[S comparable, E, O, C any] struct {
	from, to S
	fragment Fragment[E, O, C]
}

// NewBuilder creates an empty co-builder.
func NewBuilder[S comparable, E, O, C any]() *Builder[S, E, O, C] {
	return &Builder[S, E, O, C]{base: fsmx.NewBuilder[S, E, O, C]()}
}

// Base exposes the underlying machine builder for transitions, completions
// and everything else not mirrored here.
func (b *Builder[S, E, O, C]) Base() *fsmx.Builder[S, E, O, C] {
	return b.base
}

// SetInitial sets the base machine's initial state.
func (b *Builder[S, E, O, C]) SetInitial(s S) *Builder[S, E, O, C] {
	b.base.SetInitial(s)
	return b
}

// SetPublisher sets the base machine's publisher.
func (b *Builder[S, E, O, C]) SetPublisher(p fsmx.Publisher[O]) *Builder[S, E, O, C] {
	b.base.SetPublisher(p)
	return b
}

// OnEnter binds an enter hook on the base machine.
func (b *Builder[S, E, O, C]) OnEnter(s S, fn fsmx.HookFunc[S, E, C]) *Builder[S, E, O, C] {
	b.base.OnEnter(s, fn)
	return b
}

// OnExit binds an exit hook on the base machine.
func (b *Builder[S, E, O, C]) OnExit(s S, fn fsmx.HookFunc[S, E, C]) *Builder[S, E, O, C] {
	b.base.OnExit(s, fn)
	return b
}

// OnDo binds a state-level "do" action on the base machine.
func (b *Builder[S, E, O, C]) OnDo(s S, fn fsmx.DoAction[S, O, C]) *Builder[S, E, O, C] {
	b.base.OnDo(s, fn)
	return b
}

// From starts a fluent pipeline declaration; Attach records it as a plan
// bound when Build runs.
func (b *Builder[S, E, O, C]) From(s S) FromStage[S, E, O, C] {
	return FromStage[S, E, O, C]{
		attach: func(from, to S, fr Fragment[E, O, C]) {
			b.plans = append(b.plans, plan[S, E, O, C]{from: from, to: to, fragment: fr})
		},
		from: s,
	}
}

// Build constructs the base machine and an adapter with every planned
// pipeline bound. The cancel source may be nil.
func (b *Builder[S, E, O, C]) Build(initialCtx C, cancel *CancelSource) (*fsmx.Machine[S, E, O, C], *Adapter[S, E, O, C]) {
	m := b.base.Build(initialCtx)
	a := NewAdapter(m, cancel)
	for _, p := range b.plans {
		a.BindAsync(p.from, p.to, p.fragment)
	}
	return m, a
}

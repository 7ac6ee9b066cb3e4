package fsmx

// Fluent declaration surface. The chain mirrors the imperative helpers and
// produces identical transition records:
//
//	fsmx.OnEvent[Coin](b.From(Locked)).
//		Action(func(ev Coin, c *Ctx) (string, bool) { ... }).
//		Priority(2).
//		To(Unlocked)
//
//	b.Completion(Setup).Guard(...).Action(...).To(PathA)

// FromStage anchors a fluent transition declaration at a source state (or
// the any-source fallback).
type FromStage[S comparable, E, O, C any] struct {
	b         *Builder[S, E, O, C]
	from      S
	anySource bool
}

// From starts a fluent transition declaration for the given source state.
func (b *Builder[S, E, O, C]) From(s S) FromStage[S, E, O, C] {
	return FromStage[S, E, O, C]{b: b, from: s}
}

// AnyState starts a fluent declaration of an any-source fallback transition.
func (b *Builder[S, E, O, C]) AnyState() FromStage[S, E, O, C] {
	return FromStage[S, E, O, C]{b: b, anySource: true}
}

// OnEvent narrows a fluent stage to events whose dynamic type is T.
func OnEvent[T any, S comparable, E, O, C any](st FromStage[S, E, O, C]) *TypedStage[T, S, E, O, C] {
	return &TypedStage[T, S, E, O, C]{st: st}
}

// OnValue narrows a fluent stage to events equal to the given value.
func (st FromStage[S, E, O, C]) OnValue(value E) *ValueStage[S, E, O, C] {
	return &ValueStage[S, E, O, C]{st: st, value: value}
}

// TypedStage collects the knobs of a type-matched transition.
type TypedStage[T any, S comparable, E, O, C any] struct {
	st       FromStage[S, E, O, C]
	action   Action[E, O, C]
	publish  PublishAction[E, O, C]
	guard    Guard[E, C]
	priority int
	suppress bool
	deferred bool
}

// Action sets the return-output action over the concrete event shape.
func (ts *TypedStage[T, S, E, O, C]) Action(fn func(ev T, c *C) (O, bool)) *TypedStage[T, S, E, O, C] {
	ts.action = TypedAction[T, E, O, C](fn)
	return ts
}

// Publish sets the publisher-form action over the concrete event shape.
func (ts *TypedStage[T, S, E, O, C]) Publish(fn func(ev T, c *C, pub Publisher[O])) *TypedStage[T, S, E, O, C] {
	ts.publish = TypedPublish[T, E, O, C](fn)
	return ts
}

// Guard adds a predicate evaluated after the type match.
func (ts *TypedStage[T, S, E, O, C]) Guard(fn Guard[E, C]) *TypedStage[T, S, E, O, C] {
	ts.guard = fn
	return ts
}

// Priority sets the selection priority; higher wins.
func (ts *TypedStage[T, S, E, O, C]) Priority(p int) *TypedStage[T, S, E, O, C] {
	ts.priority = p
	return ts
}

// SuppressEnterExit skips enter/exit hooks on self loops.
func (ts *TypedStage[T, S, E, O, C]) SuppressEnterExit() *TypedStage[T, S, E, O, C] {
	ts.suppress = true
	return ts
}

// Defer marks the transition as deferring its event.
func (ts *TypedStage[T, S, E, O, C]) Defer() *TypedStage[T, S, E, O, C] {
	ts.deferred = true
	return ts
}

// To registers the transition with the given destination and returns the
// builder.
func (ts *TypedStage[T, S, E, O, C]) To(to S) *Builder[S, E, O, C] {
	return ts.st.b.AddTransition(Transition[S, E, O, C]{
		From:              ts.st.from,
		To:                to,
		AnySource:         ts.st.anySource,
		Priority:          ts.priority,
		SuppressEnterExit: ts.suppress,
		Defer:             ts.deferred,
		Guard:             combineGuards(TypeGuard[T, E, C](), ts.guard),
		Action:            ts.action,
		Publish:           ts.publish,
	})
}

// ValueStage collects the knobs of a value-matched transition.
type ValueStage[S comparable, E, O, C any] struct {
	st       FromStage[S, E, O, C]
	value    E
	action   Action[E, O, C]
	publish  PublishAction[E, O, C]
	guard    Guard[E, C]
	priority int
	suppress bool
	deferred bool
}

func (vs *ValueStage[S, E, O, C]) Action(fn Action[E, O, C]) *ValueStage[S, E, O, C] {
	vs.action = fn
	return vs
}

func (vs *ValueStage[S, E, O, C]) Publish(fn PublishAction[E, O, C]) *ValueStage[S, E, O, C] {
	vs.publish = fn
	return vs
}

func (vs *ValueStage[S, E, O, C]) Guard(fn Guard[E, C]) *ValueStage[S, E, O, C] {
	vs.guard = fn
	return vs
}

func (vs *ValueStage[S, E, O, C]) Priority(p int) *ValueStage[S, E, O, C] {
	vs.priority = p
	return vs
}

func (vs *ValueStage[S, E, O, C]) SuppressEnterExit() *ValueStage[S, E, O, C] {
	vs.suppress = true
	return vs
}

func (vs *ValueStage[S, E, O, C]) Defer() *ValueStage[S, E, O, C] {
	vs.deferred = true
	return vs
}

func (vs *ValueStage[S, E, O, C]) To(to S) *Builder[S, E, O, C] {
	return vs.st.b.AddTransition(Transition[S, E, O, C]{
		From:              vs.st.from,
		To:                to,
		AnySource:         vs.st.anySource,
		Priority:          vs.priority,
		SuppressEnterExit: vs.suppress,
		Defer:             vs.deferred,
		Guard:             combineGuards(ValueGuard[E, C](vs.value), vs.guard),
		Action:            vs.action,
		Publish:           vs.publish,
	})
}

// CompletionStage collects the knobs of a completion transition.
type CompletionStage[S comparable, E, O, C any] struct {
	b        *Builder[S, E, O, C]
	from     S
	guard    CompletionGuard[C]
	action   CompletionAction[O, C]
	publish  CompletionPublish[O, C]
	priority int
	suppress bool
}

// Completion starts a fluent completion declaration for the given source
// state.
func (b *Builder[S, E, O, C]) Completion(from S) *CompletionStage[S, E, O, C] {
	return &CompletionStage[S, E, O, C]{b: b, from: from}
}

func (cs *CompletionStage[S, E, O, C]) Guard(fn CompletionGuard[C]) *CompletionStage[S, E, O, C] {
	cs.guard = fn
	return cs
}

func (cs *CompletionStage[S, E, O, C]) Action(fn CompletionAction[O, C]) *CompletionStage[S, E, O, C] {
	cs.action = fn
	return cs
}

func (cs *CompletionStage[S, E, O, C]) Publish(fn CompletionPublish[O, C]) *CompletionStage[S, E, O, C] {
	cs.publish = fn
	return cs
}

func (cs *CompletionStage[S, E, O, C]) Priority(p int) *CompletionStage[S, E, O, C] {
	cs.priority = p
	return cs
}

func (cs *CompletionStage[S, E, O, C]) SuppressEnterExit() *CompletionStage[S, E, O, C] {
	cs.suppress = true
	return cs
}

func (cs *CompletionStage[S, E, O, C]) To(to S) *Builder[S, E, O, C] {
	return cs.b.AddCompletion(Completion[S, O, C]{
		From:              cs.from,
		To:                to,
		Priority:          cs.priority,
		SuppressEnterExit: cs.suppress,
		Guard:             cs.guard,
		Action:            cs.action,
		Publish:           cs.publish,
	})
}

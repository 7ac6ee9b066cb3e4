package fsmx

import (
	"sort"

	"github.com/google/uuid"
)

// Builder accumulates handlers, transitions, completions, the publisher and
// the initial state, then freezes them into a Machine. A builder must not be
// reused after Build.
type Builder[S comparable, E, O, C any] struct {
	id              string
	initial         S
	deferralEnabled bool
	pub             Publisher[O]

	handlers       map[S]*stateHandlers[S, E, O, C]
	transitions    map[S][]Transition[S, E, O, C]
	anyTransitions []Transition[S, E, O, C]
	completions    map[S][]Completion[S, O, C]
	unhandled      UnhandledFunc[S, E, C]
}

// NewBuilder creates an empty Builder.
func NewBuilder[S comparable, E, O, C any]() *Builder[S, E, O, C] {
	return &Builder[S, E, O, C]{
		handlers:    make(map[S]*stateHandlers[S, E, O, C]),
		transitions: make(map[S][]Transition[S, E, O, C]),
		completions: make(map[S][]Completion[S, O, C]),
	}
}

// SetID sets the machine identifier. A UUID is generated when unset.
func (b *Builder[S, E, O, C]) SetID(id string) *Builder[S, E, O, C] {
	b.id = id
	return b
}

// SetInitial sets the initial state.
func (b *Builder[S, E, O, C]) SetInitial(s S) *Builder[S, E, O, C] {
	b.initial = s
	return b
}

// EnableDeferral toggles the deferral mechanism. Transitions marked Defer
// have no effect on dispatch while deferral is disabled.
func (b *Builder[S, E, O, C]) EnableDeferral(v bool) *Builder[S, E, O, C] {
	b.deferralEnabled = v
	return b
}

// SetPublisher sets the sink handed to publisher-form actions.
func (b *Builder[S, E, O, C]) SetPublisher(p Publisher[O]) *Builder[S, E, O, C] {
	b.pub = p
	return b
}

func (b *Builder[S, E, O, C]) handlersFor(s S) *stateHandlers[S, E, O, C] {
	h, ok := b.handlers[s]
	if !ok {
		h = &stateHandlers[S, E, O, C]{}
		b.handlers[s] = h
	}
	return h
}

// OnEnter binds the enter hook of a state.
func (b *Builder[S, E, O, C]) OnEnter(s S, fn HookFunc[S, E, C]) *Builder[S, E, O, C] {
	b.handlersFor(s).onEnter = fn
	return b
}

// OnExit binds the exit hook of a state.
func (b *Builder[S, E, O, C]) OnExit(s S, fn HookFunc[S, E, C]) *Builder[S, E, O, C] {
	b.handlersFor(s).onExit = fn
	return b
}

// OnDo binds the state-level "do" action, return-output form.
func (b *Builder[S, E, O, C]) OnDo(s S, fn DoAction[S, O, C]) *Builder[S, E, O, C] {
	b.handlersFor(s).onDo = fn
	return b
}

// OnDoPublish binds the state-level "do" action, publisher form.
func (b *Builder[S, E, O, C]) OnDoPublish(s S, fn DoPublish[S, O, C]) *Builder[S, E, O, C] {
	b.handlersFor(s).onDoPublish = fn
	return b
}

// OnUnhandled binds the machine-level unhandled hook.
func (b *Builder[S, E, O, C]) OnUnhandled(fn UnhandledFunc[S, E, C]) *Builder[S, E, O, C] {
	b.unhandled = fn
	return b
}

// OnUnhandledIn binds a state-level unhandled hook; it takes precedence over
// the machine-level one while that state is current.
func (b *Builder[S, E, O, C]) OnUnhandledIn(s S, fn UnhandledFunc[S, E, C]) *Builder[S, E, O, C] {
	b.handlersFor(s).onUnhandled = fn
	return b
}

// OnState binds any subset of {OnEnter, OnExit, OnDo} the handler object
// implements (see EnterHandler, ExitHandler, DoHandler).
func (b *Builder[S, E, O, C]) OnState(s S, handler any) *Builder[S, E, O, C] {
	h := b.handlersFor(s)
	if enter, ok := handler.(EnterHandler[S, E, C]); ok {
		h.onEnter = enter.OnEnter
	}
	if exit, ok := handler.(ExitHandler[S, E, C]); ok {
		h.onExit = exit.OnExit
	}
	if do, ok := handler.(DoHandler[S, O, C]); ok {
		h.onDo = do.OnDo
	}
	return b
}

// AddTransition appends a fully specified transition record. AnySource
// transitions go to the any-source fallback list.
func (b *Builder[S, E, O, C]) AddTransition(t Transition[S, E, O, C]) *Builder[S, E, O, C] {
	if t.AnySource {
		b.anyTransitions = append(b.anyTransitions, t)
		return b
	}
	b.transitions[t.From] = append(b.transitions[t.From], t)
	return b
}

// AddCompletion appends a completion transition record.
func (b *Builder[S, E, O, C]) AddCompletion(c Completion[S, O, C]) *Builder[S, E, O, C] {
	b.completions[c.From] = append(b.completions[c.From], c)
	return b
}

// Build freezes the accumulated configuration into a Machine, stable-sorting
// every transition list by priority descending. The initial state's enter
// hook fires once with from == to == initial and a nil event, then the
// machine settles (completions, deferral replay).
func (b *Builder[S, E, O, C]) Build(initialCtx C) *Machine[S, E, O, C] {
	id := b.id
	if id == "" {
		id = uuid.NewString()
	}
	pub := b.pub
	if pub == nil {
		pub = NullPublisher[O]{}
	}

	byPriority := func(list []Transition[S, E, O, C]) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority > list[j].Priority
		})
	}
	for _, list := range b.transitions {
		byPriority(list)
	}
	byPriority(b.anyTransitions)
	for _, list := range b.completions {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority > list[j].Priority
		})
	}

	m := &Machine[S, E, O, C]{
		id:              id,
		initial:         b.initial,
		current:         b.initial,
		ctx:             initialCtx,
		pub:             pub,
		handlers:        b.handlers,
		transitions:     b.transitions,
		anyTransitions:  b.anyTransitions,
		completions:     b.completions,
		unhandled:       b.unhandled,
		deferrals:       make(map[S][]E),
		deferralEnabled: b.deferralEnabled,
	}

	for _, list := range m.completions {
		m.completionLimit += len(list)
	}
	if m.completionLimit > 0 {
		m.completionLimit++
	}

	if h, ok := m.handlers[m.current]; ok && h.onEnter != nil {
		h.onEnter(&m.ctx, m.current, m.current, nil)
	}
	var zero O
	m.finalize(zero, false)

	return m
}

// TypeGuard matches events whose dynamic type is T. Intended for sum-style
// event interfaces.
func TypeGuard[T any, E, C any]() Guard[E, C] {
	return func(ev E, _ *C) bool {
		_, ok := any(ev).(T)
		return ok
	}
}

// ValueGuard matches events equal to the given value. The comparison uses
// interface equality; event shapes matched by value must be comparable.
func ValueGuard[E, C any](value E) Guard[E, C] {
	return func(ev E, _ *C) bool {
		return any(ev) == any(value)
	}
}

// TypedAction adapts an action over the concrete event shape T to the
// machine's event type. It must only run behind a TypeGuard for the same T.
func TypedAction[T any, E, O, C any](fn func(ev T, c *C) (O, bool)) Action[E, O, C] {
	if fn == nil {
		return nil
	}
	return func(ev E, c *C) (O, bool) {
		return fn(any(ev).(T), c)
	}
}

// TypedPublish is the publisher-form counterpart of TypedAction.
func TypedPublish[T any, E, O, C any](fn func(ev T, c *C, pub Publisher[O])) PublishAction[E, O, C] {
	if fn == nil {
		return nil
	}
	return func(ev E, c *C, pub Publisher[O]) {
		fn(any(ev).(T), c, pub)
	}
}

func combineGuards[E, C any](primary, extra Guard[E, C]) Guard[E, C] {
	switch {
	case primary != nil && extra != nil:
		return func(ev E, c *C) bool {
			return primary(ev, c) && extra(ev, c)
		}
	case primary != nil:
		return primary
	default:
		return extra
	}
}

// On declares from --T--> to: the transition fires when the event's dynamic
// type is T. The action may be nil. Guards, priorities and the remaining
// knobs are available through the fluent chain or AddTransition.
func On[T any, S comparable, E, O, C any](b *Builder[S, E, O, C], from, to S, action func(ev T, c *C) (O, bool)) *Builder[S, E, O, C] {
	return b.AddTransition(Transition[S, E, O, C]{
		From:   from,
		To:     to,
		Guard:  TypeGuard[T, E, C](),
		Action: TypedAction[T, E, O, C](action),
	})
}

// OnValue declares a transition fired when the event equals value.
func OnValue[S comparable, E, O, C any](b *Builder[S, E, O, C], from, to S, value E, action Action[E, O, C]) *Builder[S, E, O, C] {
	return b.AddTransition(Transition[S, E, O, C]{
		From:   from,
		To:     to,
		Guard:  ValueGuard[E, C](value),
		Action: action,
	})
}

// OnAny declares an any-source fallback transition for events of dynamic
// type T.
func OnAny[T any, S comparable, E, O, C any](b *Builder[S, E, O, C], to S, action func(ev T, c *C) (O, bool)) *Builder[S, E, O, C] {
	return b.AddTransition(Transition[S, E, O, C]{
		To:        to,
		AnySource: true,
		Guard:     TypeGuard[T, E, C](),
		Action:    TypedAction[T, E, O, C](action),
	})
}

// OnAnyValue declares an any-source fallback transition for events equal to
// value.
func OnAnyValue[S comparable, E, O, C any](b *Builder[S, E, O, C], to S, value E, action Action[E, O, C]) *Builder[S, E, O, C] {
	return b.AddTransition(Transition[S, E, O, C]{
		To:        to,
		AnySource: true,
		Guard:     ValueGuard[E, C](value),
		Action:    action,
	})
}

// OnCompletion declares an unguarded completion transition. The action may
// be nil.
func OnCompletion[S comparable, E, O, C any](b *Builder[S, E, O, C], from, to S, action CompletionAction[O, C]) *Builder[S, E, O, C] {
	return b.AddCompletion(Completion[S, O, C]{
		From:   from,
		To:     to,
		Action: action,
	})
}

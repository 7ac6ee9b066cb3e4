package fsmx

// HookFunc is the signature of enter and exit hooks. The event pointer is
// nil when the hook fires for a completion transition or the initial entry.
type HookFunc[S comparable, E, C any] func(c *C, from, to S, ev *E)

// DoAction is a state-level "do" action invoked by Update, return-output
// form.
type DoAction[S comparable, O, C any] func(c *C, s S) (O, bool)

// DoPublish is the publisher form of a state-level "do" action.
type DoPublish[S comparable, O, C any] func(c *C, s S, pub Publisher[O])

// UnhandledFunc is notified when an event matches no transition. Unhandled
// hooks are notify-only; panics raised from them are swallowed.
type UnhandledFunc[S comparable, E, C any] func(c *C, s S, ev E)

// Handler-object binding: OnState binds whichever of these interfaces the
// handler implements.

type EnterHandler[S comparable, E, C any] interface {
	OnEnter(c *C, from, to S, ev *E)
}

type ExitHandler[S comparable, E, C any] interface {
	OnExit(c *C, from, to S, ev *E)
}

type DoHandler[S comparable, O, C any] interface {
	OnDo(c *C, s S) (O, bool)
}

type stateHandlers[S comparable, E, O, C any] struct {
	onEnter     HookFunc[S, E, C]
	onExit      HookFunc[S, E, C]
	onDo        DoAction[S, O, C]
	onDoPublish DoPublish[S, O, C]
	onUnhandled UnhandledFunc[S, E, C]
}

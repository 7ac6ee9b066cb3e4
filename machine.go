package fsmx

// Machine is the runtime instance of a finite state machine. It is strictly
// single-threaded and synchronous: no method suspends, and concurrent use
// requires external mutual exclusion (see Runner).
//
// The machine exclusively owns its context for its lifetime; the context is
// mutated only from within hooks, guards and actions the machine invokes.
type Machine[S comparable, E, O, C any] struct {
	id      string
	initial S
	current S
	ctx     C
	pub     Publisher[O]

	handlers       map[S]*stateHandlers[S, E, O, C]
	transitions    map[S][]Transition[S, E, O, C]
	anyTransitions []Transition[S, E, O, C]
	completions    map[S][]Completion[S, O, C]
	unhandled      UnhandledFunc[S, E, C]

	pending   []E
	deferrals map[S][]E

	deferralEnabled       bool
	drainingDeferrals     bool
	completionLimit       int
	processingCompletions bool
	asyncInflight         bool
}

// ID returns the machine's identifier (configured or generated at build).
func (m *Machine[S, E, O, C]) ID() string {
	return m.id
}

// State returns the current state.
func (m *Machine[S, E, O, C]) State() S {
	return m.current
}

// Context returns the machine's context.
func (m *Machine[S, E, O, C]) Context() *C {
	return &m.ctx
}

// Publisher returns the configured sink.
func (m *Machine[S, E, O, C]) Publisher() Publisher[O] {
	return m.pub
}

// Select matches an event against the transition tables without committing.
// Read-only; guards are evaluated but no effects run.
func (m *Machine[S, E, O, C]) Select(ev E) Selection[S, E, O, C] {
	return Selection[S, E, O, C]{t: m.findTransition(ev)}
}

// Commit applies a previously selected transition. The event pointer may be
// nil, in which case the action is not invoked (and deferral does not
// trigger). Used together with Select by the async adapter.
func (m *Machine[S, E, O, C]) Commit(sel Selection[S, E, O, C], ev *E) (O, bool) {
	if !sel.Ok() {
		var zero O
		return zero, false
	}
	t := sel.t
	if m.deferralEnabled && t.Defer && ev != nil {
		m.deferrals[t.To] = append(m.deferrals[t.To], *ev)
		m.applyTransition(t, ev, false)
		var zero O
		return m.finalize(zero, false)
	}
	out, ok := m.applyTransition(t, ev, true)
	return m.finalize(out, ok)
}

// Dispatch submits an event to the machine. If a transition matches it is
// committed and the machine settles (completions, deferral replay) before
// Dispatch returns. When nothing matches, the state-level unhandled hook is
// notified if present, else the machine-level one; the second return is
// false.
func (m *Machine[S, E, O, C]) Dispatch(ev E) (O, bool) {
	return m.handleEvent(ev)
}

// Enqueue appends an event to the pending queue without processing it.
func (m *Machine[S, E, O, C]) Enqueue(ev E) {
	m.pending = append(m.pending, ev)
}

// DispatchAll drains the pending queue front to back, dispatching each
// event, and returns the produced outputs in dispatch order. Events enqueued
// during processing extend the queue and are handled in turn.
func (m *Machine[S, E, O, C]) DispatchAll() []O {
	var outputs []O
	for len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]
		if out, ok := m.handleEvent(next); ok {
			outputs = append(outputs, out)
		}
	}
	return outputs
}

// Update invokes the current state's "do" action, if any. No transition
// occurs.
func (m *Machine[S, E, O, C]) Update() (O, bool) {
	if h, ok := m.handlers[m.current]; ok {
		if h.onDo != nil {
			return h.onDo(&m.ctx, m.current)
		}
		if h.onDoPublish != nil {
			h.onDoPublish(&m.ctx, m.current, m.pub)
		}
	}
	var zero O
	return zero, false
}

// BeginAsyncEffect marks an asynchronous effect as inflight. While set,
// completion processing is suppressed.
func (m *Machine[S, E, O, C]) BeginAsyncEffect() {
	m.asyncInflight = true
}

// EndAsyncEffect clears the inflight flag.
func (m *Machine[S, E, O, C]) EndAsyncEffect() {
	m.asyncInflight = false
}

// AsyncInflight reports whether an asynchronous effect is inflight.
func (m *Machine[S, E, O, C]) AsyncInflight() bool {
	return m.asyncInflight
}

func (m *Machine[S, E, O, C]) handleEvent(ev E) (O, bool) {
	if t := m.findTransition(ev); t != nil {
		if m.deferralEnabled && t.Defer {
			m.deferrals[t.To] = append(m.deferrals[t.To], ev)
			m.applyTransition(t, &ev, false)
			var zero O
			return m.finalize(zero, false)
		}
		out, ok := m.applyTransition(t, &ev, true)
		return m.finalize(out, ok)
	}

	m.notifyUnhandled(ev)
	var zero O
	return zero, false
}

func (m *Machine[S, E, O, C]) notifyUnhandled(ev E) {
	// Unhandled hooks are notify-only; a panic here must not abort the
	// dispatch.
	defer func() { _ = recover() }()
	if h, ok := m.handlers[m.current]; ok && h.onUnhandled != nil {
		h.onUnhandled(&m.ctx, m.current, ev)
		return
	}
	if m.unhandled != nil {
		m.unhandled(&m.ctx, m.current, ev)
	}
}

func (m *Machine[S, E, O, C]) findTransition(ev E) *Transition[S, E, O, C] {
	if list, ok := m.transitions[m.current]; ok {
		for i := range list {
			t := &list[i]
			if t.Guard == nil || t.Guard(ev, &m.ctx) {
				return t
			}
		}
	}
	for i := range m.anyTransitions {
		t := &m.anyTransitions[i]
		if t.Guard == nil || t.Guard(ev, &m.ctx) {
			return t
		}
	}
	return nil
}

// applyTransition runs the commit sequence: exit hook, action, state change,
// enter hook. A panicking action therefore propagates before the state
// change is applied.
func (m *Machine[S, E, O, C]) applyTransition(t *Transition[S, E, O, C], ev *E, invokeAction bool) (O, bool) {
	from := m.current
	to := t.To
	skipHooks := t.SuppressEnterExit && to == from

	if !skipHooks {
		if h, ok := m.handlers[from]; ok && h.onExit != nil {
			h.onExit(&m.ctx, from, to, ev)
		}
	}

	var out O
	var produced bool
	if invokeAction && ev != nil {
		out, produced = t.runAction(*ev, &m.ctx, m.pub)
	}

	m.current = to

	if !skipHooks {
		if h, ok := m.handlers[to]; ok && h.onEnter != nil {
			h.onEnter(&m.ctx, from, to, ev)
		}
	}

	return out, produced
}

// finalize settles the machine after a commit: completions run to a fixed
// point, their last output is adopted when the commit produced none, and the
// deferral queue of the settled state is replayed.
func (m *Machine[S, E, O, C]) finalize(out O, ok bool) (O, bool) {
	compOut, compOk := m.processCompletions()
	if !ok && compOk {
		out, ok = compOut, true
	}
	m.drainDeferrals()
	return out, ok
}

func (m *Machine[S, E, O, C]) processCompletions() (O, bool) {
	var out O
	var produced bool
	if m.completionLimit == 0 || m.processingCompletions || m.asyncInflight {
		return out, false
	}
	m.processingCompletions = true
	defer func() { m.processingCompletions = false }()

	steps := 0
	for {
		comp := m.findCompletion()
		if comp == nil {
			break
		}
		// Bounded by the precomputed limit so a cycling completion
		// table cannot loop forever.
		if steps >= m.completionLimit {
			break
		}
		steps++
		if o, ok := m.applyCompletion(comp); ok {
			out, produced = o, true
		}
	}
	return out, produced
}

func (m *Machine[S, E, O, C]) findCompletion() *Completion[S, O, C] {
	list, ok := m.completions[m.current]
	if !ok {
		return nil
	}
	for i := range list {
		c := &list[i]
		if c.Guard == nil || c.Guard(&m.ctx) {
			return c
		}
	}
	return nil
}

func (m *Machine[S, E, O, C]) applyCompletion(t *Completion[S, O, C]) (O, bool) {
	from := m.current
	to := t.To
	skipHooks := t.SuppressEnterExit && to == from

	if !skipHooks {
		if h, ok := m.handlers[from]; ok && h.onExit != nil {
			h.onExit(&m.ctx, from, to, nil)
		}
	}

	out, produced := t.runAction(&m.ctx, m.pub)

	m.current = to

	if !skipHooks {
		if h, ok := m.handlers[to]; ok && h.onEnter != nil {
			h.onEnter(&m.ctx, from, to, nil)
		}
	}

	return out, produced
}

func (m *Machine[S, E, O, C]) drainDeferrals() {
	if !m.deferralEnabled || m.drainingDeferrals {
		return
	}
	m.drainingDeferrals = true
	defer func() { m.drainingDeferrals = false }()

	// The lookup keys off the live current state: replay stops as soon as
	// a replayed event moves the machine to a state with no stored
	// deferrals.
	for {
		q := m.deferrals[m.current]
		if len(q) == 0 {
			break
		}
		next := q[0]
		m.deferrals[m.current] = q[1:]
		m.handleEvent(next)
	}
}

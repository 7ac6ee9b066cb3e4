// Package fsmx implements strongly typed, flat finite state machines.
//
// A Machine is parameterized over four types: the state S (comparable,
// usually a small enum-like type), the event E (often a sum-style interface
// whose implementations are the distinct event shapes), the output O
// produced by actions, and the user context C mutated by hooks, guards and
// actions.
//
// Machines are constructed through a Builder and frozen on Build. Dispatch
// selects the first matching transition by priority (declaration order
// breaking ties), runs the exit hook, the transition action, the state
// change and the enter hook in that order, then settles the machine:
// completion transitions fire until a fixed point and deferred events for
// the new state are replayed.
//
// The async subpackage overlays per-(from, to) asynchronous effect
// pipelines on a built machine without changing the base transition
// semantics.
package fsmx

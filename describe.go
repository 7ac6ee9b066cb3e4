package fsmx

import (
	"fmt"
	"sort"
)

// TransitionInfo is one row of a machine description.
type TransitionInfo struct {
	From              string `json:"from,omitempty" yaml:"from,omitempty"`
	To                string `json:"to" yaml:"to"`
	Kind              string `json:"kind" yaml:"kind"` // "event" or "completion"
	AnySource         bool   `json:"anySource,omitempty" yaml:"anySource,omitempty"`
	Priority          int    `json:"priority,omitempty" yaml:"priority,omitempty"`
	Guarded           bool   `json:"guarded,omitempty" yaml:"guarded,omitempty"`
	Actioned          bool   `json:"actioned,omitempty" yaml:"actioned,omitempty"`
	SuppressEnterExit bool   `json:"suppressEnterExit,omitempty" yaml:"suppressEnterExit,omitempty"`
	Defer             bool   `json:"defer,omitempty" yaml:"defer,omitempty"`
}

// Description is a serializable snapshot of a machine's tables, consumed by
// the export package.
type Description struct {
	ID          string           `json:"id" yaml:"id"`
	Initial     string           `json:"initial" yaml:"initial"`
	Current     string           `json:"current" yaml:"current"`
	States      []string         `json:"states" yaml:"states"`
	Transitions []TransitionInfo `json:"transitions" yaml:"transitions"`
}

// Describe captures the machine's identifier, state set and every declared
// transition and completion. States are rendered with fmt and sorted for
// deterministic output.
func (m *Machine[S, E, O, C]) Describe() Description {
	name := func(s S) string { return fmt.Sprint(s) }

	states := map[string]bool{
		name(m.initial): true,
		name(m.current): true,
	}
	var infos []TransitionInfo

	addTransition := func(t *Transition[S, E, O, C]) {
		info := TransitionInfo{
			To:                name(t.To),
			Kind:              "event",
			AnySource:         t.AnySource,
			Priority:          t.Priority,
			Guarded:           t.Guard != nil,
			Actioned:          t.Action != nil || t.Publish != nil,
			SuppressEnterExit: t.SuppressEnterExit,
			Defer:             t.Defer,
		}
		if !t.AnySource {
			info.From = name(t.From)
			states[info.From] = true
		}
		states[info.To] = true
		infos = append(infos, info)
	}

	var sources []S
	for s := range m.transitions {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool { return name(sources[i]) < name(sources[j]) })
	for _, s := range sources {
		list := m.transitions[s]
		for i := range list {
			addTransition(&list[i])
		}
	}
	for i := range m.anyTransitions {
		addTransition(&m.anyTransitions[i])
	}

	var compSources []S
	for s := range m.completions {
		compSources = append(compSources, s)
	}
	sort.Slice(compSources, func(i, j int) bool { return name(compSources[i]) < name(compSources[j]) })
	for _, s := range compSources {
		list := m.completions[s]
		for i := range list {
			c := &list[i]
			infos = append(infos, TransitionInfo{
				From:              name(c.From),
				To:                name(c.To),
				Kind:              "completion",
				Priority:          c.Priority,
				Guarded:           c.Guard != nil,
				Actioned:          c.Action != nil || c.Publish != nil,
				SuppressEnterExit: c.SuppressEnterExit,
			})
			states[name(c.From)] = true
			states[name(c.To)] = true
		}
	}

	for s := range m.handlers {
		states[name(s)] = true
	}

	all := make([]string, 0, len(states))
	for s := range states {
		all = append(all, s)
	}
	sort.Strings(all)

	return Description{
		ID:          m.id,
		Initial:     name(m.initial),
		Current:     name(m.current),
		States:      all,
		Transitions: infos,
	}
}

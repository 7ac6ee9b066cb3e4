// Package export renders machine descriptions for tooling: Graphviz DOT for
// visualization, YAML and JSON for inspection and diffing.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/comalice/fsmx"
)

// DOT generates Graphviz DOT source for the described machine. The current
// state is highlighted; completion transitions are drawn dashed.
func DOT(d fsmx.Description) string {
	var buf bytes.Buffer
	buf.WriteString("digraph fsm {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, fontsize=10, style=rounded];\n")
	buf.WriteString("  edge [fontsize=9];\n")

	for _, s := range d.States {
		if s == d.Current {
			fmt.Fprintf(&buf, "  %q [style=\"rounded,filled\", fillcolor=lightblue];\n", s)
		} else {
			fmt.Fprintf(&buf, "  %q;\n", s)
		}
	}

	for _, t := range d.Transitions {
		from := t.From
		if t.AnySource {
			from = "*"
		}
		label := edgeLabel(t)
		attrs := fmt.Sprintf("label=%q", label)
		if t.Kind == "completion" {
			attrs += ", style=dashed"
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", from, t.To, attrs)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func edgeLabel(t fsmx.TransitionInfo) string {
	label := t.Kind
	if t.Priority != 0 {
		label = fmt.Sprintf("%s p=%d", label, t.Priority)
	}
	if t.Guarded {
		label += " [guard]"
	}
	if t.Defer {
		label += " defer"
	}
	return label
}

// JSON serializes the description to indented JSON.
func JSON(d fsmx.Description) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return data, nil
}

// YAML serializes the description to YAML.
func YAML(d fsmx.Description) ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("yaml marshal: %w", err)
	}
	return data, nil
}

// Package route models tours over a problem instance as ordered node
// identifiers and provides comparison helpers for seeded runs.
package route

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// NodeID identifies a node of the loaded instance.
type NodeID int

// Route is an ordered sequence of node identifiers.
// A closed tour repeats its first node at the end.
type Route []NodeID

// Parse decodes a route from its JSON array form, e.g. "[0, 3, 1, 2, 0]".
// Elements must be integral numbers; an empty array is a valid route.
func Parse(text string) (Route, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty input")
	}

	var raw []json.Number
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding route: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after route")
	}
	if raw == nil {
		return nil, fmt.Errorf("route must be an array")
	}

	out := make(Route, 0, len(raw))
	for i, n := range raw {
		v, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("element %d (%s) is not an integer node id", i, n)
		}
		out = append(out, NodeID(v))
	}
	return out, nil
}

// MarshalText renders the route as the JSON array the backend expects.
func (r Route) MarshalText() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]NodeID(r))
}

// String renders the route compactly as "0 → 3 → 1".
func (r Route) String() string {
	parts := make([]string, len(r))
	for i, n := range r {
		parts[i] = strconv.Itoa(int(n))
	}
	return strings.Join(parts, " → ")
}

// Len returns the number of hops in the route, ignoring a closing repeat.
func (r Route) Len() int {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return len(r) - 1
	}
	return len(r)
}

// Equal reports whether two routes visit the same nodes in the same order.
func (r Route) Equal(other Route) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the route.
func (r Route) Clone() Route {
	if r == nil {
		return nil
	}
	out := make(Route, len(r))
	copy(out, r)
	return out
}

// ChangeOp classifies one segment of a route comparison.
type ChangeOp int

const (
	Kept ChangeOp = iota
	Added
	Removed
)

func (op ChangeOp) String() string {
	switch op {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "kept"
	}
}

// Change is a contiguous run of nodes with the same comparison outcome.
type Change struct {
	Op    ChangeOp
	Nodes Route
}

// Diff compares two routes node by node. Each node is mapped to its own
// "line" so the line-mode diff works at node granularity.
func Diff(from, to Route) []Change {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(nodeLines(from), nodeLines(to))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	changes := make([]Change, 0, len(diffs))
	for _, d := range diffs {
		nodes := linesToNodes(d.Text)
		if len(nodes) == 0 {
			continue
		}
		var op ChangeOp
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = Added
		case diffmatchpatch.DiffDelete:
			op = Removed
		default:
			op = Kept
		}
		changes = append(changes, Change{Op: op, Nodes: nodes})
	}
	return changes
}

// Summary describes a diff in one line, e.g. "kept 3, added 2, removed 1".
func Summary(changes []Change) string {
	var kept, added, removed int
	for _, c := range changes {
		switch c.Op {
		case Kept:
			kept += len(c.Nodes)
		case Added:
			added += len(c.Nodes)
		case Removed:
			removed += len(c.Nodes)
		}
	}
	if added == 0 && removed == 0 {
		return "unchanged"
	}
	return fmt.Sprintf("kept %d, added %d, removed %d", kept, added, removed)
}

func nodeLines(r Route) string {
	var b strings.Builder
	for _, n := range r {
		b.WriteString(strconv.Itoa(int(n)))
		b.WriteByte('\n')
	}
	return b.String()
}

func linesToNodes(text string) Route {
	var out Route
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		v, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		out = append(out, NodeID(v))
	}
	return out
}

package mockserver

import (
	"fmt"

	"github.com/zjrosen/antrail/internal/route"
)

// trace is a Plotly-style scatter trace.
type trace struct {
	X    []*float64 `json:"x"`
	Y    []*float64 `json:"y"`
	Mode string     `json:"mode"`
	Text []string   `json:"text,omitempty"`
	Name string     `json:"name,omitempty"`
}

type figure struct {
	EdgeTrace trace          `json:"edge_trace"`
	NodeTrace trace          `json:"node_trace"`
	Layout    map[string]any `json:"layout"`
}

// graphFigure draws every node; with a tour it draws the tour's edges,
// otherwise each node's edge to its nearest neighbour.
func graphFigure(inst *Instance, tour route.Route) figure {
	n := inst.Len()
	nodes := trace{Mode: "markers+text", Name: "nodes"}
	for i := range n {
		nodes.X = append(nodes.X, ptr(inst.X[i]))
		nodes.Y = append(nodes.Y, ptr(inst.Y[i]))
		nodes.Text = append(nodes.Text, fmt.Sprint(i))
	}

	edges := trace{Mode: "lines", Name: "edges"}
	addEdge := func(a, b int) {
		// nil breaks the line between segments.
		edges.X = append(edges.X, ptr(inst.X[a]), ptr(inst.X[b]), nil)
		edges.Y = append(edges.Y, ptr(inst.Y[a]), ptr(inst.Y[b]), nil)
	}

	title := inst.Name
	if tour != nil {
		for i := 1; i < len(tour); i++ {
			addEdge(int(tour[i-1]), int(tour[i]))
		}
		title = fmt.Sprintf("%s best route (%.2f)", inst.Name, inst.Cost(tour))
	} else {
		for i := range n {
			nearest, dist := -1, 0.0
			for j := range n {
				if j == i {
					continue
				}
				if d := inst.Dist(i, j); nearest < 0 || d < dist {
					nearest, dist = j, d
				}
			}
			addEdge(i, nearest)
		}
	}

	return figure{
		EdgeTrace: edges,
		NodeTrace: nodes,
		Layout: map[string]any{
			"title":      title,
			"showlegend": false,
			"nodes":      n,
		},
	}
}

func ptr(v float64) *float64 {
	return &v
}

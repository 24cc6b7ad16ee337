package mockserver

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"regexp"
	"slices"
	"strconv"

	"github.com/zjrosen/antrail/internal/route"
)

const (
	minNodes = 4
	maxNodes = 200
)

var instanceSize = regexp.MustCompile(`(\d+)$`)

// Instance is a synthetic Euclidean TSP instance. Its coordinates depend
// only on the name, so the same name always yields the same instance.
type Instance struct {
	Name string
	X, Y []float64
}

// NewInstance builds the instance named name. The node count is the
// trailing number in the name, as in TSPLIB names like "berlin52".
func NewInstance(name string) (*Instance, error) {
	m := instanceSize.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("instance %q has no node count suffix", name)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < minNodes || n > maxNodes {
		return nil, fmt.Errorf("instance %q: node count must be between %d and %d", name, minNodes, maxNodes)
	}

	rng := rand.New(rand.NewPCG(hashName(name), 0))
	inst := &Instance{Name: name, X: make([]float64, n), Y: make([]float64, n)}
	for i := range n {
		inst.X[i] = math.Round(rng.Float64()*1000) / 10
		inst.Y[i] = math.Round(rng.Float64()*1000) / 10
	}
	return inst, nil
}

// Len returns the number of nodes.
func (in *Instance) Len() int {
	return len(in.X)
}

// Dist is the Euclidean distance between nodes i and j.
func (in *Instance) Dist(i, j int) float64 {
	return math.Hypot(in.X[i]-in.X[j], in.Y[i]-in.Y[j])
}

// Cost is the length of a closed tour. The closing edge is added when r
// does not already end at its start.
func (in *Instance) Cost(r route.Route) float64 {
	if len(r) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(r); i++ {
		total += in.Dist(int(r[i-1]), int(r[i]))
	}
	if r[0] != r[len(r)-1] {
		total += in.Dist(int(r[len(r)-1]), int(r[0]))
	}
	return total
}

// ErrBadTour is returned for a seed that is not a permutation of the nodes.
var ErrBadTour = errors.New("not a tour of the instance")

// CheckTour validates r as an open or closed permutation of every node.
func (in *Instance) CheckTour(r route.Route) error {
	nodes := r
	if len(r) > 1 && r[0] == r[len(r)-1] {
		nodes = r[:len(r)-1]
	}
	if len(nodes) != in.Len() {
		return fmt.Errorf("%w: %d nodes, want %d", ErrBadTour, len(nodes), in.Len())
	}
	seen := make([]bool, in.Len())
	for _, id := range nodes {
		if int(id) < 0 || int(id) >= in.Len() || seen[id] {
			return fmt.Errorf("%w: node %d", ErrBadTour, id)
		}
		seen[id] = true
	}
	return nil
}

// Params are the colony parameters.
type Params struct {
	Alpha, Beta, Evaporation, Q float64
	Ants, Iterations            int
}

// Iteration summarizes one colony iteration.
type Iteration struct {
	Index int
	// Best is the best tour cost found so far.
	Best float64
	// Costs are the tour costs of every ant in this iteration.
	Costs []float64
}

// Colony is a small ant colony optimizer.
type Colony struct {
	inst  *Instance
	p     Params
	rng   *rand.Rand
	tau   [][]float64
	best  route.Route
	bestC float64
}

// NewColony prepares a colony. seed, when non-empty, biases the initial
// pheromone and is the initial best tour. stream selects an independent
// random sequence, so batch runs differ from each other.
func NewColony(inst *Instance, p Params, seed route.Route, stream uint64) *Colony {
	n := inst.Len()
	c := &Colony{
		inst:  inst,
		p:     p,
		rng:   rand.New(rand.NewPCG(hashName(inst.Name), stream)),
		tau:   make([][]float64, n),
		bestC: math.Inf(1),
	}
	for i := range c.tau {
		c.tau[i] = make([]float64, n)
		for j := range c.tau[i] {
			c.tau[i][j] = 1
		}
	}
	if len(seed) > 0 {
		c.best = closed(seed)
		c.bestC = inst.Cost(c.best)
		c.deposit(c.best, c.bestC)
	}
	return c
}

// Step runs one iteration.
func (c *Colony) Step(index int) Iteration {
	tours := make([]route.Route, c.p.Ants)
	costs := make([]float64, c.p.Ants)
	for a := range tours {
		tours[a] = c.walk()
		costs[a] = c.inst.Cost(tours[a])
		if costs[a] < c.bestC {
			c.bestC = costs[a]
			c.best = tours[a]
		}
	}

	for i := range c.tau {
		for j := range c.tau[i] {
			c.tau[i][j] *= 1 - c.p.Evaporation
		}
	}
	for a, t := range tours {
		c.deposit(t, costs[a])
	}
	return Iteration{Index: index, Best: round2(c.bestC), Costs: costs}
}

// Best returns the best closed tour found.
func (c *Colony) Best() route.Route {
	return c.best.Clone()
}

func (c *Colony) walk() route.Route {
	n := c.inst.Len()
	start := c.rng.IntN(n)
	visited := make([]bool, n)
	tour := make(route.Route, 0, n+1)
	tour = append(tour, route.NodeID(start))
	visited[start] = true

	weights := make([]float64, n)
	cur := start
	for len(tour) < n {
		total := 0.0
		for j := range n {
			weights[j] = 0
			if visited[j] {
				continue
			}
			d := max(c.inst.Dist(cur, j), 1e-9)
			weights[j] = math.Pow(c.tau[cur][j], c.p.Alpha) * math.Pow(1/d, c.p.Beta)
			total += weights[j]
		}

		next := -1
		if total > 0 && !math.IsInf(total, 0) {
			pick := c.rng.Float64() * total
			for j := range n {
				if weights[j] == 0 {
					continue
				}
				next = j
				pick -= weights[j]
				if pick <= 0 {
					break
				}
			}
		}
		if next < 0 {
			next = slices.Index(visited, false)
		}
		visited[next] = true
		tour = append(tour, route.NodeID(next))
		cur = next
	}
	return append(tour, tour[0])
}

func (c *Colony) deposit(t route.Route, cost float64) {
	if cost <= 0 {
		return
	}
	amount := c.p.Q / cost
	for i := 1; i < len(t); i++ {
		a, b := t[i-1], t[i]
		c.tau[a][b] += amount
		c.tau[b][a] += amount
	}
}

func closed(r route.Route) route.Route {
	out := r.Clone()
	if len(out) > 1 && out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func hashName(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

package amp

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// Graph is the signal-routing runtime: registered nodes plus directed edges
// between their ports, rendered block-wise in topological order. Multiple
// edges into the same port sum additively, like analog summing at a
// junction.
type Graph struct {
	blockSize int
	nodes     []Node
	edges     []edge
	order     []Node
	dest      *Port
	sums      map[Node][]float64
}

type edge struct {
	from *Port
	to   *Port
}

// NewGraph creates an empty graph rendering blocks of at most blockSize
// samples.
func NewGraph(blockSize int) (*Graph, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive: %d", blockSize)
	}
	g := &Graph{
		blockSize: blockSize,
		dest:      &Port{},
		sums:      make(map[Node][]float64),
	}
	return g, nil
}

// Destination returns the sink port whose fan-in becomes the rendered
// output.
func (g *Graph) Destination() *Port { return g.dest }

// Add registers a node and allocates its block buffers. Adding the same
// node twice is a no-op.
func (g *Graph) Add(n Node) {
	for _, existing := range g.nodes {
		if existing == n {
			return
		}
	}
	g.nodes = append(g.nodes, n)
	if out := n.Out(); out != nil && out.buf == nil {
		out.buf = make([]float64, g.blockSize)
	}
	if in := n.In(); in != nil && in != n.Out() && in.buf == nil {
		in.buf = make([]float64, g.blockSize)
	}
	g.sums[n] = make([]float64, g.blockSize)
	g.order = nil
}

// Connect adds a directed edge from one port into another. Connecting an
// already connected pair is a no-op; a connection that would close a cycle
// is rejected.
func (g *Graph) Connect(from, to *Port) error {
	if from == nil || to == nil {
		return fmt.Errorf("connect: nil port")
	}
	if from.owner == nil {
		return fmt.Errorf("connect: cannot use the destination as a source")
	}
	if g.Connected(from, to) {
		return nil
	}
	g.edges = append(g.edges, edge{from: from, to: to})
	order, err := g.topoOrder()
	if err != nil {
		g.edges = g.edges[:len(g.edges)-1]
		return err
	}
	g.order = order
	return nil
}

// Disconnect removes the edge between two ports if present.
func (g *Graph) Disconnect(from, to *Port) {
	for i, e := range g.edges {
		if e.from == from && e.to == to {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			g.order = nil
			return
		}
	}
}

// Connected reports whether an edge from one port into another exists.
func (g *Graph) Connected(from, to *Port) bool {
	for _, e := range g.edges {
		if e.from == from && e.to == to {
			return true
		}
	}
	return false
}

// Reset clears the processing state of every node without touching control
// values or wiring.
func (g *Graph) Reset() {
	for _, n := range g.nodes {
		n.reset()
	}
}

// RenderBlock renders one block of destination samples into dst. len(dst)
// must not exceed the graph block size; excess samples are left untouched.
func (g *Graph) RenderBlock(dst []float64) {
	if len(dst) > g.blockSize {
		dst = dst[:g.blockSize]
	}
	n := len(dst)
	if n == 0 {
		return
	}
	if g.order == nil {
		order, err := g.topoOrder()
		if err != nil {
			core.Zero(dst)
			return
		}
		g.order = order
	}

	for _, node := range g.order {
		in := g.sums[node][:n]
		core.Zero(in)
		inPort := node.In()
		for _, e := range g.edges {
			if e.to == inPort {
				addInto(in, e.from.buf[:n])
			}
		}
		node.processBlock(in, node.Out().buf[:n])
	}

	core.Zero(dst)
	for _, e := range g.edges {
		if e.to == g.dest {
			addInto(dst, e.from.buf[:n])
		}
	}
}

// topoOrder orders nodes so every edge source precedes its target (Kahn).
// Edges into the destination impose no ordering.
func (g *Graph) topoOrder() ([]Node, error) {
	indegree := make(map[Node]int, len(g.nodes))
	adjacency := make(map[Node][]Node, len(g.nodes))
	for _, e := range g.edges {
		src := e.from.owner
		dst := e.to.owner
		if src == nil || dst == nil {
			continue
		}
		adjacency[src] = append(adjacency[src], dst)
		indegree[dst]++
	}

	queue := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if indegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]Node, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, m := range adjacency[n] {
			indegree[m]--
			if indegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("graph contains a cycle")
	}
	return order, nil
}

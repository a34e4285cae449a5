package amp

// Port is a connection point on a node. Ports are identity handles: the
// graph tracks edges between them and owns the attached block buffers.
type Port struct {
	owner Node
	buf   []float64
}

// Owner returns the node this port belongs to, or nil for the graph
// destination.
func (p *Port) Owner() Node { return p.owner }

// Node is the capability shared by every stage in the signal graph: a raw
// control value in [0,1] plus input/output connection points. Single-stage
// nodes return the same port from In and Out; composite nodes (Reverb)
// expose distinct ports. Nodes are owned by the Amp that created them and
// must only be driven from the goroutine owning it.
type Node interface {
	// SetValue stores the raw control value and recomputes the physical
	// parameters this node controls. Out-of-range values are clamped,
	// never rejected. Calling it twice with the same value leaves the
	// node in the same physical state as calling it once.
	SetValue(v float64)

	// Value returns the last stored control value, not the derived
	// physical parameter.
	Value() float64

	In() *Port
	Out() *Port

	// processBlock consumes one block of summed input samples and writes
	// the node's output. len(in) == len(out); implementations must not
	// retain either slice.
	processBlock(in, out []float64)

	// reset clears processing state (filter memories, delay lines)
	// without touching control values.
	reset()
}

package flowgraph

import (
	"fmt"
	"strings"

	"github.com/lvatt/flowgraph/mutable"
)

type (
	// Routing defines sequence of DSP components allocators.
	Routing struct {
		Source     SourceAllocatorFunc
		Processors []ProcessorAllocatorFunc
		Sink       SinkAllocatorFunc
	}

	// Graph is an allocated and validated routing.
	Graph struct {
		BufferSize int
		Source     Source
		Processors []Processor
		Sink       Sink
		edges      []Edge
	}

	// Edge links two adjacent components. Each edge has exactly one
	// producer and one consumer.
	Edge struct {
		From, To string
		SignalProperties
	}
)

// Processors is a helper function to use in routing constructor.
func Processors(processors ...ProcessorAllocatorFunc) []ProcessorAllocatorFunc {
	return processors
}

// New allocates the components of the routing and validates every edge.
// Every component receives its own mutable context.
func New(bufferSize int, r Routing) (*Graph, error) {
	if bufferSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBufferSize, bufferSize)
	}
	if r.Source == nil {
		return nil, ErrNoSource
	}
	if r.Sink == nil {
		return nil, ErrNoSink
	}
	for i := range r.Processors {
		if r.Processors[i] == nil {
			return nil, fmt.Errorf("processor %d: %w", i, ErrNilProcessor)
		}
	}

	mctx := mutable.Mutable()
	source, err := r.Source(mctx, bufferSize)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	source.Context = mctx
	source.Name = componentName(source.Name, "source", 0)

	g := Graph{
		BufferSize: bufferSize,
		Source:     source,
		Processors: make([]Processor, 0, len(r.Processors)),
		edges:      make([]Edge, 0, len(r.Processors)+1),
	}

	from, props := source.Name, source.Output
	for i := range r.Processors {
		mctx := mutable.Mutable()
		p, err := r.Processors[i](mctx, bufferSize, props)
		if err != nil {
			return nil, fmt.Errorf("processor %d: %w", i, err)
		}
		p.Context = mctx
		p.Name = componentName(p.Name, "processor", i)
		if err := props.CheckKind(p.Input); err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		g.edges = append(g.edges, Edge{From: from, To: p.Name, SignalProperties: props})
		g.Processors = append(g.Processors, p)
		from, props = p.Name, p.Output
	}

	mctx = mutable.Mutable()
	sink, err := r.Sink(mctx, bufferSize, props)
	if err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	sink.Context = mctx
	sink.Name = componentName(sink.Name, "sink", 0)
	if err := props.CheckKind(sink.Input); err != nil {
		return nil, fmt.Errorf("%s: %w", sink.Name, err)
	}
	g.edges = append(g.edges, Edge{From: from, To: sink.Name, SignalProperties: props})
	g.Sink = sink
	return &g, nil
}

// Edges returns the edges in the order of the graph. Sample rates are the
// rates at construction time.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// String returns the topology, e.g. "iq -> [complex@2000000Hz] -> filter".
func (g *Graph) String() string {
	if len(g.edges) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(g.edges[0].From)
	for _, e := range g.edges {
		fmt.Fprintf(&b, " -> [%v] -> %s", e.SignalProperties, e.To)
	}
	return b.String()
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s %v", e.From, e.To, e.SignalProperties)
}

func componentName(name, kind string, i int) string {
	if name != "" {
		return name
	}
	if kind == "processor" {
		return fmt.Sprintf("%s-%d", kind, i)
	}
	return kind
}

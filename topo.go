package callsim

// topo.go converts an analysis result into a graph representation of the
// location topology.  The general approach is the same as converting a
// network description into the data structures of a graph package with
// built-in path discovery: locations become nodes, directed links with
// traffic become weighted edges, and graph algorithms answer questions
// like reachability that the presentation layer draws from

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"math"
)

// A TrafficTopo is a weighted directed graph over the locations of one
// analysis run.  Edge weights are daily call minutes
type TrafficTopo struct {
	g      *simple.WeightedDirectedGraph
	idFor  map[string]int64
	nameOf map[int64]string
}

// BuildTrafficTopo constructs the graph form of a set of link metrics
func BuildTrafficTopo(links []LinkMetrics) *TrafficTopo {
	tt := new(TrafficTopo)
	tt.g = simple.NewWeightedDirectedGraph(0, math.Inf(1))
	tt.idFor = make(map[string]int64)
	tt.nameOf = make(map[int64]string)

	ensure := func(name string) int64 {
		id, present := tt.idFor[name]
		if present {
			return id
		}
		id = int64(len(tt.idFor))
		tt.idFor[name] = id
		tt.nameOf[id] = name
		tt.g.AddNode(simple.Node(id))
		return id
	}

	for _, lm := range links {
		from := ensure(lm.From)
		to := ensure(lm.To)
		weightedEdge := simple.WeightedEdge{F: simple.Node(from), T: simple.Node(to), W: lm.DailyMinutes}
		tt.g.SetWeightedEdge(weightedEdge)
	}
	return tt
}

// Locations returns the names of the locations present in the topology
func (tt *TrafficTopo) Locations() []string {
	names := make([]string, 0, len(tt.idFor))
	nodes := tt.g.Nodes()
	for nodes.Next() {
		names = append(names, tt.nameOf[nodes.Node().ID()])
	}
	return names
}

// OriginLoad sums the daily minutes on the edges leaving a location
func (tt *TrafficTopo) OriginLoad(name string) float64 {
	id, present := tt.idFor[name]
	if !present {
		return 0.0
	}
	var total float64
	to := tt.g.From(id)
	for to.Next() {
		edge := tt.g.WeightedEdge(id, to.Node().ID())
		if edge != nil {
			total += edge.Weight()
		}
	}
	return total
}

// FullyConnected reports whether every location can reach every other
// by some directed path.  The shortest-path tree from each node is
// computed with graph/path.DijkstraFrom, and a missing path shows up as
// an infinite weight
func (tt *TrafficTopo) FullyConnected() bool {
	nodes := graph.NodesOf(tt.g.Nodes())
	for _, src := range nodes {
		spTree := path.DijkstraFrom(src, tt.g)
		for _, dst := range nodes {
			if src.ID() == dst.ID() {
				continue
			}
			if _, w := spTree.To(dst.ID()); math.IsInf(w, 1) {
				return false
			}
		}
	}
	return true
}

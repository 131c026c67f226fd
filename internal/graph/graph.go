// Package graph assembles the directed multigraph a model compiles from:
// nodes are entities identified by [expr.EntityID], edges carry a typed
// symbolic rate expression. Entities and edges are immutable once built.
package graph

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"cytoflux/internal/expr"
)

// EdgeType tags what biological process an edge encodes. The synthesizer
// never dispatches on the tag (classification is purely structural, over the
// endpoint identifiers); the tag exists for diagnostics and persistence.
type EdgeType string

const (
	EdgeMigration     EdgeType = "migration"
	EdgeDeath         EdgeType = "death"
	EdgeProliferation EdgeType = "proliferation"
	EdgeStateChange   EdgeType = "state_change"
	EdgeKilling       EdgeType = "killing"
	EdgeSecretion     EdgeType = "secretion"
	EdgeSink          EdgeType = "sink"
	EdgeDiffusion     EdgeType = "diffusion"
	EdgeDegradation   EdgeType = "degradation"
	EdgeInfluence     EdgeType = "influence"
)

// Entity is a graph node: an identifier plus the optional enumeration of
// discrete-state variable names the authoring layer declared for it.
type Entity struct {
	ID     expr.EntityID
	States []string
}

// Edge is a directed rate edge. From == To is legal and encodes intrinsic
// growth or decay of the entity itself.
type Edge struct {
	Type EdgeType
	From expr.EntityID
	To   expr.EntityID
	Rate expr.Expr
}

// IntegrityError reports a malformed entity or edge reference. It is fatal:
// a graph that fails to build cannot produce a model.
type IntegrityError struct {
	ID     expr.EntityID
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("graph: integrity violation at %s: %s", e.ID, e.Reason)
}

// Graph is the built multigraph. Node iteration order is insertion order,
// which downstream stages rely on for deterministic equation ordering.
type Graph struct {
	nodes map[expr.EntityID]Entity
	order []expr.EntityID
	edges []Edge
	in    map[expr.EntityID][]int
	out   map[expr.EntityID][]int
}

// Build constructs a graph from entity and edge lists. An edge endpoint that
// names no declared entity is tolerated: an implicit node is created for it
// rather than the edge being dropped. Re-declaring an identifier with a
// conflicting state enumeration fails with [IntegrityError].
func Build(entities []Entity, edges []Edge, log *zap.Logger) (*Graph, error) {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Graph{
		nodes: make(map[expr.EntityID]Entity, len(entities)),
		in:    make(map[expr.EntityID][]int),
		out:   make(map[expr.EntityID][]int),
	}

	for _, ent := range entities {
		if prev, ok := g.nodes[ent.ID]; ok {
			if !slices.Equal(prev.States, ent.States) {
				return nil, &IntegrityError{ID: ent.ID, Reason: "duplicate entity with conflicting state enumeration"}
			}
			continue
		}
		g.addNode(ent)
	}

	for _, e := range edges {
		if e.Rate == nil {
			return nil, &IntegrityError{ID: e.From, Reason: fmt.Sprintf("%s edge to %s has no rate expression", e.Type, e.To)}
		}
		for _, end := range []expr.EntityID{e.From, e.To} {
			if _, ok := g.nodes[end]; !ok {
				log.Warn("edge endpoint not declared, creating implicit node",
					zap.String("entity", end.String()),
					zap.String("edge_type", string(e.Type)))
				g.addNode(Entity{ID: end})
			}
		}
		idx := len(g.edges)
		g.edges = append(g.edges, e)
		g.in[e.To] = append(g.in[e.To], idx)
		g.out[e.From] = append(g.out[e.From], idx)
	}

	return g, nil
}

func (g *Graph) addNode(ent Entity) {
	g.nodes[ent.ID] = ent
	g.order = append(g.order, ent.ID)
}

// Nodes returns all entities in insertion order.
func (g *Graph) Nodes() []Entity {
	out := make([]Entity, len(g.order))
	for i, id := range g.order {
		out[i] = g.nodes[id]
	}
	return out
}

// Node looks up an entity by identifier.
func (g *Graph) Node(id expr.EntityID) (Entity, bool) {
	ent, ok := g.nodes[id]
	return ent, ok
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// EdgesInto returns the edges whose destination is id, self-loops included.
func (g *Graph) EdgesInto(id expr.EntityID) []Edge {
	return g.collect(g.in[id])
}

// EdgesFrom returns the edges whose source is id, self-loops included.
func (g *Graph) EdgesFrom(id expr.EntityID) []Edge {
	return g.collect(g.out[id])
}

// Degree returns the number of edges incident to id. Self-loops count once.
func (g *Graph) Degree(id expr.EntityID) int {
	n := len(g.in[id])
	for _, idx := range g.out[id] {
		if g.edges[idx].From != g.edges[idx].To {
			n++
		}
	}
	return n
}

func (g *Graph) collect(idxs []int) []Edge {
	out := make([]Edge, len(idxs))
	for i, idx := range idxs {
		out[i] = g.edges[idx]
	}
	return out
}

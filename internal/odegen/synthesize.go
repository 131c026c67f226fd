// Package odegen converts a model graph into one ordinary differential
// equation per entity.
//
// The sign-and-inclusion rule: every incoming edge (self-loops included) is
// added to the node's equation; an outgoing edge is subtracted only when it
// is a transfer — the same (kind, name) quantity moving between discrete
// states within one compartment, or between compartments within one state.
// A transfer edge therefore contributes net zero across the equation set.
// Everything else (proliferation into a daughter state, killing, secretion)
// models generation or interaction, not transport: its depletion, if any,
// must be an explicit self-loop authored by the caller.
package odegen

import (
	"go.uber.org/zap"

	"cytoflux/internal/expr"
	"cytoflux/internal/graph"
)

// Equation is d(Target)/dt = RHS.
type Equation struct {
	Target expr.EntityID
	RHS    expr.Expr
}

// TransferKind classifies an outgoing edge for the subtraction rule.
type TransferKind int

const (
	// NotTransfer covers self-loops, cross-kind edges, and edges with
	// unclassifiable endpoints. Never subtracted at the source.
	NotTransfer TransferKind = iota
	// StateChange moves a quantity between discrete states in one compartment.
	StateChange
	// Migration moves a quantity between compartments in one discrete state.
	Migration
)

// Classify applies the transfer rule to an edge's endpoints. Endpoints
// missing kind or name are unclassifiable and yield NotTransfer; the caller
// decides whether to surface that (Synthesize logs it at WARN).
func Classify(from, to expr.EntityID) TransferKind {
	if from == to {
		return NotTransfer
	}
	if from.Kind == "" || from.Name == "" || to.Kind == "" || to.Name == "" {
		return NotTransfer
	}
	if from.Kind != to.Kind || from.Name != to.Name {
		return NotTransfer
	}
	if from.Compartment == to.Compartment && from.State != to.State {
		return StateChange
	}
	if from.State == to.State && from.Compartment != to.Compartment {
		return Migration
	}
	return NotTransfer
}

// Synthesize derives one equation per node that is the endpoint of at least
// one edge, in graph node order. Isolated nodes contribute no dynamics and
// are dropped.
func Synthesize(g *graph.Graph, log *zap.Logger) []Equation {
	if log == nil {
		log = zap.NewNop()
	}

	var eqs []Equation
	for _, node := range g.Nodes() {
		if g.Degree(node.ID) == 0 {
			continue
		}

		var rhs expr.Expr = expr.Zero
		for _, e := range g.EdgesInto(node.ID) {
			rhs = expr.Add(rhs, e.Rate)
		}

		for _, e := range g.EdgesFrom(node.ID) {
			if e.From == e.To {
				continue // already added as its own incoming edge
			}
			switch kind := Classify(e.From, e.To); kind {
			case StateChange, Migration:
				rhs = expr.Sub(rhs, e.Rate)
			case NotTransfer:
				if unclassifiable(e.From) || unclassifiable(e.To) {
					log.Warn("edge endpoint missing classification, treated as non-transfer",
						zap.String("from", e.From.String()),
						zap.String("to", e.To.String()),
						zap.String("edge_type", string(e.Type)))
				} else {
					log.Debug("outgoing edge not subtracted",
						zap.String("from", e.From.String()),
						zap.String("to", e.To.String()),
						zap.String("edge_type", string(e.Type)))
				}
			}
		}

		eqs = append(eqs, Equation{Target: node.ID, RHS: rhs})
	}
	return eqs
}

func unclassifiable(id expr.EntityID) bool {
	return id.Kind == "" || id.Name == ""
}

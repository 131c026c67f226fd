package bio

import (
	"go.uber.org/zap"

	"cytoflux/internal/expr"
	"cytoflux/internal/graph"
)

// Default rate constants applied to autogenerated linkages; callers override
// them per model through the compiled parameter vector.
const (
	defaultMigration     = 10
	defaultDeath         = 5
	defaultProliferation = 10
	defaultKill          = 10
	defaultSecrete       = 10
	defaultSink          = 10
	defaultDiffuse       = 10
	defaultDegrade       = 10
	defaultGrowth        = 10
	defaultCarryCap      = 10
)

// Compose expands the layer into entity and edge lists.
//
// Tx cells exist in every compartment and every enumerated state; they get
// migration edges to adjacent compartments, death self-loops, proliferation
// into the daughter state, the declared state links, killing edges, and
// cytokine links. Ordinary cells get growth and death self-loops in their
// home compartment. Cytokines exist in every compartment with diffusion to
// adjacent compartments and degradation self-loops.
func (l *Layer) Compose() ([]graph.Entity, []graph.Edge) {
	var entities []graph.Entity
	var edges []graph.Edge

	for _, tx := range l.txCells {
		for _, comp := range l.compartments {
			for _, assign := range enumerateStates(tx.states) {
				entities = append(entities, graph.Entity{ID: l.txID(tx, comp, assign), States: tx.states})
			}
		}
	}
	for _, cell := range l.cells {
		entities = append(entities, graph.Entity{ID: expr.EntityID{Kind: KindCell, Name: cell.name, Compartment: cell.compartment}})
	}
	for _, cyt := range l.cytokines {
		for _, comp := range l.compartments {
			entities = append(entities, graph.Entity{ID: expr.EntityID{Kind: KindCytokine, Name: cyt, Compartment: comp}})
		}
	}

	for _, tx := range l.txCells {
		edges = append(edges, l.txEdges(tx)...)
	}
	edges = append(edges, l.cellEdges()...)
	edges = append(edges, l.cytokineEdges()...)

	for _, x := range l.custom {
		edges = append(edges, graph.Edge{Type: x.kind, From: x.from, To: x.to, Rate: x.rate})
	}

	return entities, edges
}

func (l *Layer) txEdges(tx *txCell) []graph.Edge {
	var edges []graph.Edge

	for _, comp := range l.compartments {
		for _, assign := range enumerateStates(tx.states) {
			a := l.txID(tx, comp, assign)
			ref := expr.NewRef(a)

			for _, adj := range l.adjacent(comp) {
				b := l.txID(tx, adj, assign)
				k := expr.NewParam("k_mig_"+comp+"_to_"+adj, defaultMigration)
				edges = append(edges, graph.Edge{
					Type: graph.EdgeMigration, From: a, To: b,
					Rate: expr.Mul(k, ref),
				})
			}

			edges = append(edges, graph.Edge{
				Type: graph.EdgeDeath, From: a, To: a,
				Rate: expr.Neg(expr.Mul(expr.NewParam("k_death", defaultDeath), ref)),
			})

			if tx.daughter != nil {
				b := l.txID(tx, comp, tx.daughter)
				edges = append(edges, graph.Edge{
					Type: graph.EdgeProliferation, From: a, To: b,
					Rate: expr.Mul(expr.NewParam("k_proliferation", defaultProliferation), ref),
				})
			}

			for _, link := range tx.links {
				if formatState(tx.states, link.from) != formatState(tx.states, assign) {
					continue
				}
				b := l.txID(tx, comp, link.to)
				edges = append(edges, graph.Edge{
					Type: graph.EdgeStateChange, From: a, To: b,
					Rate: inCompartment(link.rate, comp),
				})
			}
		}

		for _, kl := range tx.kills {
			target, ok := l.cellIn(kl.target, comp)
			if !ok {
				// The killed cell type does not live here; a linkage would
				// reference a species with no governing equation.
				continue
			}
			for _, ks := range kl.killerStates {
				a := l.txID(tx, comp, ks)
				rate := expr.Neg(expr.Mul(
					expr.NewParam("k_kill", defaultKill),
					expr.NewRef(a),
					expr.NewRef(target),
				))
				edges = append(edges, graph.Edge{Type: graph.EdgeKilling, From: a, To: target, Rate: rate})
			}
		}

		for _, cl := range tx.cytokine {
			cyt := expr.EntityID{Kind: KindCytokine, Name: cl.cytokine, Compartment: comp}
			for _, state := range cl.states {
				a := l.txID(tx, comp, state)
				l.log.Debug("wiring cytokine linkage",
					zap.String("cell_state", a.String()),
					zap.String("cytokine", cyt.String()),
					zap.String("action", string(cl.action)))

				var rate expr.Expr
				var kind graph.EdgeType
				switch cl.action {
				case Secrete:
					kind = graph.EdgeSecretion
					rate = expr.Mul(expr.NewParam("k_secrete", defaultSecrete), expr.NewRef(a))
				case Sink:
					kind = graph.EdgeSink
					rate = expr.Neg(expr.Mul(
						expr.NewParam("k_sink", defaultSink),
						expr.NewRef(a),
						expr.NewRef(cyt),
					))
				default:
					l.log.Warn("unknown cytokine action, linkage skipped", zap.String("action", string(cl.action)))
					continue
				}
				edges = append(edges, graph.Edge{Type: kind, From: a, To: cyt, Rate: rate})
			}
		}
	}

	return edges
}

func (l *Layer) cellEdges() []graph.Edge {
	var edges []graph.Edge
	for _, cell := range l.cells {
		id := expr.EntityID{Kind: KindCell, Name: cell.name, Compartment: cell.compartment}
		a := expr.NewRef(id)

		var growth expr.Expr
		if cell.logistic {
			k := expr.NewParam("k_cell_prolif", defaultGrowth)
			carry := expr.NewParam("k_cell_carrycap", defaultCarryCap)
			growth = expr.Mul(k, a, expr.Sub(expr.Lit(1), expr.Div(a, carry)))
		} else {
			growth = expr.Mul(expr.NewParam("k_cell_prolif", defaultGrowth), a)
		}
		edges = append(edges, graph.Edge{Type: graph.EdgeProliferation, From: id, To: id, Rate: growth})

		edges = append(edges, graph.Edge{
			Type: graph.EdgeDeath, From: id, To: id,
			Rate: expr.Neg(expr.Mul(expr.NewParam("k_death", defaultDeath), a)),
		})
	}
	return edges
}

func (l *Layer) cytokineEdges() []graph.Edge {
	var edges []graph.Edge
	for _, cyt := range l.cytokines {
		for _, comp := range l.compartments {
			id := expr.EntityID{Kind: KindCytokine, Name: cyt, Compartment: comp}
			a := expr.NewRef(id)

			for _, adj := range l.adjacent(comp) {
				b := expr.EntityID{Kind: KindCytokine, Name: cyt, Compartment: adj}
				edges = append(edges, graph.Edge{
					Type: graph.EdgeDiffusion, From: id, To: b,
					Rate: expr.Mul(expr.NewParam("k_diffuse", defaultDiffuse), a),
				})
			}

			edges = append(edges, graph.Edge{
				Type: graph.EdgeDegradation, From: id, To: id,
				Rate: expr.Neg(expr.Mul(expr.NewParam("k_degrade", defaultDegrade), a)),
			})
		}
	}
	return edges
}

func (l *Layer) cellIn(name, compartment string) (expr.EntityID, bool) {
	for _, cell := range l.cells {
		if cell.name == name && cell.compartment == compartment {
			return expr.EntityID{Kind: KindCell, Name: name, Compartment: compartment}, true
		}
	}
	return expr.EntityID{}, false
}

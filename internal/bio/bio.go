// Package bio is the declarative authoring layer: compartments, therapeutic
// cell types with binary state spaces, ordinary cells, and cytokines, plus
// the linkage rules between them. Compose expands a layer into the entity
// and edge lists the core pipeline consumes.
//
// Authoring-level species references leave the compartment blank; Compose
// resolves them against each compartment context by rewriting the rate
// expressions, so one linkage declaration fans out across compartments.
package bio

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cytoflux/internal/expr"
	"cytoflux/internal/graph"
)

const (
	KindTxCell   = "tx_cell"
	KindCell     = "cell"
	KindCytokine = "cytokine"
)

// Action is what a cell state does to a linked cytokine.
type Action string

const (
	Secrete Action = "secrete"
	Sink    Action = "sink"
)

// StateAssign maps state-variable names to on/off. Variables left out are
// off.
type StateAssign map[string]bool

type stateLink struct {
	from, to StateAssign
	rate     expr.Expr
}

type cytokineLink struct {
	cytokine string
	states   []StateAssign
	action   Action
}

type killLink struct {
	target       string
	killerStates []StateAssign
}

type txCell struct {
	name     string
	states   []string
	links    []stateLink
	daughter StateAssign
	cytokine []cytokineLink
	kills    []killLink
}

type cellType struct {
	name        string
	compartment string
	logistic    bool
}

type interaction struct {
	kind     graph.EdgeType
	from, to expr.EntityID
	rate     expr.Expr
}

// Layer accumulates a model specification. Every Layer owns fresh
// containers; nothing is shared between instances.
type Layer struct {
	compartments []string
	links        [][2]string
	txCells      []*txCell
	cells        []cellType
	cytokines    []string
	custom       []interaction
	log          *zap.Logger
}

func NewLayer(log *zap.Logger) *Layer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Layer{log: log}
}

func (l *Layer) AddCompartment(name string) {
	l.compartments = append(l.compartments, name)
}

func (l *Layer) LinkCompartments(a, b string) {
	l.links = append(l.links, [2]string{a, b})
}

// AddTxCell declares a therapeutic cell type whose discrete state space is
// all 2^n assignments of the named binary state variables.
func (l *Layer) AddTxCell(name string, states ...string) {
	l.txCells = append(l.txCells, &txCell{name: name, states: states})
}

// AddCells declares an ordinary cell type resident in one compartment, with
// logistic (carrying-capacity) or exponential intrinsic growth.
func (l *Layer) AddCells(name, compartment string, logistic bool) {
	l.cells = append(l.cells, cellType{name: name, compartment: compartment, logistic: logistic})
}

// AddCytokine declares a cytokine; Compose instantiates it in every
// compartment with diffusion and degradation.
func (l *Layer) AddCytokine(name string) {
	l.cytokines = append(l.cytokines, name)
}

// AddInteraction adds a custom edge verbatim.
func (l *Layer) AddInteraction(kind graph.EdgeType, from, to expr.EntityID, rate expr.Expr) {
	l.custom = append(l.custom, interaction{kind: kind, from: from, to: to, rate: rate})
}

// AddTxStateLink declares a state transition for a tx cell; the rate may
// reference any authoring-level species and is resolved per compartment.
func (l *Layer) AddTxStateLink(cell string, from, to StateAssign, rate expr.Expr) error {
	tx := l.findTx(cell)
	if tx == nil {
		return fmt.Errorf("bio: unknown tx cell %q", cell)
	}
	tx.links = append(tx.links, stateLink{from: from, to: to, rate: rate})
	return nil
}

// SetTxDaughterState declares which state proliferation products land in.
func (l *Layer) SetTxDaughterState(cell string, daughter StateAssign) error {
	tx := l.findTx(cell)
	if tx == nil {
		return fmt.Errorf("bio: unknown tx cell %q", cell)
	}
	tx.daughter = daughter
	return nil
}

// AddTxKillTarget declares that the given tx cell states kill a cell type.
func (l *Layer) AddTxKillTarget(cell, target string, killerStates ...StateAssign) error {
	tx := l.findTx(cell)
	if tx == nil {
		return fmt.Errorf("bio: unknown tx cell %q", cell)
	}
	tx.kills = append(tx.kills, killLink{target: target, killerStates: killerStates})
	return nil
}

// AddTxCytokineLink declares secretion into or sinking of a cytokine by the
// given tx cell states.
func (l *Layer) AddTxCytokineLink(cell, cytokine string, action Action, states ...StateAssign) error {
	tx := l.findTx(cell)
	if tx == nil {
		return fmt.Errorf("bio: unknown tx cell %q", cell)
	}
	tx.cytokine = append(tx.cytokine, cytokineLink{cytokine: cytokine, states: states, action: action})
	return nil
}

func (l *Layer) findTx(name string) *txCell {
	for _, tx := range l.txCells {
		if tx.name == name {
			return tx
		}
	}
	return nil
}

// TxState returns an authoring-level reference to one discrete state of a tx
// cell; the compartment stays blank until Compose resolves it.
func (l *Layer) TxState(cell string, assign StateAssign) expr.Ref {
	tx := l.findTx(cell)
	state := ""
	if tx != nil {
		state = formatState(tx.states, assign)
	}
	return expr.NewRef(expr.EntityID{Kind: KindTxCell, Name: cell, State: state})
}

// Cells returns an authoring-level reference to an ordinary cell type.
func (l *Layer) Cells(name string) expr.Ref {
	return expr.NewRef(expr.EntityID{Kind: KindCell, Name: name})
}

// Cytokine returns an authoring-level reference to a cytokine.
func (l *Layer) Cytokine(name string) expr.Ref {
	return expr.NewRef(expr.EntityID{Kind: KindCytokine, Name: name})
}

// formatState renders an assignment over the declared variables in
// declaration order, e.g. "activated=1,primed=0".
func formatState(vars []string, assign StateAssign) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		bit := "0"
		if assign[v] {
			bit = "1"
		}
		parts[i] = v + "=" + bit
	}
	return strings.Join(parts, ",")
}

// enumerateStates yields every assignment of n binary variables, all-off
// first.
func enumerateStates(vars []string) []StateAssign {
	n := len(vars)
	out := make([]StateAssign, 0, 1<<n)
	for mask := 0; mask < 1<<n; mask++ {
		assign := make(StateAssign, n)
		for j, v := range vars {
			assign[v] = mask&(1<<j) != 0
		}
		out = append(out, assign)
	}
	return out
}

func (l *Layer) adjacent(compartment string) []string {
	var out []string
	for _, link := range l.links {
		var target string
		switch compartment {
		case link[0]:
			target = link[1]
		case link[1]:
			target = link[0]
		default:
			continue
		}
		seen := false
		for _, t := range out {
			if t == target {
				seen = true
			}
		}
		if !seen {
			out = append(out, target)
		}
	}
	return out
}

// inCompartment rewrites every compartment-blank reference in rate to live
// in the given compartment.
func inCompartment(rate expr.Expr, compartment string) expr.Expr {
	return expr.Rewrite(rate, func(n expr.Expr) (expr.Expr, bool) {
		if ref, ok := n.(expr.Ref); ok && ref.ID.Compartment == "" {
			id := ref.ID
			id.Compartment = compartment
			return expr.NewRef(id), true
		}
		return nil, false
	})
}

func (l *Layer) txID(tx *txCell, compartment string, assign StateAssign) expr.EntityID {
	return expr.EntityID{
		Kind:        KindTxCell,
		Name:        tx.name,
		Compartment: compartment,
		State:       formatState(tx.states, assign),
	}
}

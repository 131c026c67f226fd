package expr

import (
	"fmt"
	"strings"
)

// EntityID identifies a modeled quantity. Two identifiers are equal iff all
// four fields match exactly; an empty Compartment or State means the field is
// absent. EntityID is the only valid node key in a model graph and the only
// valid target of a [Ref].
type EntityID struct {
	Kind        string
	Name        string
	Compartment string
	State       string
}

func (id EntityID) String() string {
	parts := []string{id.Kind, id.Name}
	if id.Compartment != "" {
		parts = append(parts, id.Compartment)
	}
	if id.State != "" {
		parts = append(parts, id.State)
	}
	return "[" + strings.Join(parts, "].[") + "]"
}

// Op is an arithmetic operator on expression nodes.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpPow
	OpNeg
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpPow:
		return "^"
	case OpNeg:
		return "-"
	}
	return "?"
}

// Expr is an immutable symbolic rate expression. The concrete node types are
// [Ref], [Param], [Num], [Unary], and [Binary]; nothing outside this package
// can add new ones, which is what lets the compiler treat the tree as a
// closed set of cases.
type Expr interface {
	fmt.Stringer
	node()
}

// Ref is a leaf referencing one entity's current value.
type Ref struct {
	ID EntityID
}

// Param is a leaf naming a model parameter. Names are global within a model;
// two Params with the same name denote the same parameter regardless of the
// Value they were constructed with (the first-seen default wins at compile
// time).
type Param struct {
	Name  string
	Value float64
}

// Num is a numeric literal.
type Num struct {
	Value float64
}

// Unary is a single-operand node; the only unary operator is negation.
type Unary struct {
	Op Op
	X  Expr
}

// Binary is a two-operand arithmetic node.
type Binary struct {
	Op   Op
	X, Y Expr
}

func (Ref) node()    {}
func (Param) node()  {}
func (Num) node()    {}
func (Unary) node()  {}
func (Binary) node() {}

func (r Ref) String() string   { return r.ID.String() }
func (p Param) String() string { return p.Name }
func (n Num) String() string   { return fmt.Sprintf("%g", n.Value) }
func (u Unary) String() string { return fmt.Sprintf("(%s%s)", u.Op, u.X) }
func (b Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.X, b.Op, b.Y)
}

// Zero is the additive identity every synthesized equation starts from.
var Zero = Num{Value: 0}

func NewRef(id EntityID) Ref                  { return Ref{ID: id} }
func NewParam(name string, val float64) Param { return Param{Name: name, Value: val} }
func Lit(v float64) Num                       { return Num{Value: v} }

func Neg(x Expr) Expr    { return Unary{Op: OpNeg, X: x} }
func Sub(x, y Expr) Expr { return Binary{Op: OpSub, X: x, Y: y} }
func Div(x, y Expr) Expr { return Binary{Op: OpDiv, X: x, Y: y} }
func Pow(x, y Expr) Expr { return Binary{Op: OpPow, X: x, Y: y} }

// Add folds its operands left to right. With no operands it returns [Zero].
func Add(xs ...Expr) Expr {
	if len(xs) == 0 {
		return Zero
	}
	out := xs[0]
	for _, x := range xs[1:] {
		out = Binary{Op: OpAdd, X: out, Y: x}
	}
	return out
}

// Mul folds its operands left to right. With no operands it returns 1.
func Mul(xs ...Expr) Expr {
	if len(xs) == 0 {
		return Lit(1)
	}
	out := xs[0]
	for _, x := range xs[1:] {
		out = Binary{Op: OpMul, X: out, Y: x}
	}
	return out
}

// Hill builds the sigmoidal rate law kmin + (kmax-kmin)/(1+(x50/x)^n),
// the standard dose-response term for activation and inhibition kinetics.
func Hill(x, kmin, kmax, x50 Expr, n float64) Expr {
	return Add(kmin, Div(Sub(kmax, kmin), Add(Lit(1), Pow(Div(x50, x), Lit(n)))))
}

// IsZero reports whether e is the literal zero.
func IsZero(e Expr) bool {
	n, ok := e.(Num)
	return ok && n.Value == 0
}

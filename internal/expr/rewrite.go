package expr

// LeafEqual reports whether two leaves denote the same model quantity:
// Refs compare by identifier, Params by name, Nums by value. Non-leaf or
// mixed-kind operands are never equal.
func LeafEqual(a, b Expr) bool {
	switch x := a.(type) {
	case Ref:
		y, ok := b.(Ref)
		return ok && x.ID == y.ID
	case Param:
		y, ok := b.(Param)
		return ok && x.Name == y.Name
	case Num:
		y, ok := b.(Num)
		return ok && x.Value == y.Value
	}
	return false
}

// Rewrite walks e bottom-up and applies f to every node, rebuilding interior
// nodes whose children changed. f returning (nil, false) keeps the node. The
// input tree is never mutated.
func Rewrite(e Expr, f func(Expr) (Expr, bool)) Expr {
	switch n := e.(type) {
	case Unary:
		x := Rewrite(n.X, f)
		e = Unary{Op: n.Op, X: x}
	case Binary:
		x := Rewrite(n.X, f)
		y := Rewrite(n.Y, f)
		e = Binary{Op: n.Op, X: x, Y: y}
	}
	if out, ok := f(e); ok {
		return out
	}
	return e
}

// Substitute returns e with every leaf equal to old replaced by repl.
func Substitute(e, old, repl Expr) Expr {
	return Rewrite(e, func(n Expr) (Expr, bool) {
		if LeafEqual(n, old) {
			return repl, true
		}
		return nil, false
	})
}

// Leaves enumerates the Ref and Param leaves of e in left-to-right order.
// Numeric literals are not reported. Duplicates are kept; callers that need
// first-seen deduplication do it themselves so the traversal order stays
// the single source of canonical ordering.
func Leaves(e Expr) []Expr {
	var out []Expr
	var walk func(Expr)
	walk = func(n Expr) {
		switch x := n.(type) {
		case Ref, Param:
			out = append(out, x)
		case Unary:
			walk(x.X)
		case Binary:
			walk(x.X)
			walk(x.Y)
		}
	}
	walk(e)
	return out
}

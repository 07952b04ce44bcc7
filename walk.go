package ackermann

import (
	"sort"
)

// ExprVisitor represents a visitor that can be passed to WalkExpr().
type ExprVisitor interface {
	// Executed for every visited node. Returns the visitor to use for the
	// node's children, or nil to skip them.
	Visit(expr Expr) ExprVisitor
}

// WalkExpr traverses each expression in exprs depth-first, parents before
// children and children left to right. A node reachable through several
// parents is visited once for every path.
//
// The traversal uses an explicit stack so arbitrarily deep expressions do not
// grow the goroutine stack.
func WalkExpr(v ExprVisitor, exprs ...Expr) {
	walkExpr(v, nil, exprs)
}

// walkExpr is WalkExpr with optional deduplication. If seen is non-nil,
// nodes already in seen are skipped and every visited node is added to it.
func walkExpr(v ExprVisitor, seen map[Expr]struct{}, exprs []Expr) {
	type frame struct {
		expr Expr
		v    ExprVisitor
	}

	stack := make([]frame, 0, len(exprs))
	for i := len(exprs) - 1; i >= 0; i-- {
		stack = append(stack, frame{expr: exprs[i], v: v})
	}

	var children []Expr
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen != nil {
			if _, ok := seen[f.expr]; ok {
				continue
			}
			seen[f.expr] = struct{}{}
		}

		w := f.v.Visit(f.expr)
		if w == nil {
			continue
		}

		// Push in reverse so the leftmost child is popped first.
		children = appendChildren(children[:0], f.expr)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{expr: children[i], v: w})
		}
	}
}

// appendChildren appends the direct sub-expressions of expr to a.
//
// A read's children are its index followed by the index and value of every
// write in its update list, newest first.
func appendChildren(a []Expr, expr Expr) []Expr {
	switch expr := expr.(type) {
	case *BinaryExpr:
		return append(a, expr.LHS, expr.RHS)
	case *CastExpr:
		return append(a, expr.Src)
	case *ConcatExpr:
		return append(a, expr.MSB, expr.LSB)
	case *ConstantExpr:
		return a
	case *ExtractExpr:
		return append(a, expr.Expr)
	case *NotExpr:
		return append(a, expr.Expr)
	case *ReadExpr:
		a = append(a, expr.Index)
		for upd := expr.Updates.Head; upd != nil; upd = upd.Next {
			a = append(a, upd.Index, upd.Value)
		}
		return a
	default:
		panic("unreachable")
	}
}

// FindArrays returns all arrays read in the expression tree, sorted by id.
func FindArrays(exprs ...Expr) []*Array {
	v := &arrayExprVisitor{m: make(map[*Array]struct{})}
	walkExpr(v, make(map[Expr]struct{}), exprs)

	a := make([]*Array, 0, len(v.m))
	for array := range v.m {
		a = append(a, array)
	}
	sort.Slice(a, func(i, j int) bool { return CompareArray(a[i], a[j]) == -1 })

	return a
}

type arrayExprVisitor struct {
	m map[*Array]struct{}
}

func (v *arrayExprVisitor) Visit(expr Expr) ExprVisitor {
	if expr, ok := expr.(*ReadExpr); ok {
		v.m[expr.Updates.Root] = struct{}{}
	}
	return v
}

package ackermann_test

import (
	"strconv"
	"testing"

	"github.com/benbjohnson/ackermann"
	"github.com/google/go-cmp/cmp"
)

func TestWalkExpr(t *testing.T) {
	a := ackermann.NewArray(1, "a", 4, 8)
	b := ackermann.NewArray(2, "b", 2, 8)

	t.Run("Order", func(t *testing.T) {
		ul := ackermann.NewUpdateList(a).
			Extend(ackermann.NewConstantExpr32(0), read(b, 0)).
			Extend(ackermann.NewConstantExpr32(1), read(b, 1))
		expr := eq(
			concat(read(a, 3), &ackermann.ReadExpr{Updates: ul, Index: ackermann.NewConstantExpr32(2)}),
			&ackermann.NotExpr{Expr: ackermann.NewConstantExpr(0, 16)},
		)

		var v recordingVisitor
		ackermann.WalkExpr(&v, expr)
		if diff := cmp.Diff(v.kinds, []string{
			"eq",
			"concat",
			"read a", "const 3",
			"read a", "const 2",
			"const 1", "read b", "const 1", // newest write first
			"const 0", "read b", "const 0",
			"not", "const 0",
		}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("SkipChildren", func(t *testing.T) {
		expr := eq(concat(read(a, 1), read(a, 0)), ackermann.NewConstantExpr(0, 16))

		var v recordingVisitor
		v.skip = func(expr ackermann.Expr) bool {
			_, ok := expr.(*ackermann.ConcatExpr)
			return ok
		}
		ackermann.WalkExpr(&v, expr)
		if diff := cmp.Diff(v.kinds, []string{"eq", "concat", "const 0"}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Shared", func(t *testing.T) {
		r := read(a, 0)
		var v recordingVisitor
		ackermann.WalkExpr(&v, &ackermann.BinaryExpr{Op: ackermann.ADD, LHS: r, RHS: r})
		if diff := cmp.Diff(v.kinds, []string{"add", "read a", "const 0", "read a", "const 0"}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Deep", func(t *testing.T) {
		var expr ackermann.Expr = read(a, 0)
		for i := 0; i < 100000; i++ {
			expr = &ackermann.NotExpr{Expr: expr}
		}

		var v recordingVisitor
		ackermann.WalkExpr(&v, expr)
		if n := len(v.kinds); n != 100002 {
			t.Fatalf("unexpected node count: %d", n)
		}
	})
}

func TestFindArrays(t *testing.T) {
	a := ackermann.NewArray(1, "a", 4, 8)
	b := ackermann.NewArray(2, "b", 2, 8)
	c := ackermann.NewArray(3, "c", 1, 32)

	ul := ackermann.NewUpdateList(a).Extend(ackermann.NewConstantExpr32(0), read(b, 1))
	got := ackermann.FindArrays(
		&ackermann.ReadExpr{Updates: ul, Index: read(c, 0)},
		read(a, 1),
	)
	if diff := cmp.Diff(got, []*ackermann.Array{a, b, c}); diff != "" {
		t.Fatal(diff)
	}

	if got := ackermann.FindArrays(ackermann.NewConstantExpr8(0)); len(got) != 0 {
		t.Fatalf("unexpected arrays: %v", got)
	}
}

// recordingVisitor records a short description of every visited node.
type recordingVisitor struct {
	kinds []string
	skip  func(ackermann.Expr) bool
}

func (v *recordingVisitor) Visit(expr ackermann.Expr) ackermann.ExprVisitor {
	switch expr := expr.(type) {
	case *ackermann.BinaryExpr:
		v.kinds = append(v.kinds, expr.Op.String())
	case *ackermann.ConcatExpr:
		v.kinds = append(v.kinds, "concat")
	case *ackermann.ConstantExpr:
		v.kinds = append(v.kinds, "const "+strconv.FormatUint(expr.Value, 10))
	case *ackermann.NotExpr:
		v.kinds = append(v.kinds, "not")
	case *ackermann.ReadExpr:
		v.kinds = append(v.kinds, "read "+expr.Updates.Root.String())
	default:
		v.kinds = append(v.kinds, "other")
	}

	if v.skip != nil && v.skip(expr) {
		return nil
	}
	return v
}

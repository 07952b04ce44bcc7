package ackermann

import (
	"fmt"
)

// ExprEvaluator evaluates expressions using known array values.
type ExprEvaluator struct {
	m map[*Array][]uint64 // mapping of array to element values
}

// NewExprEvaluator returns a new instance of ExprEvaluator with the given
// array/value mapping. Constant arrays always evaluate to their own values.
func NewExprEvaluator(arrays []*Array, values [][]uint64) *ExprEvaluator {
	assert(len(arrays) == len(values), "array/value count mismatch: %d != %d", len(arrays), len(values))

	m := make(map[*Array][]uint64)
	for i, array := range arrays {
		_, ok := m[array]
		assert(!ok, "duplicate array: %s", array)
		m[array] = values[i]
	}

	return &ExprEvaluator{m: m}
}

// ArrayValue returns the elements of a packed into one constant, with
// element i in bits [i*Range, (i+1)*Range). Returns an error if the array is
// not bound or is wider than 64 bits.
func (ee *ExprEvaluator) ArrayValue(a *Array) (*ConstantExpr, error) {
	if a.Width() > Width64 {
		return nil, fmt.Errorf("array too wide for a constant: %s (%d bits)", a, a.Width())
	}

	var value uint64
	for i := uint(0); i < a.Size; i++ {
		elem, err := ee.element(a, uint64(i))
		if err != nil {
			return nil, err
		}
		value |= elem << (uint64(i) * uint64(a.Range))
	}
	return NewConstantExpr(value, uint(a.Width())), nil
}

// element returns the initial value of a at index i.
func (ee *ExprEvaluator) element(a *Array, i uint64) (uint64, error) {
	if i >= uint64(a.Size) {
		return 0, fmt.Errorf("read index out of bounds: %d >= %d", i, a.Size)
	} else if a.IsConstantArray() {
		return a.ConstantValues[i].Value, nil
	}

	values, ok := ee.m[a]
	if !ok {
		return 0, fmt.Errorf("array not bound: %s", a)
	} else if i >= uint64(len(values)) {
		return 0, fmt.Errorf("array value too short: %s: %d >= %d", a, i, len(values))
	}
	return values[i] & bitmask(a.Range), nil
}

// Evaluate evaluates expr to a constant expression.
// Returns an error if an unknown array is encountered.
func (ee *ExprEvaluator) Evaluate(expr Expr) (*ConstantExpr, error) {
	switch expr := expr.(type) {
	case *BinaryExpr:
		lhs, err := ee.Evaluate(expr.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := ee.Evaluate(expr.RHS)
		if err != nil {
			return nil, err
		}
		value, ok := NewBinaryExpr(expr.Op, lhs, rhs).(*ConstantExpr)
		if !ok {
			return nil, fmt.Errorf("undefined result: %s %s %s", expr.Op, lhs, rhs)
		}
		return value, nil
	case *CastExpr:
		src, err := ee.Evaluate(expr.Src)
		if err != nil {
			return nil, err
		}
		return NewCastExpr(src, expr.Width, expr.Signed).(*ConstantExpr), nil
	case *ConcatExpr:
		if w := ExprWidth(expr); w > Width64 {
			return nil, fmt.Errorf("concat too wide for a constant: %d bits", w)
		}
		msb, err := ee.Evaluate(expr.MSB)
		if err != nil {
			return nil, err
		}
		lsb, err := ee.Evaluate(expr.LSB)
		if err != nil {
			return nil, err
		}
		return msb.Concat(lsb), nil
	case *ConstantExpr:
		return expr, nil
	case *ExtractExpr:
		exp, err := ee.Evaluate(expr.Expr)
		if err != nil {
			return nil, err
		}
		return exp.Extract(expr.Offset, expr.Width), nil
	case *NotExpr:
		exp, err := ee.Evaluate(expr.Expr)
		if err != nil {
			return nil, err
		}
		return exp.Not(), nil
	case *ReadExpr:
		i, err := ee.Evaluate(expr.Index)
		if err != nil {
			return nil, err
		}

		// Return most recent update to given index, if available.
		for upd := expr.Updates.Head; upd != nil; upd = upd.Next {
			index, err := ee.Evaluate(upd.Index)
			if err != nil {
				return nil, err
			} else if index.Value != i.Value {
				continue
			}
			return ee.Evaluate(upd.Value)
		}

		// Otherwise return original value.
		a := expr.Updates.Root
		value, err := ee.element(a, i.Value)
		if err != nil {
			return nil, err
		}
		return NewConstantExpr(value, a.Range), nil

	default:
		return nil, fmt.Errorf("invalid expression type: %T", expr)
	}
}

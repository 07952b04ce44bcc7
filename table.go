package ackermann

import (
	"bytes"
	"fmt"

	"github.com/benbjohnson/immutable"
)

// Table is a snapshot of the results of a Finder, ordered by array.
//
// Every array read by the analyzed formula has an entry. An array with at
// least one match can be ackermannized. An array with no matches cannot.
// A table is not affected by later calls to Run or Reset on its finder.
type Table struct {
	m *immutable.SortedMap // *Array -> []*Match
}

// newTable returns a snapshot of infos.
func newTable(infos map[*Array]*arrayInfo) *Table {
	m := immutable.NewSortedMap(&arrayComparer{})
	for a, info := range infos {
		matches := make([]*Match, len(info.matches))
		copy(matches, info.matches)
		m = m.Set(a, matches)
	}
	return &Table{m: m}
}

// Len returns the number of arrays in the table.
func (t *Table) Len() int {
	return t.m.Len()
}

// Get returns the matches for a. Returns false if a was not read by the
// formula.
func (t *Table) Get(a *Array) ([]*Match, bool) {
	v, ok := t.m.Get(a)
	if !ok {
		return nil, false
	}
	return v.([]*Match), true
}

// IsAckermannizable returns true if a can be replaced by a bitvector.
func (t *Table) IsAckermannizable(a *Array) bool {
	matches, _ := t.Get(a)
	return len(matches) > 0
}

// Arrays returns every array in the table, in order.
func (t *Table) Arrays() []*Array {
	a := make([]*Array, 0, t.m.Len())
	itr := t.m.Iterator()
	for !itr.Done() {
		k, _ := itr.Next()
		a = append(a, k.(*Array))
	}
	return a
}

// Ackermannizable returns the arrays with at least one match, in order.
func (t *Table) Ackermannizable() []*Array {
	var a []*Array
	itr := t.m.Iterator()
	for !itr.Done() {
		k, v := itr.Next()
		if len(v.([]*Match)) > 0 {
			a = append(a, k.(*Array))
		}
	}
	return a
}

// Verify evaluates every whole-array match of at most 64 bits with ee and
// returns an error if a matched expression does not evaluate to the value of
// its array. Arrays wider than 64 bits are skipped.
func (t *Table) Verify(ee *ExprEvaluator) error {
	for _, a := range t.Ackermannizable() {
		if a.Width() > Width64 {
			continue
		}

		want, err := ee.ArrayValue(a)
		if err != nil {
			return err
		}

		matches, _ := t.Get(a)
		for _, m := range matches {
			if !m.IsWholeArray() {
				continue
			}

			got, err := ee.Evaluate(m.Expr)
			if err != nil {
				return err
			} else if got.Value != want.Value {
				return fmt.Errorf("match does not reproduce array %s: %s: got %#x, want %#x", a, m, got.Value, want.Value)
			}
		}
	}
	return nil
}

// String returns one line per array followed by one indented line per match.
func (t *Table) String() string {
	var buf bytes.Buffer
	itr := t.m.Iterator()
	for !itr.Done() {
		k, v := itr.Next()
		a, matches := k.(*Array), v.([]*Match)
		if len(matches) == 0 {
			fmt.Fprintf(&buf, "%s: rejected\n", a)
			continue
		}

		fmt.Fprintf(&buf, "%s: ackermannizable\n", a)
		for _, m := range matches {
			fmt.Fprintf(&buf, "  %s\n", m)
		}
	}
	return buf.String()
}

// arrayComparer orders arrays by id and name. Implements immutable.Comparer.
type arrayComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b, and
// returns 0 if a and b are the same array. Panic if distinct arrays share the
// same id, name and shape.
func (c *arrayComparer) Compare(a, b interface{}) int {
	x, y := a.(*Array), b.(*Array)
	cmp := CompareArray(x, y)
	assert(cmp != 0 || x == y, "table: distinct arrays are indistinguishable: %s", x)
	return cmp
}

package ackermann

import (
	"fmt"
	"strings"
)

// Script represents a set of array declarations and the formulas that read
// them. Each query is an independent formula.
type Script struct {
	Arrays  []*Array
	Queries [][]Expr
}

// Analyze runs f over each query and returns one table per query. The finder
// is reset before every query so results do not carry over between formulas.
func (s *Script) Analyze(f *Finder) []*Table {
	tables := make([]*Table, len(s.Queries))
	for i, exprs := range s.Queries {
		f.Reset()
		tables[i] = f.Run(exprs...)
	}
	return tables
}

// String returns the script in its textual form. Shared nodes are printed
// once per use.
func (s *Script) String() string {
	var buf strings.Builder
	for _, a := range s.Arrays {
		fmt.Fprintln(&buf, a.Decl())
	}
	for _, exprs := range s.Queries {
		buf.WriteString("(query")
		for _, expr := range exprs {
			fmt.Fprintf(&buf, " %s", expr)
		}
		buf.WriteString(")\n")
	}
	return buf.String()
}

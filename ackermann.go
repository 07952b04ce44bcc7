// Package ackermann finds symbolic arrays in a formula that can be replaced by
// a single bitvector of the same total width before the formula is passed to a
// constraint solver.
//
// Arrays are accessed through ReadExpr nodes. An array qualifies when every
// read of it in the formula is either a plain read of the unmodified array or
// part of a right-leaning chain of concatenated reads that covers the array
// exactly, most significant element first. See Finder.
package ackermann

import (
	"fmt"
)

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

// DefaultMaxArrayWidth is the default limit, in bits, on the total width of
// an array that may be ackermannized.
const DefaultMaxArrayWidth = 1024

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}

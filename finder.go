package ackermann

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SharingMode controls how a Finder treats nodes reachable through more than
// one parent.
type SharingMode int

const (
	// VisitOnce evaluates each node once until the finder is reset.
	VisitOnce SharingMode = iota

	// VisitEveryPath evaluates a node once for every path that reaches it.
	// The same node may be recorded as a match more than once.
	VisitEveryPath
)

var sharingModes = [...]string{
	VisitOnce:      "once",
	VisitEveryPath: "every-path",
}

// String returns the string representation of the mode.
func (m SharingMode) String() string {
	if m >= 0 && int(m) < len(sharingModes) {
		return sharingModes[m]
	}
	return fmt.Sprintf("SharingMode<%d>", m)
}

// ParseSharingMode returns the mode with the given name.
func ParseSharingMode(s string) (SharingMode, error) {
	for m, name := range sharingModes {
		if name == s {
			return SharingMode(m), nil
		}
	}
	return 0, errors.Errorf("unknown sharing mode: %q", s)
}

// Match represents one access to an array that is compatible with replacing
// the array by a single bitvector.
type Match struct {
	// Either a *ReadExpr or a right-leaning *ConcatExpr of reads.
	Expr Expr

	// Range of bits covered by a contiguous read, inclusive.
	// Not set for single reads.
	MSB uint64
	LSB uint64
}

// IsContiguousArrayRead returns true if the match is a concatenation of reads.
func (m *Match) IsContiguousArrayRead() bool {
	_, ok := m.Expr.(*ConcatExpr)
	return ok
}

// Array returns the array accessed by the match.
func (m *Match) Array() *Array {
	switch expr := m.Expr.(type) {
	case *ReadExpr:
		return expr.Updates.Root
	case *ConcatExpr:
		read, ok := expr.MSB.(*ReadExpr)
		assert(ok, "match: concat must start with a read: %s", expr.MSB)
		return read.Updates.Root
	default:
		panic(fmt.Sprintf("match: unexpected expression: %T", expr))
	}
}

// IsWholeArray returns true if the matched expression covers every bit of
// the array. A single read does so only when it reads element 0 of a
// one-element array through a constant index.
func (m *Match) IsWholeArray() bool {
	a := m.Array()
	if m.IsContiguousArrayRead() {
		assert(m.MSB > m.LSB, "match: bit indices incorrectly ordered: %d <= %d", m.MSB, m.LSB)
		return m.MSB-m.LSB+1 == a.Width()
	}
	index, ok := m.Expr.(*ReadExpr).Index.(*ConstantExpr)
	return ok && index.Value == 0 && a.Size == 1
}

// String returns a short description of the match.
func (m *Match) String() string {
	if m.IsContiguousArrayRead() {
		return fmt.Sprintf("concat [%d, %d]", m.LSB, m.MSB)
	}
	return fmt.Sprintf("read %s", m.Expr.(*ReadExpr).Index)
}

// Stats represents counters for a Finder.
type Stats struct {
	ReadN   int // reads evaluated
	ConcatN int // concatenations evaluated
	MatchN  int // matches recorded
	RejectN int // evaluations that rejected an array
}

// Finder determines which arrays referenced by a formula can be
// ackermannized.
//
// An array is rejected as soon as one of its accesses is incompatible, and
// stays rejected until Reset is called. Results from successive calls to Run
// accumulate, so a finder must be reset before it is reused for an unrelated
// formula. A Finder is not safe for concurrent use.
type Finder struct {
	maxArrayWidth uint64
	mode          SharingMode

	infos map[*Array]*arrayInfo
	seen  map[Expr]struct{} // nil unless mode is VisitOnce
	stats Stats
}

// arrayInfo holds the matches found for one array. An empty list on an
// existing entry means the array was rejected.
type arrayInfo struct {
	matches []*Match
}

// NewFinder returns a new Finder. Arrays whose total width in bits is at
// least maxArrayWidth are never ackermannized.
func NewFinder(maxArrayWidth uint, mode SharingMode) *Finder {
	assert(mode == VisitOnce || mode == VisitEveryPath, "finder: invalid sharing mode: %s", mode)
	f := &Finder{
		maxArrayWidth: uint64(maxArrayWidth),
		mode:          mode,
	}
	f.Reset()
	return f
}

// MaxArrayWidth returns the width limit the finder was created with.
func (f *Finder) MaxArrayWidth() uint { return uint(f.maxArrayWidth) }

// SharingMode returns the sharing mode the finder was created with.
func (f *Finder) SharingMode() SharingMode { return f.mode }

// Stats returns counters accumulated since the last reset.
func (f *Finder) Stats() Stats { return f.stats }

// Run evaluates every array access in exprs and returns a snapshot of all
// results collected since the last reset.
func (f *Finder) Run(exprs ...Expr) *Table {
	walkExpr(f, f.seen, exprs)
	return newTable(f.infos)
}

// Reset clears all results so the finder can be used on another formula.
func (f *Finder) Reset() {
	f.infos = make(map[*Array]*arrayInfo)
	f.seen = nil
	if f.mode == VisitOnce {
		f.seen = make(map[Expr]struct{})
	}
	f.stats = Stats{}
}

// Visit implements ExprVisitor.
func (f *Finder) Visit(expr Expr) ExprVisitor {
	switch expr := expr.(type) {
	case *ReadExpr:
		f.visitRead(expr)
	case *ConcatExpr:
		// A matched concatenation only contains constant indices and reads
		// of the matched array so there is nothing left to evaluate below it.
		if f.visitConcat(expr) {
			return nil
		}
	}
	return f
}

// lookup returns the entry for a, creating an empty one if a has not been
// seen. inserted reports whether the entry was created by this call.
func (f *Finder) lookup(a *Array) (info *arrayInfo, inserted bool) {
	if info = f.infos[a]; info != nil {
		return info, false
	}
	info = &arrayInfo{}
	f.infos[a] = info
	return info, true
}

// rejected returns true if info belongs to an array rejected earlier.
func rejected(info *arrayInfo, inserted bool) bool {
	return !inserted && len(info.matches) == 0
}

func (f *Finder) visitRead(e *ReadExpr) {
	f.stats.ReadN++

	a := e.Updates.Root
	assert(a != nil, "read: nil array")

	info, inserted := f.lookup(a)
	if reason := f.checkRead(e, info, inserted); reason != matchOK {
		f.reject(a, info, reason)
		return
	}
	f.accept(info, &Match{Expr: e})
}

// checkRead returns the reason the read prevents its array from being
// ackermannized, or matchOK.
func (f *Finder) checkRead(e *ReadExpr, info *arrayInfo, inserted bool) rejectReason {
	a := e.Updates.Root
	if rejected(info, inserted) {
		return rejectKnownFailed
	} else if a.Width() >= f.maxArrayWidth {
		return rejectTooWide
	} else if a.IsConstantArray() {
		return rejectConstantArray
	} else if e.Updates.Head != nil {
		return rejectUpdates
	}
	return matchOK
}

// visitConcat records e if it reads a whole array. Returns true on a match.
// Otherwise the array read by the leftmost child, if any, is rejected.
func (f *Finder) visitConcat(e *ConcatExpr) bool {
	f.stats.ConcatN++

	lhs, ok := e.MSB.(*ReadExpr)
	if !ok {
		return false
	}
	a := lhs.Updates.Root
	assert(a != nil, "read: nil array")

	info, inserted := f.lookup(a)
	m, reason := f.matchConcat(e, a, info, inserted)
	if reason != matchOK {
		f.reject(a, info, reason)
		return false
	}
	f.accept(info, m)
	return true
}

// matchConcat checks that e is a right-leaning chain of reads of a with
// constant, strictly descending indices that together cover all of a.
//
//	          concat
//	         /      \
//	  read a[3]    concat
//	              /      \
//	       read a[2]    concat
//	                   /      \
//	            read a[1]    read a[0]
func (f *Finder) matchConcat(e *ConcatExpr, a *Array, info *arrayInfo, inserted bool) (*Match, rejectReason) {
	if rejected(info, inserted) {
		return nil, rejectKnownFailed
	} else if a.Width() >= f.maxArrayWidth {
		return nil, rejectTooWide
	} else if a.IsConstantArray() {
		return nil, rejectConstantArray
	}

	reads, reason := concatReads(e)
	if reason != matchOK {
		return nil, reason
	}

	var msb, lsb, total uint64
	for i, read := range reads {
		if read.Updates.Root != a {
			return nil, rejectMixedArrays
		} else if read.Updates.Head != nil {
			return nil, rejectUpdates
		}

		index, ok := read.Index.(*ConstantExpr)
		if !ok {
			return nil, rejectSymbolicIndex
		} else if index.Value >= uint64(a.Size) {
			return nil, rejectOutOfBounds
		}

		width := uint64(ExprWidth(read))
		bit := index.Value * width
		if i == 0 {
			msb = bit + width - 1
		} else if lsb-bit != width {
			return nil, rejectNotContiguous
		}
		lsb = bit
		total += width
	}

	if total != a.Width() {
		return nil, rejectPartialArray
	}

	assert(msb > lsb, "concat match: bit indices incorrectly ordered: %d <= %d", msb, lsb)
	assert(lsb == 0 && msb == a.Width()-1, "concat match: range [%d, %d] does not cover %s", lsb, msb, a)
	return &Match{Expr: e, MSB: msb, LSB: lsb}, matchOK
}

// concatReads returns the reads along the right spine of e, most
// significant first. Every left child must be a read and the spine must end
// in a read.
func concatReads(e *ConcatExpr) ([]*ReadExpr, rejectReason) {
	var reads []*ReadExpr
	for cur := e; ; {
		lhs, ok := cur.MSB.(*ReadExpr)
		if !ok {
			return nil, rejectNotReadChain
		}
		reads = append(reads, lhs)

		switch rhs := cur.LSB.(type) {
		case *ReadExpr:
			return append(reads, rhs), matchOK
		case *ConcatExpr:
			cur = rhs
		default:
			return nil, rejectNotReadChain
		}
	}
}

func (f *Finder) accept(info *arrayInfo, m *Match) {
	f.stats.MatchN++
	info.matches = append(info.matches, m)
}

// reject clears all matches for a. The array cannot be ackermannized for
// the rest of the traversal.
func (f *Finder) reject(a *Array, info *arrayInfo, reason rejectReason) {
	f.stats.RejectN++
	if reason != rejectKnownFailed {
		log.WithFields(log.Fields{
			"array":  a.String(),
			"reason": reason.String(),
		}).Debug("ackermann: array rejected")
	}
	info.matches = nil
}

// rejectReason describes why an access prevents ackermannization.
type rejectReason int

const (
	matchOK = rejectReason(iota)
	rejectKnownFailed
	rejectTooWide
	rejectConstantArray
	rejectUpdates
	rejectNotReadChain
	rejectMixedArrays
	rejectSymbolicIndex
	rejectOutOfBounds
	rejectNotContiguous
	rejectPartialArray
)

var rejectReasons = [...]string{
	matchOK:             "ok",
	rejectKnownFailed:   "previously rejected",
	rejectTooWide:       "array too wide",
	rejectConstantArray: "constant array",
	rejectUpdates:       "array has updates",
	rejectNotReadChain:  "concat operand is not a read",
	rejectMixedArrays:   "concat reads different arrays",
	rejectSymbolicIndex: "symbolic index",
	rejectOutOfBounds:   "index out of bounds",
	rejectNotContiguous: "reads not contiguous",
	rejectPartialArray:  "reads do not cover array",
}

// String returns the string representation of the reason.
func (r rejectReason) String() string {
	if r >= 0 && int(r) < len(rejectReasons) {
		return rejectReasons[r]
	}
	return fmt.Sprintf("rejectReason<%d>", r)
}

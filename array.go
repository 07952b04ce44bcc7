package ackermann

import (
	"bytes"
	"fmt"
)

// Array represents the initial state of an array of bitvector elements.
// Arrays are compared by identity. Writes are not recorded on the array
// itself but on an UpdateList rooted at it.
type Array struct {
	ID    uint64 // unique id
	Name  string // optional, used for printing
	Size  uint   // number of elements
	Range uint   // width of each element, in bits

	// Initial element values. Only set for constant arrays.
	ConstantValues []*ConstantExpr
}

// NewArray returns a new symbolic Array of size elements of rng bits each.
func NewArray(id uint64, name string, size, rng uint) *Array {
	assert(size > 0, "array: invalid size: %d", size)
	assert(rng > 0 && rng <= Width64, "array: invalid range: %d", rng)
	return &Array{
		ID:    id,
		Name:  name,
		Size:  size,
		Range: rng,
	}
}

// NewConstantArray returns a new Array initialized with values. All values
// must have the same width.
func NewConstantArray(id uint64, name string, values []*ConstantExpr) *Array {
	assert(len(values) > 0, "array: constant array requires values")
	a := NewArray(id, name, uint(len(values)), values[0].Width)
	for i, v := range values {
		assert(v.Width == a.Range, "array: constant value #%d width mismatch: %d != %d", i, v.Width, a.Range)
	}
	a.ConstantValues = values
	return a
}

// IsConstantArray returns true if the array has fixed initial values.
func (a *Array) IsConstantArray() bool {
	return len(a.ConstantValues) > 0
}

// Width returns the total number of bits in the array.
func (a *Array) Width() uint64 {
	return uint64(a.Size) * uint64(a.Range)
}

// String returns the name used to reference the array in expressions.
func (a *Array) String() string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("array%d", a.ID)
}

// Decl returns the declaration of the array in script syntax.
func (a *Array) Decl() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "(array %s %d %d", a.String(), a.Size, a.Range)
	if a.IsConstantArray() {
		buf.WriteString(" (")
		for i, v := range a.ConstantValues {
			if i > 0 {
				buf.WriteByte(' ')
			}
			fmt.Fprintf(&buf, "%d", v.Value)
		}
		buf.WriteByte(')')
	}
	buf.WriteByte(')')
	return buf.String()
}

// CompareArray returns an integer comparing two arrays.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareArray(a, b *Array) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == b {
		return 0
	}

	if a.ID < b.ID {
		return -1
	} else if a.ID > b.ID {
		return 1
	}

	if a.Name < b.Name {
		return -1
	} else if a.Name > b.Name {
		return 1
	}

	if a.Size < b.Size {
		return -1
	} else if a.Size > b.Size {
		return 1
	}

	if a.Range < b.Range {
		return -1
	} else if a.Range > b.Range {
		return 1
	}

	if len(a.ConstantValues) < len(b.ConstantValues) {
		return -1
	} else if len(a.ConstantValues) > len(b.ConstantValues) {
		return 1
	}
	for i := range a.ConstantValues {
		if cmp := compareConstantExpr(a.ConstantValues[i], b.ConstantValues[i]); cmp != 0 {
			return cmp
		}
	}
	return 0
}

// UpdateList represents an array along with the writes made to it.
// A nil Head means the array is unmodified.
type UpdateList struct {
	Root *Array
	Head *ArrayUpdate // most recent update
}

// NewUpdateList returns an update list for root with no writes.
func NewUpdateList(root *Array) UpdateList {
	return UpdateList{Root: root}
}

// Len returns the number of updates in the list.
func (ul UpdateList) Len() int {
	var n int
	for upd := ul.Head; upd != nil; upd = upd.Next {
		n++
	}
	return n
}

// Extend returns a copy of the list with a write of value at index.
// The receiver is unchanged.
func (ul UpdateList) Extend(index, value Expr) UpdateList {
	assert(ExprWidth(value) == ul.Root.Range, "update: value width mismatch: %d != %d", ExprWidth(value), ul.Root.Range)
	return UpdateList{Root: ul.Root, Head: NewArrayUpdate(index, value, ul.Head)}
}

// Select reads a value of width bits starting at the element offset. The
// width must be a multiple of the element width.
//
// Multi-element reads are built as a right-leaning concatenation of single
// element reads. For little endian reads the rightmost read is the element at
// offset, so a little endian read of a whole array at offset zero produces
// reads at indices Size-1 down to 0.
func (ul UpdateList) Select(offset Expr, width uint, isLittleEndian bool) Expr {
	rng := ul.Root.Range
	assert(width > 0 && width%rng == 0, "select: invalid width: %d (element width %d)", width, rng)

	var result Expr
	for i, n := uint64(0), uint64(width/rng); i != n; i++ {
		elemOffset := i
		if !isLittleEndian {
			elemOffset = (n - i - 1)
		}

		value := NewReadExpr(ul, NewBinaryExpr(ADD, offset, NewConstantExpr(elemOffset, ExprWidth(offset))))
		if i == 0 {
			result = value
		} else {
			result = NewConcatExpr(value, result)
		}
	}
	return result
}

// Store writes value starting at the element offset. Returns the new list.
func (ul UpdateList) Store(offset, value Expr, isLittleEndian bool) UpdateList {
	rng := ul.Root.Range
	width := ExprWidth(value)
	assert(width > 0 && width%rng == 0, "store: invalid width: %d (element width %d)", width, rng)

	other := ul
	for i, n := uint64(0), uint64(width/rng); i != n; i++ {
		elemOffset := i
		if !isLittleEndian {
			elemOffset = (n - i - 1)
		}

		index := NewBinaryExpr(ADD, offset, NewConstantExpr(elemOffset, ExprWidth(offset)))
		other = other.Extend(index, NewExtractExpr(value, uint(i)*rng, rng))
	}
	return other
}

// String returns the list in script syntax. Writes are nested oldest first.
func (ul UpdateList) String() string {
	return updateListString(ul.Root, ul.Head)
}

func updateListString(root *Array, upd *ArrayUpdate) string {
	if upd == nil {
		return root.String()
	}
	return fmt.Sprintf("(store %s %s %s)", updateListString(root, upd.Next), upd.Index, upd.Value)
}

// ArrayUpdate represents a symbolic update to an array.
type ArrayUpdate struct {
	Index Expr // element index of update
	Value Expr // element value to update

	Next *ArrayUpdate // linked list of next update
}

// NewArrayUpdate returns a new instance of ArrayUpdate.
func NewArrayUpdate(index, value Expr, next *ArrayUpdate) *ArrayUpdate {
	return &ArrayUpdate{
		Index: index,
		Value: value,
		Next:  next,
	}
}

package ackermann

import (
	"fmt"
)

// Expr represents a symbolic expression.
//
// Expressions are immutable once constructed and may be shared by any number
// of parents. Two expressions are the same node only if they are the same
// pointer.
type Expr interface {
	String() string
	expr()
}

func (*BinaryExpr) expr()   {}
func (*CastExpr) expr()     {}
func (*ConcatExpr) expr()   {}
func (*ConstantExpr) expr() {}
func (*ExtractExpr) expr()  {}
func (*NotExpr) expr()      {}
func (*ReadExpr) expr()     {}

// ExprWidth returns the bit width of the expression.
func ExprWidth(expr Expr) uint {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Width
	case *ReadExpr:
		return expr.Updates.Root.Range
	case *ConcatExpr:
		return ExprWidth(expr.MSB) + ExprWidth(expr.LSB)
	case *ExtractExpr:
		return expr.Width
	case *NotExpr:
		return ExprWidth(expr.Expr)
	case *CastExpr:
		return expr.Width
	case *BinaryExpr:
		if expr.Op.IsCompare() {
			return WidthBool
		}
		return ExprWidth(expr.LHS)
	default:
		panic(fmt.Sprintf("unreachable: %T", expr))
	}
}

// BinaryOp represents a binary expression operations.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	ADD
	SUB
	MUL
	UDIV
	SDIV
	UREM
	SREM
	AND
	OR
	XOR
	SHL
	LSHR
	ASHR
	arithmetic_op_end

	compare_op_begin
	EQ
	NE
	ULT
	ULE
	UGT
	UGE
	SLT
	SLE
	SGT
	SGE
	compare_op_end
)

var binaryOps = [...]string{
	ADD:  "add",
	SUB:  "sub",
	MUL:  "mul",
	UDIV: "udiv",
	SDIV: "sdiv",
	UREM: "urem",
	SREM: "srem",
	AND:  "and",
	OR:   "or",
	XOR:  "xor",
	SHL:  "shl",
	LSHR: "lshr",
	ASHR: "ashr",
	EQ:   "eq",
	NE:   "ne",
	ULT:  "ult",
	ULE:  "ule",
	UGT:  "ugt",
	UGE:  "uge",
	SLT:  "slt",
	SLE:  "sle",
	SGT:  "sgt",
	SGE:  "sge",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// IsArithmetic returns true if op is an arithmetic operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsCompare returns true if op is a comparison operator.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// lookupBinaryOp returns the operation with the given name.
func lookupBinaryOp(name string) (BinaryOp, bool) {
	for op, s := range binaryOps {
		if s != "" && s == name {
			return BinaryOp(op), true
		}
	}
	return 0, false
}

// BinaryExpr represents an operation on two expressions.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns a new instance of BinaryExpr. The operation is folded
// into a constant if both operands are constant.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) Expr {
	assert(op.IsArithmetic() || op.IsCompare(), "invalid binary op: %s", op)
	assert(ExprWidth(lhs) == ExprWidth(rhs), "binary expr width mismatch: op=%s %d != %d", op, ExprWidth(lhs), ExprWidth(rhs))

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			if value := lhs.eval(op, rhs); value != nil {
				return value
			}
		}
	}

	// Adding zero is a nop. This keeps offsets computed by UpdateList.Select
	// readable when the base offset is symbolic.
	if op == ADD {
		if c, ok := lhs.(*ConstantExpr); ok && c.Value == 0 {
			return rhs
		} else if c, ok := rhs.(*ConstantExpr); ok && c.Value == 0 {
			return lhs
		}
	}

	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// ReadExpr represents a read of one element from an array. The update list
// records the writes performed on the array before the read.
type ReadExpr struct {
	Updates UpdateList
	Index   Expr
}

// NewReadExpr returns an expression reading the element at index.
//
// Writes in the update list are searched newest first. If a write to the same
// constant index is found, its value is returned directly. The search stops at
// the first write to a symbolic index. A read of a constant array at a constant
// index with no intervening writes folds to the element's value.
func NewReadExpr(ul UpdateList, index Expr) Expr {
	assert(ul.Root != nil, "read: nil array")

	c, isConstIndex := index.(*ConstantExpr)
	for upd := ul.Head; upd != nil; upd = upd.Next {
		ui, ok := upd.Index.(*ConstantExpr)
		if !ok || !isConstIndex {
			return &ReadExpr{Updates: ul, Index: index}
		} else if ui.Value == c.Value {
			return upd.Value
		}
	}

	if isConstIndex && ul.Root.IsConstantArray() && c.Value < uint64(ul.Root.Size) {
		return ul.Root.ConstantValues[c.Value]
	}
	return &ReadExpr{Updates: ul, Index: index}
}

// String returns the string representation of the expression.
func (e *ReadExpr) String() string {
	return fmt.Sprintf("(read %s %s)", e.Updates, e.Index)
}

// ConcatExpr represents a concatenation of two expressions.
type ConcatExpr struct {
	MSB Expr
	LSB Expr
}

// NewConcatExpr returns a new instance of ConcatExpr.
func NewConcatExpr(msb, lsb Expr) Expr {
	// Combine expressions if they are both constants and fit in a constant.
	if msb, ok := msb.(*ConstantExpr); ok {
		if lsb, ok := lsb.(*ConstantExpr); ok && msb.Width+lsb.Width <= Width64 {
			return msb.Concat(lsb)
		}
	}

	// Combine extract expressions if they are contiguous.
	if msb, ok := msb.(*ExtractExpr); ok {
		if lsb, ok := lsb.(*ExtractExpr); ok {
			if msb.Expr == lsb.Expr && lsb.Offset+lsb.Width == msb.Offset {
				return NewExtractExpr(msb.Expr, lsb.Offset, msb.Width+lsb.Width)
			}
		}
	}

	return &ConcatExpr{
		MSB: msb,
		LSB: lsb,
	}
}

// String returns the string representation of the expression.
func (e *ConcatExpr) String() string {
	return fmt.Sprintf("(concat %s %s)", e.MSB, e.LSB)
}

// ExtractExpr represents the extraction of a set of bits at a given offset/width.
type ExtractExpr struct {
	Expr   Expr
	Offset uint
	Width  uint
}

// NewExtractExpr returns a new instance of ExtractExpr.
func NewExtractExpr(expr Expr, offset uint, width uint) Expr {
	kw := ExprWidth(expr)
	assert(width > 0, "extract width cannot be zero")
	assert(offset+width <= kw, "extract out of bounds: %d+%d > %d", width, offset, kw)

	if width == kw {
		return expr
	} else if expr, ok := expr.(*ConstantExpr); ok {
		return expr.Extract(offset, width)
	}

	// Extract(Concat)
	if expr, ok := expr.(*ConcatExpr); ok {
		lw := ExprWidth(expr.LSB)

		// Directly extract from MSB if we skip over LSB.
		if offset >= lw {
			return NewExtractExpr(expr.MSB, offset-lw, width)
		}

		// Directly extract from LSB if we skip over MSB.
		if offset+width <= lw {
			return NewExtractExpr(expr.LSB, offset, width)
		}

		// Convert extraction to a concatenation of two extractions.
		// E(C(x,y)) = C(E(x), E(y))
		return NewConcatExpr(
			NewExtractExpr(expr.MSB, 0, offset+width-lw),
			NewExtractExpr(expr.LSB, offset, lw-offset),
		)
	}

	return &ExtractExpr{
		Expr:   expr,
		Offset: offset,
		Width:  width,
	}
}

// String returns the string representation of the expression.
func (e *ExtractExpr) String() string {
	return fmt.Sprintf("(extract %s %d %d)", e.Expr, e.Offset, e.Width)
}

// NotExpr represents a bitwise not of an expression.
type NotExpr struct {
	Expr Expr
}

// String returns the string representation of the expression.
func (e *NotExpr) String() string {
	return fmt.Sprintf("(not %s)", e.Expr)
}

// CastExpr represents an expression that casts an expression to a new width.
type CastExpr struct {
	Src    Expr
	Width  uint
	Signed bool
}

// NewCastExpr returns a new instance of CastExpr.
func NewCastExpr(src Expr, width uint, signed bool) Expr {
	sw := ExprWidth(src)
	if width == sw { // nop
		return src
	} else if width < sw { // truncate
		return NewExtractExpr(src, 0, width)
	} else if src, ok := src.(*ConstantExpr); ok {
		if signed {
			return src.SExt(width)
		}
		return src.ZExt(width)
	}
	return &CastExpr{Src: src, Width: width, Signed: signed}
}

// String returns the string representation of the expression.
func (e *CastExpr) String() string {
	if e.Signed {
		return fmt.Sprintf("(sext %s %d)", e.Src, e.Width)
	}
	return fmt.Sprintf("(zext %s %d)", e.Src, e.Width)
}

// ConstantExpr represents a fixed-width integer of up to 64 bits.
type ConstantExpr struct {
	Value uint64
	Width uint
}

// NewConstantExpr returns a new instance of ConstantExpr.
func NewConstantExpr(value uint64, width uint) *ConstantExpr {
	assert(width > 0 && width <= Width64, "invalid constant width: %d", width)
	return &ConstantExpr{
		Value: value & bitmask(width),
		Width: width,
	}
}

// NewConstantExpr8 returns a 8-bit constant expression.
func NewConstantExpr8(value uint64) *ConstantExpr {
	return NewConstantExpr(value, Width8)
}

// NewConstantExpr32 returns a 32-bit constant expression.
func NewConstantExpr32(value uint64) *ConstantExpr {
	return NewConstantExpr(value, Width32)
}

// NewConstantExpr64 returns a 64-bit constant expression.
func NewConstantExpr64(value uint64) *ConstantExpr {
	return NewConstantExpr(value, Width64)
}

// NewBoolConstantExpr is an ease of use function for creating constant boolean expressions.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	if value {
		return &ConstantExpr{Value: 1, Width: WidthBool}
	}
	return &ConstantExpr{Value: 0, Width: WidthBool}
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	return fmt.Sprintf("(const %d %d)", e.Value, e.Width)
}

// Not returns the bitwise NOT of the expression.
func (e *ConstantExpr) Not() *ConstantExpr {
	return NewConstantExpr(^e.Value, e.Width)
}

// Extract returns width number of bits starting at offset.
func (e *ConstantExpr) Extract(offset, width uint) *ConstantExpr {
	return NewConstantExpr(e.Value>>offset, width)
}

// Concat returns the concatenation of e and lsb.
func (e *ConstantExpr) Concat(lsb *ConstantExpr) *ConstantExpr {
	assert(e.Width+lsb.Width <= Width64, "constant concat too wide: %d+%d", e.Width, lsb.Width)
	return NewConstantExpr((e.Value<<lsb.Width)|lsb.Value, e.Width+lsb.Width)
}

// ZExt returns the zero-extension of e to a new width.
func (e *ConstantExpr) ZExt(width uint) *ConstantExpr {
	return NewConstantExpr(e.Value, width)
}

// SExt returns the sign-extension of e to a new width.
func (e *ConstantExpr) SExt(width uint) *ConstantExpr {
	return NewConstantExpr(uint64(e.signed()), width)
}

// signed returns the value of e interpreted as a two's complement integer.
func (e *ConstantExpr) signed() int64 {
	shift := Width64 - e.Width
	return int64(e.Value<<shift) >> shift
}

// eval returns the result of applying op to e and other. Returns nil if the
// result is undefined, e.g. division by zero.
func (e *ConstantExpr) eval(op BinaryOp, other *ConstantExpr) *ConstantExpr {
	x, y, w := e.Value, other.Value, e.Width

	switch op {
	case ADD:
		return NewConstantExpr(x+y, w)
	case SUB:
		return NewConstantExpr(x-y, w)
	case MUL:
		return NewConstantExpr(x*y, w)
	case UDIV, SDIV, UREM, SREM:
		if y == 0 {
			return nil
		}
		switch op {
		case UDIV:
			return NewConstantExpr(x/y, w)
		case SDIV:
			return NewConstantExpr(uint64(e.signed()/other.signed()), w)
		case UREM:
			return NewConstantExpr(x%y, w)
		default:
			return NewConstantExpr(uint64(e.signed()%other.signed()), w)
		}
	case AND:
		return NewConstantExpr(x&y, w)
	case OR:
		return NewConstantExpr(x|y, w)
	case XOR:
		return NewConstantExpr(x^y, w)
	case SHL:
		if y >= uint64(w) {
			return NewConstantExpr(0, w)
		}
		return NewConstantExpr(x<<y, w)
	case LSHR:
		if y >= uint64(w) {
			return NewConstantExpr(0, w)
		}
		return NewConstantExpr(x>>y, w)
	case ASHR:
		if y >= uint64(w) {
			y = uint64(w) - 1
		}
		return NewConstantExpr(uint64(e.signed()>>y), w)
	case EQ:
		return NewBoolConstantExpr(x == y)
	case NE:
		return NewBoolConstantExpr(x != y)
	case ULT:
		return NewBoolConstantExpr(x < y)
	case ULE:
		return NewBoolConstantExpr(x <= y)
	case UGT:
		return NewBoolConstantExpr(x > y)
	case UGE:
		return NewBoolConstantExpr(x >= y)
	case SLT:
		return NewBoolConstantExpr(e.signed() < other.signed())
	case SLE:
		return NewBoolConstantExpr(e.signed() <= other.signed())
	case SGT:
		return NewBoolConstantExpr(e.signed() > other.signed())
	case SGE:
		return NewBoolConstantExpr(e.signed() >= other.signed())
	default:
		panic("unreachable")
	}
}

func bitmask(width uint) uint64 {
	return (1 << width) - 1
}

// compareConstantExpr orders constants by width, then value.
func compareConstantExpr(a, b *ConstantExpr) int {
	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}

	if a.Value < b.Value {
		return -1
	} else if a.Value > b.Value {
		return 1
	}
	return 0
}

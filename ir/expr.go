// Package ir defines the statement/expression tree the tlc compiler operates
// on, plus the use-def analysis over it.
//
// The IR is deliberately small: scalar expressions, buffer loads/stores,
// counted loops, flat statement blocks and attribute-annotated regions. It is
// the boundary representation between the host side of a compiled tensor
// program and its device kernels, not a full optimizing IR.
//
// Nodes are immutable once built from the compiler's perspective: passes read
// an IR tree and produce a new one (or a side record), they never mutate their
// input in place.
package ir

import (
	"github.com/tensorlang/tlc/types/dtypes"
)

// Expr is a scalar-valued IR expression.
type Expr interface {
	// DType returns the type of the value the expression evaluates to.
	DType() dtypes.DType
	String() string
	exprNode()
}

// Var is an IR variable. Identity is the pointer, not the name: two Vars with
// the same name are different variables. The name is only used for printing
// and for the deterministic parameter ordering of extracted kernels.
type Var struct {
	Name string
	Type dtypes.DType
}

// NewVar returns a fresh variable of the given dtype.
func NewVar(name string, dtype dtypes.DType) *Var {
	return &Var{Name: name, Type: dtype}
}

func (v *Var) DType() dtypes.DType { return v.Type }
func (v *Var) exprNode()           {}

// IntImm is an integer immediate.
type IntImm struct {
	Type  dtypes.DType
	Value int64
}

// ConstInt returns an integer immediate of the given dtype.
func ConstInt(dtype dtypes.DType, value int64) *IntImm {
	return &IntImm{Type: dtype, Value: value}
}

func (e *IntImm) DType() dtypes.DType { return e.Type }
func (e *IntImm) exprNode()           {}

// FloatImm is a floating-point immediate.
type FloatImm struct {
	Type  dtypes.DType
	Value float64
}

// ConstFloat returns a float immediate of the given dtype.
func ConstFloat(dtype dtypes.DType, value float64) *FloatImm {
	return &FloatImm{Type: dtype, Value: value}
}

func (e *FloatImm) DType() dtypes.DType { return e.Type }
func (e *FloatImm) exprNode()           {}

// StringImm is a string immediate, used for builtin call arguments (runtime
// descriptor field names and similar); it never denotes tensor data.
type StringImm struct {
	Value string
}

func (e *StringImm) DType() dtypes.DType { return dtypes.Handle }
func (e *StringImm) exprNode()           {}

// Cast converts Value to Type.
type Cast struct {
	Type  dtypes.DType
	Value Expr
}

// NewCast returns Value reinterpreted as dtype, or Value itself if it already
// has that dtype.
func NewCast(dtype dtypes.DType, value Expr) Expr {
	if value.DType() == dtype {
		return value
	}
	return &Cast{Type: dtype, Value: value}
}

func (e *Cast) DType() dtypes.DType { return e.Type }
func (e *Cast) exprNode()           {}

// BinaryOp enumerates the binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEQ
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
	OpAnd
	OpOr
)

// IsBoolean reports whether the operator yields a predicate.
func (op BinaryOp) IsBoolean() bool { return op >= OpEQ }

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpEQ:
		return "=="
	case OpNE:
		return "!="
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	}
	return "?"
}

// Binary applies Op to A and B. Comparison and logical operators yield Bool;
// arithmetic operators yield A's dtype (the builder is responsible for
// inserting Casts so both sides agree).
type Binary struct {
	Op   BinaryOp
	A, B Expr
}

func (e *Binary) DType() dtypes.DType {
	if e.Op.IsBoolean() {
		return dtypes.Bool
	}
	return e.A.DType()
}
func (e *Binary) exprNode() {}

// Convenience constructors for the common operators.
func Add(a, b Expr) Expr { return &Binary{Op: OpAdd, A: a, B: b} }
func Sub(a, b Expr) Expr { return &Binary{Op: OpSub, A: a, B: b} }
func Mul(a, b Expr) Expr { return &Binary{Op: OpMul, A: a, B: b} }
func Div(a, b Expr) Expr { return &Binary{Op: OpDiv, A: a, B: b} }
func EQ(a, b Expr) Expr  { return &Binary{Op: OpEQ, A: a, B: b} }
func NE(a, b Expr) Expr  { return &Binary{Op: OpNE, A: a, B: b} }
func LT(a, b Expr) Expr  { return &Binary{Op: OpLT, A: a, B: b} }
func GE(a, b Expr) Expr  { return &Binary{Op: OpGE, A: a, B: b} }
func And(a, b Expr) Expr { return &Binary{Op: OpAnd, A: a, B: b} }
func Or(a, b Expr) Expr  { return &Binary{Op: OpOr, A: a, B: b} }

// AndAll folds conds with && . Returns nil for an empty list.
func AndAll(conds ...Expr) Expr {
	var result Expr
	for _, cond := range conds {
		if cond == nil {
			continue
		}
		if result == nil {
			result = cond
		} else {
			result = And(result, cond)
		}
	}
	return result
}

// Load reads one element of dtype Type from Buffer at Index. Buffer is a
// handle-typed variable; Type is the element type actually stored there.
type Load struct {
	Type   dtypes.DType
	Buffer *Var
	Index  Expr
}

func (e *Load) DType() dtypes.DType { return e.Type }
func (e *Load) exprNode()           {}

// Call invokes a named function or runtime builtin. A zero Type marks an
// effect-only call whose result is never read (e.g. a kernel launch).
type Call struct {
	Type dtypes.DType
	Name string
	Args []Expr
}

func (e *Call) DType() dtypes.DType { return e.Type }
func (e *Call) exprNode()           {}

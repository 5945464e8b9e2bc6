package ir

import (
	"github.com/tensorlang/tlc/types/dtypes"
)

// Stmt is an IR statement.
type Stmt interface {
	String() string
	stmtNode()
}

// Block is a flat statement sequence. A LetStmt or Allocate inside a Block
// defines its variable for the remaining statements of that Block (and any
// nested ones).
type Block struct {
	Stmts []Stmt
}

// Seq builds a Block from stmts, flattening a single statement to itself.
func Seq(stmts ...Stmt) Stmt {
	if len(stmts) == 1 {
		return stmts[0]
	}
	return &Block{Stmts: stmts}
}

func (s *Block) stmtNode() {}

// LetStmt binds Var to Value for the remainder of the enclosing Block.
type LetStmt struct {
	Var   *Var
	Value Expr
}

func (s *LetStmt) stmtNode() {}

// Allocate introduces storage for Buffer: Extent elements of dtype Type,
// visible for the remainder of the enclosing Block.
type Allocate struct {
	Buffer *Var
	Type   dtypes.DType
	Extent Expr
}

func (s *Allocate) stmtNode() {}

// Store writes Value to element Index of Buffer.
type Store struct {
	Buffer *Var
	Index  Expr
	Value  Expr
}

func (s *Store) stmtNode() {}

// For iterates LoopVar over [0, Extent) running Body each step. LoopVar is
// defined only within Body.
type For struct {
	LoopVar *Var
	Extent  Expr
	Body    Stmt
}

func (s *For) stmtNode() {}

// Evaluate runs Value for its effect and discards the result.
type Evaluate struct {
	Value Expr
}

func (s *Evaluate) stmtNode() {}

// AssertStmt makes the generated program raise an error when Cond is false at
// run time. Message is a printf-style format; Args supply the observed values
// interpolated into it. The compiler itself never evaluates the condition.
type AssertStmt struct {
	Cond    Expr
	Message string
	Args    []Expr
}

func (s *AssertStmt) stmtNode() {}

// Attribute keys understood by the compiler. Any other key is carried through
// untouched.
const (
	// AttrDeviceScope marks Body as a device kernel region to be extracted
	// by the host/device splitter. Value, if set, is the launch extent; the
	// splitter drops it with the annotation, so it only survives where the
	// region body itself references it.
	AttrDeviceScope = "device_scope"

	// AttrThreadExtent declares Node as a thread index variable iterating
	// over [0, Value). Code generators may surface it as an inert
	// diagnostic comment.
	AttrThreadExtent = "thread_extent"
)

// AttrStmt annotates Body with a Key/Node/Value attribute. Node may be nil
// for attributes not tied to a variable. For AttrThreadExtent, Node is
// defined within Body.
type AttrStmt struct {
	Key   string
	Node  *Var
	Value Expr
	Body  Stmt
}

func (s *AttrStmt) stmtNode() {}

// Function is a compiled unit: a name, parameters and a body. Before
// splitting it is the whole program; after splitting the host function calls
// one extracted device Function per kernel region.
type Function struct {
	Name   string
	Params []*Var
	Body   Stmt
}

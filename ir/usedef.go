package ir

import (
	"github.com/tensorlang/tlc/types"
)

// UseDef is the result of one use-def analysis pass over a statement tree.
//
// Undefined holds the variables referenced but not defined within the
// analyzed tree (nor by the declared parameters): the capture set when the
// tree is a device region. It is kept in first-encounter (syntactic) order,
// deduplicated; any externally visible ordering derived from it must still be
// sorted explicitly, first-encounter order is an implementation detail.
type UseDef struct {
	UseCount map[*Var]int
	DefCount map[*Var]int

	// OutputHints holds every variable seen as a store target. This is an
	// ordering heuristic for the splitter, not a dataflow fact.
	OutputHints types.Set[*Var]

	Undefined []*Var
}

// Uses returns how many times v was referenced.
func (ud *UseDef) Uses(v *Var) int { return ud.UseCount[v] }

// Defs returns how many times v was defined (let-bound, allocated, loop or
// thread index).
func (ud *UseDef) Defs(v *Var) int { return ud.DefCount[v] }

// AnalyzeUseDef runs a single structural pass over stmt with the given
// variables pre-defined (typically the enclosing function's parameters). The
// input tree is read-only during the pass.
func AnalyzeUseDef(stmt Stmt, defined ...*Var) *UseDef {
	a := &usedefPass{
		rec: &UseDef{
			UseCount:    make(map[*Var]int),
			DefCount:    make(map[*Var]int),
			OutputHints: types.MakeSet[*Var](),
		},
		undef: types.MakeSet[*Var](),
	}
	a.pushScope()
	for _, v := range defined {
		a.define(v)
	}
	a.stmt(stmt)
	a.popScope()
	return a.rec
}

// AnalyzeFunction analyzes fn.Body with fn.Params defined.
func AnalyzeFunction(fn *Function) *UseDef {
	return AnalyzeUseDef(fn.Body, fn.Params...)
}

type usedefPass struct {
	rec    *UseDef
	scopes []types.Set[*Var]
	undef  types.Set[*Var]
}

func (a *usedefPass) pushScope() {
	a.scopes = append(a.scopes, types.MakeSet[*Var]())
}

func (a *usedefPass) popScope() {
	a.scopes = a.scopes[:len(a.scopes)-1]
}

func (a *usedefPass) define(v *Var) {
	a.rec.DefCount[v]++
	a.scopes[len(a.scopes)-1].Insert(v)
}

func (a *usedefPass) isDefined(v *Var) bool {
	for _, scope := range a.scopes {
		if scope.Has(v) {
			return true
		}
	}
	return false
}

// use records a reference to v, adding it to Undefined on the first reference
// that no enclosing scope resolves.
func (a *usedefPass) use(v *Var) {
	a.rec.UseCount[v]++
	if !a.isDefined(v) && !a.undef.Has(v) {
		a.undef.Insert(v)
		a.rec.Undefined = append(a.rec.Undefined, v)
	}
}

func (a *usedefPass) stmt(stmt Stmt) {
	switch s := stmt.(type) {
	case nil:
	case *Block:
		a.pushScope()
		for _, sub := range s.Stmts {
			a.stmt(sub)
		}
		a.popScope()
	case *LetStmt:
		a.expr(s.Value)
		a.define(s.Var)
	case *Allocate:
		a.expr(s.Extent)
		a.define(s.Buffer)
	case *Store:
		a.use(s.Buffer)
		a.rec.OutputHints.Insert(s.Buffer)
		a.expr(s.Index)
		a.expr(s.Value)
	case *For:
		a.expr(s.Extent)
		a.pushScope()
		a.define(s.LoopVar)
		a.stmt(s.Body)
		a.popScope()
	case *Evaluate:
		a.expr(s.Value)
	case *AssertStmt:
		a.expr(s.Cond)
		for _, arg := range s.Args {
			a.expr(arg)
		}
	case *AttrStmt:
		if s.Value != nil {
			a.expr(s.Value)
		}
		a.pushScope()
		if s.Key == AttrThreadExtent && s.Node != nil {
			a.define(s.Node)
		}
		a.stmt(s.Body)
		a.popScope()
	}
}

func (a *usedefPass) expr(expr Expr) {
	switch e := expr.(type) {
	case nil:
	case *Var:
		a.use(e)
	case *IntImm, *FloatImm, *StringImm:
	case *Cast:
		a.expr(e.Value)
	case *Binary:
		a.expr(e.A)
		a.expr(e.B)
	case *Load:
		a.use(e.Buffer)
		a.expr(e.Index)
	case *Call:
		for _, arg := range e.Args {
			a.expr(arg)
		}
	}
}

// Package codegen walks a split IR function and emits target source text.
//
// Scalar types resolve against the built-in table first; custom datatypes are
// resolved through a dtypes.Registry and their registered name is emitted
// verbatim. A type with neither mapping aborts code generation with an
// UnsupportedTypeError.
//
// Thread/block extent annotations may be surfaced as inert diagnostic
// comments; they never change the executable semantics of the emitted text.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/tensorlang/tlc/ir"
	"github.com/tensorlang/tlc/types/dtypes"
)

// UnsupportedTypeError aborts code generation: the dtype has no built-in
// mapping and no registration in the consulted registry.
type UnsupportedTypeError struct {
	DType dtypes.DType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("cannot generate code for dtype %s: no built-in mapping and no registered custom datatype", e.DType)
}

// Options configures one code-generation run.
type Options struct {
	// Target selects the backend lowering policy. Empty means TargetC.
	Target string

	// Registry resolves custom datatype names. Nil means dtypes.Global.
	Registry *dtypes.Registry

	// Kernel marks the functions as device kernels (affects qualifiers,
	// parameter typing and thread-extent lowering).
	Kernel bool

	// NoLaunchComments suppresses the inert thread/block extent comments.
	NoLaunchComments bool

	// Declare lists functions defined elsewhere (typically the extracted
	// kernels) that the emitted file calls: Source emits a prototype for
	// each so the file stands alone.
	Declare []*ir.Function
}

func (opts Options) registry() *dtypes.Registry {
	if opts.Registry == nil {
		return dtypes.Global
	}
	return opts.Registry
}

// Function emits the definition of one function, without a file preamble.
func Function(fn *ir.Function, opts Options) (source string, err error) {
	err = exceptions.TryCatch[error](func() {
		g := newGenerator(opts)
		g.function(fn)
		source = g.sb.String()
	})
	if err != nil {
		return "", errors.Wrapf(err, "generating %s code for function %q", targetName(opts), fn.Name)
	}
	return source, nil
}

// Source emits a standalone source file: the target preamble followed by each
// function definition in order.
func Source(fns []*ir.Function, opts Options) (source string, err error) {
	err = exceptions.TryCatch[error](func() {
		g := newGenerator(opts)
		g.sb.WriteString(g.policy.preamble)
		for _, decl := range opts.Declare {
			g.prototype(decl)
		}
		for _, fn := range fns {
			g.sb.WriteString("\n")
			g.function(fn)
		}
		source = g.sb.String()
	})
	if err != nil {
		return "", errors.Wrapf(err, "generating %s source", targetName(opts))
	}
	return source, nil
}

// PrintType returns the target type name for a dtype, consulting the
// registry for custom codes.
func PrintType(dtype dtypes.DType, opts Options) (name string, err error) {
	err = exceptions.TryCatch[error](func() {
		g := newGenerator(opts)
		name = g.typeName(dtype)
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

func targetName(opts Options) string {
	if opts.Target == "" {
		return TargetC
	}
	return opts.Target
}

type generator struct {
	sb     strings.Builder
	indent int
	opts   Options
	policy targetPolicy

	// elemType maps handle variables to the element dtype inferred from
	// the loads and stores going through them, used for pointer casts and
	// typed kernel parameters.
	elemType map[*ir.Var]dtypes.DType
}

func newGenerator(opts Options) *generator {
	return &generator{
		opts:     opts,
		policy:   policyFor(targetName(opts)),
		elemType: make(map[*ir.Var]dtypes.DType),
	}
}

func (g *generator) fatalf(err error) {
	panic(errors.WithStack(err))
}

// typeName resolves a dtype to target source text: built-in table first,
// registry name verbatim for custom codes.
func (g *generator) typeName(dtype dtypes.DType) string {
	if !dtype.Ok() || dtype.Lanes() != 1 {
		g.fatalf(&UnsupportedTypeError{DType: dtype})
	}
	if dtype.IsCustom() {
		name, err := g.opts.registry().TypeName(dtype.Code())
		if err != nil {
			g.fatalf(&UnsupportedTypeError{DType: dtype})
		}
		return name
	}
	kind, _ := dtype.Kind()
	bits := dtype.Bits()
	switch kind {
	case dtypes.KindInt:
		switch bits {
		case 8, 16, 32, 64:
			return fmt.Sprintf("int%d_t", bits)
		}
	case dtypes.KindUInt:
		if bits == 1 {
			return "bool"
		}
		switch bits {
		case 8, 16, 32, 64:
			return fmt.Sprintf("uint%d_t", bits)
		}
	case dtypes.KindFloat:
		switch bits {
		case 16:
			return g.policy.float16Type
		case 32:
			return "float"
		case 64:
			return "double"
		}
	case dtypes.KindBFloat:
		if bits == 16 {
			return g.policy.bfloat16Type
		}
	case dtypes.KindHandle:
		return "void*"
	}
	g.fatalf(&UnsupportedTypeError{DType: dtype})
	return ""
}

func (g *generator) line(format string, args ...any) {
	g.sb.WriteString(strings.Repeat("  ", g.indent))
	fmt.Fprintf(&g.sb, format, args...)
	g.sb.WriteString("\n")
}

func (g *generator) function(fn *ir.Function) {
	inferElemTypes(fn.Body, g.elemType)

	params := make([]string, len(fn.Params))
	for ii, p := range fn.Params {
		params[ii] = fmt.Sprintf("%s %s", g.paramType(p), p.Name)
	}
	qualifier := ""
	if g.opts.Kernel {
		qualifier = g.policy.kernelQualifier
	}
	g.line("%svoid %s(%s) {", qualifier, fn.Name, strings.Join(params, ", "))
	g.indent++
	g.stmt(fn.Body)
	g.indent--
	g.line("}")
}

// prototype emits a forward declaration for a function defined elsewhere.
func (g *generator) prototype(fn *ir.Function) {
	params := make([]string, len(fn.Params))
	for ii, p := range fn.Params {
		params[ii] = g.paramType(p)
	}
	g.line("void %s(%s);", fn.Name, strings.Join(params, ", "))
}

// paramType types a function parameter. Handle parameters become typed
// element pointers when the policy suppresses pointer casts (the element
// dtype is then needed at the signature); otherwise they stay void*.
func (g *generator) paramType(v *ir.Var) string {
	if v.Type.IsHandle() && !g.policy.castScalarPointers {
		if elem, ok := g.elemType[v]; ok {
			return g.typeName(elem) + "*"
		}
	}
	return g.typeName(v.Type)
}

func (g *generator) stmt(stmt ir.Stmt) {
	switch s := stmt.(type) {
	case nil:
	case *ir.Block:
		for _, sub := range s.Stmts {
			g.stmt(sub)
		}
	case *ir.LetStmt:
		g.line("%s %s = %s;", g.typeName(s.Var.Type), s.Var.Name, g.expr(s.Value))
	case *ir.Allocate:
		g.line("%s %s[%s];", g.typeName(s.Type), s.Buffer.Name, g.expr(s.Extent))
	case *ir.Store:
		g.line("%s = %s;", g.bufferRef(s.Buffer, s.Index), g.expr(s.Value))
	case *ir.For:
		g.line("for (%s %s = 0; %s < %s; ++%s) {",
			g.typeName(s.LoopVar.Type), s.LoopVar.Name, s.LoopVar.Name, g.expr(s.Extent), s.LoopVar.Name)
		g.indent++
		g.stmt(s.Body)
		g.indent--
		g.line("}")
	case *ir.Evaluate:
		g.line("%s;", g.expr(s.Value))
	case *ir.AssertStmt:
		g.assertStmt(s)
	case *ir.AttrStmt:
		g.attrStmt(s)
	default:
		g.fatalf(errors.Errorf("cannot generate code for statement %T", stmt))
	}
}

func (g *generator) assertStmt(s *ir.AssertStmt) {
	args := make([]string, 0, len(s.Args)+1)
	args = append(args, strconv.Quote(s.Message))
	for _, arg := range s.Args {
		args = append(args, g.expr(arg))
	}
	g.line("if (!(%s)) {", g.expr(s.Cond))
	g.indent++
	g.line("tlc_throw(%s);", strings.Join(args, ", "))
	g.indent--
	g.line("}")
}

func (g *generator) attrStmt(s *ir.AttrStmt) {
	if s.Key != ir.AttrThreadExtent {
		// Unknown annotations carry no codegen semantics.
		g.stmt(s.Body)
		return
	}
	if !g.opts.NoLaunchComments {
		g.line("// thread_extent: %s = %s", s.Node.Name, s.Value)
	}
	extent := g.expr(s.Value)
	indexType := g.typeName(s.Node.Type)
	if g.opts.Kernel && g.policy.threadIndexExpr != "" {
		// Bind the annotated variable to the hardware thread index and
		// guard the body against over-provisioned launches.
		g.line("%s %s = (%s)%s;", indexType, s.Node.Name, indexType, g.policy.threadIndexExpr)
		g.line("if (%s < %s) {", s.Node.Name, extent)
	} else {
		// No hardware index on this target: the extent lowers to a
		// serial loop with identical semantics.
		g.line("for (%s %s = 0; %s < %s; ++%s) {",
			indexType, s.Node.Name, s.Node.Name, extent, s.Node.Name)
	}
	g.indent++
	g.stmt(s.Body)
	g.indent--
	g.line("}")
}

func (g *generator) expr(expr ir.Expr) string {
	switch e := expr.(type) {
	case *ir.Var:
		return e.Name
	case *ir.IntImm:
		return g.intImm(e)
	case *ir.FloatImm:
		return g.floatImm(e)
	case *ir.StringImm:
		return strconv.Quote(e.Value)
	case *ir.Cast:
		return fmt.Sprintf("((%s)%s)", g.typeName(e.Type), g.expr(e.Value))
	case *ir.Binary:
		return fmt.Sprintf("(%s %s %s)", g.expr(e.A), e.Op, g.expr(e.B))
	case *ir.Load:
		return g.bufferRef(e.Buffer, e.Index)
	case *ir.Call:
		args := make([]string, len(e.Args))
		for ii, arg := range e.Args {
			args[ii] = g.expr(arg)
		}
		return fmt.Sprintf("%s(%s)", e.Name, strings.Join(args, ", "))
	}
	g.fatalf(errors.Errorf("cannot generate code for expression %T", expr))
	return ""
}

func (g *generator) intImm(e *ir.IntImm) string {
	if e.Type.IsBool() {
		if e.Value != 0 {
			return "true"
		}
		return "false"
	}
	if e.Type.Bits() == 64 {
		return fmt.Sprintf("%dLL", e.Value)
	}
	return strconv.FormatInt(e.Value, 10)
}

// floatImm renders a float literal. 16-bit floats are materialized from
// their exact bit pattern so the emitted constant round-trips precisely.
func (g *generator) floatImm(e *ir.FloatImm) string {
	dtype := e.Type
	switch {
	case dtype.IsFloat() && dtype.Bits() == 16:
		bits := float16.Fromfloat32(float32(e.Value)).Bits()
		return fmt.Sprintf("tlc_f16_from_bits(0x%04x)", bits)
	case dtype.IsFloat() && dtype.Bits() == 32:
		return floatText(e.Value, 32) + "f"
	case dtype.IsFloat() && dtype.Bits() == 64:
		return floatText(e.Value, 64)
	default:
		// bfloat and custom dtypes go through an explicit conversion
		// from double, their runtime type provides the constructor.
		return fmt.Sprintf("((%s)%s)", g.typeName(dtype), floatText(e.Value, 64))
	}
}

// floatText formats a float literal with an explicit decimal point, which C
// requires before an f suffix.
func floatText(value float64, bits int) string {
	s := strconv.FormatFloat(value, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// bufferRef renders one scalar element reference through a handle variable,
// applying the pointer-cast wrapper unless the target policy suppresses it.
func (g *generator) bufferRef(buffer *ir.Var, index ir.Expr) string {
	elem, ok := g.elemType[buffer]
	if !ok {
		g.fatalf(errors.Errorf("no element type known for buffer %q", buffer.Name))
	}
	if g.policy.castScalarPointers {
		return fmt.Sprintf("((%s*)%s)[%s]", g.typeName(elem), buffer.Name, g.expr(index))
	}
	return fmt.Sprintf("%s[%s]", buffer.Name, g.expr(index))
}

// inferElemTypes records, per handle variable, the element dtype of the
// loads and stores going through it.
func inferElemTypes(stmt ir.Stmt, out map[*ir.Var]dtypes.DType) {
	var visitExpr func(ir.Expr)
	var visitStmt func(ir.Stmt)
	visitExpr = func(expr ir.Expr) {
		switch e := expr.(type) {
		case *ir.Cast:
			visitExpr(e.Value)
		case *ir.Binary:
			visitExpr(e.A)
			visitExpr(e.B)
		case *ir.Load:
			if _, ok := out[e.Buffer]; !ok {
				out[e.Buffer] = e.Type
			}
			visitExpr(e.Index)
		case *ir.Call:
			for _, arg := range e.Args {
				visitExpr(arg)
			}
		}
	}
	visitStmt = func(stmt ir.Stmt) {
		switch s := stmt.(type) {
		case *ir.Block:
			for _, sub := range s.Stmts {
				visitStmt(sub)
			}
		case *ir.LetStmt:
			visitExpr(s.Value)
		case *ir.Allocate:
			if _, ok := out[s.Buffer]; !ok {
				out[s.Buffer] = s.Type
			}
			visitExpr(s.Extent)
		case *ir.Store:
			if _, ok := out[s.Buffer]; !ok {
				out[s.Buffer] = s.Value.DType()
			}
			visitExpr(s.Index)
			visitExpr(s.Value)
		case *ir.For:
			visitExpr(s.Extent)
			visitStmt(s.Body)
		case *ir.Evaluate:
			visitExpr(s.Value)
		case *ir.AssertStmt:
			visitExpr(s.Cond)
			for _, arg := range s.Args {
				visitExpr(arg)
			}
		case *ir.AttrStmt:
			if s.Value != nil {
				visitExpr(s.Value)
			}
			visitStmt(s.Body)
		}
	}
	visitStmt(stmt)
}

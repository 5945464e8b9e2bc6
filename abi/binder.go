package abi

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/tensorlang/tlc/ir"
	"github.com/tensorlang/tlc/types"
	"github.com/tensorlang/tlc/types/dtypes"
)

// Binding is the generated validation and extraction logic for one buffer
// argument. All expressions read descriptor fields of the runtime handle the
// buffer was bound against; nothing is evaluated at compile time.
type Binding struct {
	// TypeCheck is true at call time iff the descriptor's dtype is
	// acceptable for the declaration (see Bind for the custom-type
	// weakening).
	TypeCheck ir.Expr

	// ShapeChecks and StrideChecks compare each concretely declared extent
	// to the corresponding descriptor field. Symbolic extents produce no
	// check on first sight (they are extracted instead); a symbolic extent
	// repeated across axes produces an equality check on every repeat.
	ShapeChecks  []ir.Expr
	StrideChecks []ir.Expr

	// Extraction binds each symbolic dimension/stride and the data pointer
	// to host-function locals, in axis order.
	Extraction []ir.Stmt
}

// Check folds every generated condition into the single boolean the
// declaration's acceptance contract specifies.
func (b *Binding) Check() ir.Expr {
	conds := []ir.Expr{b.TypeCheck}
	conds = append(conds, b.ShapeChecks...)
	conds = append(conds, b.StrideChecks...)
	return ir.AndAll(conds...)
}

// Binder generates bindings for the buffer arguments of one function. It
// remembers which symbolic extent variables earlier bindings already
// extracted: the first buffer mentioning a symbolic extent extracts it from
// its descriptor, every later mention generates an equality check instead.
type Binder struct {
	bound types.Set[*ir.Var]
}

// NewBinder returns a Binder with no extents bound yet.
func NewBinder() *Binder {
	return &Binder{bound: types.MakeSet[*ir.Var]()}
}

// Bind generates the call-time validation and extraction for one declared
// buffer against the runtime descriptor handle, independent of any other
// buffer. For a function with several buffers sharing symbolic extents, use
// a Binder so the shared extents bind once.
func Bind(buf *Buffer, handle *ir.Var) (*Binding, error) {
	return NewBinder().Bind(buf, handle)
}

// Bind generates the call-time validation and extraction for one declared
// buffer against the runtime descriptor handle.
//
// Built-in dtypes are checked strictly: type code, bits and lanes must all
// equal the declaration. Custom dtypes get a weakened check: the descriptor
// is accepted if it reports *any* custom type code, without comparing the
// code, bits or lanes to the declaration. Custom-type metadata on the runtime
// side cannot be trusted to match exactly, so the check is deliberately
// permissive; note it does not even pin the descriptor to the declared custom
// code. This is a known soundness gap, kept as observed behavior; see
// DESIGN.md before tightening it.
func (bd *Binder) Bind(buf *Buffer, handle *ir.Var) (*Binding, error) {
	if !buf.Type.Ok() {
		return nil, errors.Errorf("buffer %q has no element type", buf.Name)
	}
	if handle == nil || !handle.Type.IsHandle() {
		return nil, errors.Errorf("buffer %q must be bound to a handle-typed argument", buf.Name)
	}
	b := &Binding{}

	codeExpr := FieldExpr(handle, FieldTypeCode, dtypes.Int32)
	bitsExpr := FieldExpr(handle, FieldTypeBits, dtypes.Int32)
	lanesExpr := FieldExpr(handle, FieldTypeLanes, dtypes.Int32)
	if buf.Type.IsCustom() {
		// Weakened path: any custom code passes.
		b.TypeCheck = ir.GE(codeExpr, ir.ConstInt(dtypes.Int32, int64(dtypes.CustomBegin)))
		klog.V(1).Infof("buffer %q: custom dtype %s, runtime check only requires some custom type code",
			buf.Name, buf.Type)
	} else {
		b.TypeCheck = ir.AndAll(
			ir.EQ(codeExpr, ir.ConstInt(dtypes.Int32, int64(buf.Type.Code()))),
			ir.EQ(bitsExpr, ir.ConstInt(dtypes.Int32, int64(buf.Type.Bits()))),
			ir.EQ(lanesExpr, ir.ConstInt(dtypes.Int32, int64(buf.Type.Lanes()))),
		)
	}

	bound := bd.bound
	concreteSize := int64(buf.ElemBytes())
	allConcrete := true
	for axis, dim := range buf.Shape {
		observed := ShapeExpr(handle, axis)
		switch d := dim.(type) {
		case *ir.IntImm:
			b.ShapeChecks = append(b.ShapeChecks,
				ir.EQ(observed, ir.ConstInt(dtypes.Int64, d.Value)))
			concreteSize *= d.Value
		case *ir.Var:
			allConcrete = false
			if bound.Has(d) {
				// Same symbolic extent on a second axis: must agree.
				b.ShapeChecks = append(b.ShapeChecks,
					ir.EQ(observed, ir.NewCast(dtypes.Int64, d)))
				continue
			}
			bound.Insert(d)
			b.Extraction = append(b.Extraction,
				&ir.LetStmt{Var: d, Value: ir.NewCast(d.Type, observed)})
		default:
			return nil, errors.Errorf("buffer %q axis %d: extent must be a constant or a variable, got %T",
				buf.Name, axis, dim)
		}
	}
	for axis, stride := range buf.Strides {
		observed := StrideExpr(handle, axis)
		switch s := stride.(type) {
		case *ir.IntImm:
			b.StrideChecks = append(b.StrideChecks,
				ir.EQ(observed, ir.ConstInt(dtypes.Int64, s.Value)))
		case *ir.Var:
			if bound.Has(s) {
				b.StrideChecks = append(b.StrideChecks,
					ir.EQ(observed, ir.NewCast(dtypes.Int64, s)))
				continue
			}
			bound.Insert(s)
			b.Extraction = append(b.Extraction,
				&ir.LetStmt{Var: s, Value: ir.NewCast(s.Type, observed)})
		default:
			return nil, errors.Errorf("buffer %q axis %d: stride must be a constant or a variable, got %T",
				buf.Name, axis, stride)
		}
	}
	if buf.Data != nil {
		b.Extraction = append(b.Extraction,
			&ir.LetStmt{Var: buf.Data, Value: DataExpr(handle)})
	}
	if allConcrete && len(buf.Shape) > 0 {
		klog.V(2).Infof("buffer %q: %s of %s", buf.Name, buf.Type,
			humanize.IBytes(uint64(concreteSize)))
	}
	return b, nil
}

// Stmts renders the binding as the host-function entry sequence for the named
// argument: one assert per failed-check error class (raising
// TypeMismatchError or ShapeMismatchError with the expected and observed
// values), followed by the extraction bindings.
func (b *Binding) Stmts(buf *Buffer, handle *ir.Var) []ir.Stmt {
	var out []ir.Stmt
	out = append(out, &ir.AssertStmt{
		Cond: b.TypeCheck,
		Message: fmt.Sprintf(
			"TypeMismatchError: argument %s expected dtype %s (code %d, bits %d, lanes %d), got code %%d, bits %%d, lanes %%d",
			buf.Name, buf.Type, buf.Type.Code(), buf.Type.Bits(), buf.Type.Lanes()),
		Args: []ir.Expr{
			FieldExpr(handle, FieldTypeCode, dtypes.Int32),
			FieldExpr(handle, FieldTypeBits, dtypes.Int32),
			FieldExpr(handle, FieldTypeLanes, dtypes.Int32),
		},
	})
	appendExtentAsserts := func(checks []ir.Expr, what string) {
		for _, check := range checks {
			cmp, ok := check.(*ir.Binary)
			if !ok {
				continue
			}
			out = append(out, &ir.AssertStmt{
				Cond: check,
				Message: fmt.Sprintf(
					"ShapeMismatchError: argument %s expected %s %s, got %%d",
					buf.Name, what, cmp.B),
				Args: []ir.Expr{cmp.A},
			})
		}
	}
	appendExtentAsserts(b.ShapeChecks, "extent")
	appendExtentAsserts(b.StrideChecks, "stride")
	out = append(out, b.Extraction...)
	return out
}

// Package abi is the host/device call-boundary contract: compile-time buffer
// declarations, the runtime tensor descriptor accessor expressions, and the
// argument binder that validates a descriptor against a declaration.
//
// The compiler never sees runtime values. It only generates expressions that
// read descriptor fields and checks over them; the generated program performs
// the validation at call time.
package abi

import (
	"github.com/tensorlang/tlc/ir"
	"github.com/tensorlang/tlc/types/dtypes"
)

// Runtime tensor descriptor fields, in their fixed ABI order. The runtime
// constructing descriptors must agree on these names; the compiler only reads
// them through the accessor expressions below. Fields no generated expression
// reads (device type and id, byte offset) are listed anyway to pin the full
// descriptor layout: the runtime consumes them when placing buffers and
// adjusting the data pointer (see DataExpr).
const (
	FieldDeviceType = "device_type"
	FieldDeviceID   = "device_id"
	FieldTypeCode   = "type_code"
	FieldTypeBits   = "type_bits"
	FieldTypeLanes  = "type_lanes"
	FieldShape      = "shape"
	FieldStrides    = "strides"
	FieldByteOffset = "byte_offset"
	FieldData       = "data"
)

// Builtin call names understood by the code generator and provided by the
// target runtime.
const (
	BuiltinTensorField  = "tlc_tensor_field"
	BuiltinTensorShape  = "tlc_tensor_shape"
	BuiltinTensorStride = "tlc_tensor_stride"
	BuiltinTensorData   = "tlc_tensor_data"
)

// FieldExpr reads a scalar descriptor field from handle.
func FieldExpr(handle *ir.Var, field string, dtype dtypes.DType) ir.Expr {
	return &ir.Call{
		Type: dtype,
		Name: BuiltinTensorField,
		Args: []ir.Expr{handle, &ir.StringImm{Value: field}},
	}
}

// ShapeExpr reads the extent of one axis from handle's shape array.
func ShapeExpr(handle *ir.Var, axis int) ir.Expr {
	return &ir.Call{
		Type: dtypes.Int64,
		Name: BuiltinTensorShape,
		Args: []ir.Expr{handle, ir.ConstInt(dtypes.Int32, int64(axis))},
	}
}

// StrideExpr reads the stride of one axis from handle's strides array.
func StrideExpr(handle *ir.Var, axis int) ir.Expr {
	return &ir.Call{
		Type: dtypes.Int64,
		Name: BuiltinTensorStride,
		Args: []ir.Expr{handle, ir.ConstInt(dtypes.Int32, int64(axis))},
	}
}

// DataExpr reads the data pointer (already adjusted by the descriptor's byte
// offset on the runtime side).
func DataExpr(handle *ir.Var) ir.Expr {
	return &ir.Call{
		Type: dtypes.Handle,
		Name: BuiltinTensorData,
		Args: []ir.Expr{handle},
	}
}

// Kind says which side of the call a buffer belongs to.
type Kind int

const (
	Input Kind = iota
	Output
)

func (k Kind) String() string {
	if k == Output {
		return "output"
	}
	return "input"
}

// Buffer is a compile-time buffer declaration. Shape and Strides entries are
// either *ir.IntImm (a concrete extent, checked against the descriptor) or
// *ir.Var (a symbolic extent, extracted from the descriptor at call time).
// Strides may be nil when the buffer is declared compact.
type Buffer struct {
	Name    string
	Data    *ir.Var // handle the function body loads/stores through
	Type    dtypes.DType
	Shape   []ir.Expr
	Strides []ir.Expr
	Kind    Kind
}

// ElemBytes returns the size of the declared element type in bytes, rounding
// sub-byte types up.
func (b *Buffer) ElemBytes() int64 {
	return (int64(b.Type.Bits())*int64(b.Type.Lanes()) + 7) / 8
}

// Package dtypes defines DType, the scalar element type used by the tlc IR,
// and the Registry that maps custom datatype codes to names.
//
// A DType is a (code, bits, lanes) triple in the DLPack style. Codes below
// CustomBegin identify the built-in scalar kinds (signed/unsigned integers,
// IEEE floats, bfloat, opaque handles) and carry fixed semantics. Codes at or
// above CustomBegin identify custom datatypes: scalar types the IR itself
// knows nothing about, whose printable name comes from a Registry lookup at
// code-generation time.
//
// Call sites should never compare a code against CustomBegin directly: use
// DType.IsCustom and DType.Kind, which keep the built-in vs custom distinction
// in one place.
package dtypes

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// TypeCode identifies a scalar kind. Values below CustomBegin are the Kind
// constants; values at or above CustomBegin are allocated by a Registry.
type TypeCode uint8

// Kind enumerates the built-in scalar kinds.
type Kind uint8

const (
	KindInt Kind = iota
	KindUInt
	KindFloat
	KindHandle
	KindBFloat
)

// CustomBegin is the first TypeCode available to custom datatypes. Every code
// below it is reserved for built-in kinds.
const CustomBegin TypeCode = 129

// DType is the element type of a tensor or IR scalar: a kind (or custom
// code), a bit width and a lane count (lanes > 1 for short vectors).
//
// DType is a small value type: copy it freely, compare it with ==.
type DType struct {
	code  TypeCode
	bits  uint8
	lanes uint16
}

// Invalid is the zero DType. Invalid.Ok() == false.
var Invalid = DType{}

// Make returns a DType with the given code, bits and lanes. It panics on a
// zero bits or lanes, which never describe a real scalar.
func Make(code TypeCode, bits uint8, lanes uint16) DType {
	if bits == 0 || lanes == 0 {
		exceptions.Panicf("dtypes.Make(%d, %d, %d): bits and lanes must be > 0", code, bits, lanes)
	}
	return DType{code: code, bits: bits, lanes: lanes}
}

// Int returns a signed integer DType of the given bit width.
func Int(bits uint8) DType { return Make(TypeCode(KindInt), bits, 1) }

// UInt returns an unsigned integer DType of the given bit width.
func UInt(bits uint8) DType { return Make(TypeCode(KindUInt), bits, 1) }

// Float returns an IEEE float DType of the given bit width.
func Float(bits uint8) DType { return Make(TypeCode(KindFloat), bits, 1) }

// Custom returns a DType for a registered custom type code. The code must be
// at or above CustomBegin; pairing it with a Registry that knows the code is
// the caller's responsibility (the code generator will fail otherwise).
func Custom(code TypeCode, bits uint8) DType {
	if code < CustomBegin {
		exceptions.Panicf("dtypes.Custom(%d, %d): custom type codes start at %d", code, bits, CustomBegin)
	}
	return Make(code, bits, 1)
}

// The usual built-in scalars.
var (
	Bool     = UInt(1)
	Int8     = Int(8)
	Int16    = Int(16)
	Int32    = Int(32)
	Int64    = Int(64)
	UInt8    = UInt(8)
	UInt16   = UInt(16)
	UInt32   = UInt(32)
	UInt64   = UInt(64)
	Float16  = Float(16)
	Float32  = Float(32)
	Float64  = Float(64)
	BFloat16 = Make(TypeCode(KindBFloat), 16, 1)

	// Handle is an opaque pointer, used for buffer variables and runtime
	// tensor descriptors.
	Handle = Make(TypeCode(KindHandle), 64, 1)
)

// Code returns the raw type code.
func (dt DType) Code() TypeCode { return dt.code }

// Bits returns the bit width of one lane.
func (dt DType) Bits() uint8 { return dt.bits }

// Lanes returns the number of lanes (1 for plain scalars).
func (dt DType) Lanes() uint16 { return dt.lanes }

// Ok reports whether dt is a valid (non-zero) DType.
func (dt DType) Ok() bool { return dt.bits != 0 && dt.lanes != 0 }

// IsCustom reports whether dt is a custom datatype, meaningful only through a
// Registry. This is the one place a code is compared against CustomBegin.
func (dt DType) IsCustom() bool { return dt.code >= CustomBegin }

// Kind returns the built-in kind of dt and ok=true, or ok=false if dt is a
// custom datatype.
func (dt DType) Kind() (kind Kind, ok bool) {
	if dt.IsCustom() {
		return 0, false
	}
	return Kind(dt.code), true
}

// IsFloat reports whether dt is a built-in IEEE float.
func (dt DType) IsFloat() bool { return dt.code == TypeCode(KindFloat) }

// IsInt reports whether dt is a built-in signed integer.
func (dt DType) IsInt() bool { return dt.code == TypeCode(KindInt) }

// IsUInt reports whether dt is a built-in unsigned integer.
func (dt DType) IsUInt() bool { return dt.code == TypeCode(KindUInt) }

// IsBool reports whether dt is the 1-bit unsigned type used for predicates.
func (dt DType) IsBool() bool { return dt == Bool }

// IsHandle reports whether dt is an opaque pointer type.
func (dt DType) IsHandle() bool { return dt.code == TypeCode(KindHandle) }

// WithLanes returns a copy of dt with the given lane count.
func (dt DType) WithLanes(lanes uint16) DType { return Make(dt.code, dt.bits, lanes) }

// String implements fmt.Stringer. Custom types print as "custom[<code>]<bits>"
// since the name lives in a Registry; use Registry.TypeName for the real name.
func (dt DType) String() string {
	if !dt.Ok() {
		return "invalid"
	}
	var s string
	switch {
	case dt.IsCustom():
		s = fmt.Sprintf("custom[%d]%d", dt.code, dt.bits)
	case dt == Bool:
		s = "bool"
	case dt.IsInt():
		s = fmt.Sprintf("int%d", dt.bits)
	case dt.IsUInt():
		s = fmt.Sprintf("uint%d", dt.bits)
	case dt.IsFloat():
		s = fmt.Sprintf("float%d", dt.bits)
	case dt.code == TypeCode(KindBFloat):
		s = fmt.Sprintf("bfloat%d", dt.bits)
	case dt.IsHandle():
		s = "handle"
	default:
		s = fmt.Sprintf("code[%d]%d", dt.code, dt.bits)
	}
	if dt.lanes > 1 {
		s = fmt.Sprintf("%sx%d", s, dt.lanes)
	}
	return s
}

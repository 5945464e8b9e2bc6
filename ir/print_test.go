package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tensorlang/tlc/types/dtypes"
)

func TestPrintFunction(t *testing.T) {
	n := NewVar("n", dtypes.Int32)
	a := NewVar("a", dtypes.Handle)
	i := NewVar("i", dtypes.Int32)
	fn := &Function{
		Name:   "scale",
		Params: []*Var{a, n},
		Body: &For{
			LoopVar: i,
			Extent:  n,
			Body: &Store{
				Buffer: a,
				Index:  i,
				Value: Mul(&Load{Type: dtypes.Float32, Buffer: a, Index: i},
					ConstFloat(dtypes.Float32, 2)),
			},
		},
	}
	want := `fn scale(a: handle, n: int32) {
  for i in [0, n) {
    a[i] = (a[i] * 2f)
  }
}
`
	require.Equal(t, want, fn.String())
}

func TestPrintExprs(t *testing.T) {
	x := NewVar("x", dtypes.Int32)
	require.Equal(t, "(x + 1)", Add(x, ConstInt(dtypes.Int32, 1)).String())
	require.Equal(t, "float32(x)", NewCast(dtypes.Float32, x).String())
	require.Equal(t, "(x == 0)", EQ(x, ConstInt(dtypes.Int32, 0)).String())
	require.Equal(t, `f(x, "shape")`,
		(&Call{Type: dtypes.Int64, Name: "f", Args: []Expr{x, &StringImm{Value: "shape"}}}).String())
}

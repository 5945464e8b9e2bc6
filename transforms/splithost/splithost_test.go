package splithost

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tensorlang/tlc/ir"
	"github.com/tensorlang/tlc/types"
	"github.com/tensorlang/tlc/types/dtypes"
)

// vecAdd builds: fn vecadd(a, b, c, n) { device { for i: c[i] = a[i] + b[i] } }
func vecAdd() (*ir.Function, [4]*ir.Var) {
	a := ir.NewVar("a", dtypes.Handle)
	b := ir.NewVar("b", dtypes.Handle)
	c := ir.NewVar("c", dtypes.Handle)
	n := ir.NewVar("n", dtypes.Int32)
	i := ir.NewVar("i", dtypes.Int32)

	loop := &ir.For{
		LoopVar: i,
		Extent:  n,
		Body: &ir.Store{
			Buffer: c,
			Index:  i,
			Value: ir.Add(&ir.Load{Type: dtypes.Float32, Buffer: a, Index: i},
				&ir.Load{Type: dtypes.Float32, Buffer: b, Index: i}),
		},
	}
	fn := &ir.Function{
		Name:   "vecadd",
		Params: []*ir.Var{a, b, c, n},
		Body:   &ir.AttrStmt{Key: ir.AttrDeviceScope, Value: n, Body: loop},
	}
	return fn, [4]*ir.Var{a, b, c, n}
}

func TestSplitExtractsKernel(t *testing.T) {
	fn, vars := vecAdd()
	a, b, c, n := vars[0], vars[1], vars[2], vars[3]

	result, err := Split(fn)
	require.NoError(t, err)
	require.Len(t, result.Kernels, 1)

	kernel := result.Kernels[0]
	require.Equal(t, "vecadd_kernel0", kernel.Name)
	// Inputs first, lexicographic; store target last.
	require.Equal(t, []*ir.Var{a, b, n, c}, kernel.Params)

	// Host body became a call with arguments in parameter order.
	eval, ok := result.Host.Body.(*ir.Evaluate)
	require.True(t, ok)
	call, ok := eval.Value.(*ir.Call)
	require.True(t, ok)
	require.Equal(t, "vecadd_kernel0", call.Name)
	require.Len(t, call.Args, 4)
	for ii, param := range kernel.Params {
		require.Same(t, param, call.Args[ii])
	}
}

func TestSplitNoRegionsIsIdentity(t *testing.T) {
	n := ir.NewVar("n", dtypes.Int32)
	i := ir.NewVar("i", dtypes.Int32)
	out := ir.NewVar("out", dtypes.Handle)
	fn := &ir.Function{
		Name:   "hostonly",
		Params: []*ir.Var{out, n},
		Body: &ir.For{LoopVar: i, Extent: n,
			Body: &ir.Store{Buffer: out, Index: i, Value: i}},
	}
	result, err := Split(fn)
	require.NoError(t, err)
	require.Empty(t, result.Kernels)
	require.Same(t, fn, result.Host)
}

func TestSplitZeroCaptureRegion(t *testing.T) {
	fn := &ir.Function{
		Name: "noop",
		Body: &ir.AttrStmt{
			Key:  ir.AttrDeviceScope,
			Body: &ir.Evaluate{Value: ir.ConstInt(dtypes.Int32, 0)},
		},
	}
	result, err := Split(fn)
	require.NoError(t, err)
	require.Len(t, result.Kernels, 1)
	require.Empty(t, result.Kernels[0].Params)
	call := result.Host.Body.(*ir.Evaluate).Value.(*ir.Call)
	require.Empty(t, call.Args)
}

func TestSplitMultipleRegions(t *testing.T) {
	x := ir.NewVar("x", dtypes.Handle)
	n := ir.NewVar("n", dtypes.Int32)
	i := ir.NewVar("i", dtypes.Int32)
	j := ir.NewVar("j", dtypes.Int32)

	region := func(loopVar *ir.Var) ir.Stmt {
		return &ir.AttrStmt{Key: ir.AttrDeviceScope, Body: &ir.For{
			LoopVar: loopVar, Extent: n,
			Body: &ir.Store{Buffer: x, Index: loopVar, Value: loopVar},
		}}
	}
	fn := &ir.Function{
		Name:   "twice",
		Params: []*ir.Var{x, n},
		Body:   ir.Seq(region(i), region(j)),
	}
	result, err := Split(fn)
	require.NoError(t, err)
	require.Len(t, result.Kernels, 2)
	require.Equal(t, "twice_kernel0", result.Kernels[0].Name)
	require.Equal(t, "twice_kernel1", result.Kernels[1].Name)
	// Each region captures independently, same order in both.
	require.Equal(t, []*ir.Var{n, x}, result.Kernels[0].Params)
	require.Equal(t, []*ir.Var{n, x}, result.Kernels[1].Params)
}

func TestSplitLaunchBoundOnlyVarNotCaptured(t *testing.T) {
	// grid appears only as the region's launch bound: it is not a use
	// inside the region, so it must not become a kernel parameter.
	grid := ir.NewVar("grid", dtypes.Int32)
	out := ir.NewVar("out", dtypes.Handle)
	fn := &ir.Function{
		Name:   "bound",
		Params: []*ir.Var{out, grid},
		Body: &ir.AttrStmt{
			Key:   ir.AttrDeviceScope,
			Value: grid,
			Body: &ir.Store{Buffer: out, Index: ir.ConstInt(dtypes.Int32, 0),
				Value: ir.ConstInt(dtypes.Int32, 1)},
		},
	}
	result, err := Split(fn)
	require.NoError(t, err)
	require.Equal(t, []*ir.Var{out}, result.Kernels[0].Params)
}

func TestOrderCapturesTieBreak(t *testing.T) {
	// {a(output), b(input), c(input)} orders as [b, c, a].
	a := ir.NewVar("a", dtypes.Handle)
	b := ir.NewVar("b", dtypes.Handle)
	c := ir.NewVar("c", dtypes.Handle)
	ud := &ir.UseDef{
		Undefined:   []*ir.Var{a, b, c},
		OutputHints: types.SetWith(a),
	}
	require.Equal(t, []*ir.Var{b, c, a}, OrderCaptures(ud))
}

func TestOrderCapturesDeterministicUnderPermutation(t *testing.T) {
	vars := []*ir.Var{
		ir.NewVar("alpha", dtypes.Handle),
		ir.NewVar("beta", dtypes.Handle),
		ir.NewVar("delta", dtypes.Int32),
		ir.NewVar("gamma", dtypes.Handle),
		ir.NewVar("omega", dtypes.Handle),
	}
	hints := types.SetWith(vars[1], vars[4]) // beta and omega are store targets

	var want []*ir.Var
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		shuffled := make([]*ir.Var, len(vars))
		copy(shuffled, vars)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		got := OrderCaptures(&ir.UseDef{Undefined: shuffled, OutputHints: hints})
		if want == nil {
			want = got
			continue
		}
		require.Equal(t, want, got, "permutation %d produced a different order", trial)
	}
	require.Equal(t, []*ir.Var{vars[0], vars[2], vars[3], vars[1], vars[4]}, want)
}

func TestSplitCaptureWithoutTypeIsFatal(t *testing.T) {
	ghost := &ir.Var{Name: "ghost"} // no dtype: cannot resolve a declaration
	fn := &ir.Function{
		Name: "broken",
		Body: &ir.AttrStmt{Key: ir.AttrDeviceScope,
			Body: &ir.Evaluate{Value: ghost}},
	}
	_, err := Split(fn)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ghost")
}

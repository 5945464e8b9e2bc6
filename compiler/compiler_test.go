package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tensorlang/tlc/abi"
	"github.com/tensorlang/tlc/codegen"
	"github.com/tensorlang/tlc/ir"
	"github.com/tensorlang/tlc/types/dtypes"
)

// buildVecAdd builds the canonical boundary-layer program:
//
//	fn vecadd(a_desc, b_desc, c_desc) with buffers a, b, c: float32[n]
//	device { thread_extent tx < n: c[tx] = a[tx] + b[tx] }
func buildVecAdd() (*ir.Function, []BufferArg) {
	aDesc := ir.NewVar("a_desc", dtypes.Handle)
	bDesc := ir.NewVar("b_desc", dtypes.Handle)
	cDesc := ir.NewVar("c_desc", dtypes.Handle)
	a := ir.NewVar("a", dtypes.Handle)
	b := ir.NewVar("b", dtypes.Handle)
	c := ir.NewVar("c", dtypes.Handle)
	n := ir.NewVar("n", dtypes.Int32)
	tx := ir.NewVar("tx", dtypes.Int32)

	region := &ir.AttrStmt{
		Key:   ir.AttrDeviceScope,
		Value: n,
		Body: &ir.AttrStmt{
			Key:   ir.AttrThreadExtent,
			Node:  tx,
			Value: n,
			Body: &ir.Store{
				Buffer: c,
				Index:  tx,
				Value: ir.Add(&ir.Load{Type: dtypes.Float32, Buffer: a, Index: tx},
					&ir.Load{Type: dtypes.Float32, Buffer: b, Index: tx}),
			},
		},
	}
	fn := &ir.Function{
		Name:   "vecadd",
		Params: []*ir.Var{aDesc, bDesc, cDesc},
		Body:   region,
	}
	args := []BufferArg{
		{Param: aDesc, Buffer: &abi.Buffer{Name: "a", Data: a, Type: dtypes.Float32, Shape: []ir.Expr{n}, Kind: abi.Input}},
		{Param: bDesc, Buffer: &abi.Buffer{Name: "b", Data: b, Type: dtypes.Float32, Shape: []ir.Expr{n}, Kind: abi.Input}},
		{Param: cDesc, Buffer: &abi.Buffer{Name: "c", Data: c, Type: dtypes.Float32, Shape: []ir.Expr{n}, Kind: abi.Output}},
	}
	return fn, args
}

func TestCompileVecAdd(t *testing.T) {
	fn, args := buildVecAdd()
	result, err := Compile(fn, args, Options{Target: codegen.TargetCUDA})
	require.NoError(t, err)

	require.Len(t, result.Kernels, 1)
	require.Len(t, result.KernelSources, 1)
	kernel := result.Kernels[0]
	require.Equal(t, "vecadd_kernel0", kernel.Name)

	// Capture order: inputs a, b and extent n lexicographic, then the
	// store target c.
	names := make([]string, len(kernel.Params))
	for ii, p := range kernel.Params {
		names[ii] = p.Name
	}
	require.Equal(t, []string{"a", "b", "n", "c"}, names)

	// Host entry sequence: dtype assert, shape extraction, data pointers,
	// then the kernel call with arguments in parameter order.
	host := result.HostSource
	require.Contains(t, host, "TypeMismatchError: argument a expected dtype float32")
	require.Contains(t, host, "int32_t n = ((int32_t)tlc_tensor_shape(a_desc, 0));")
	require.Contains(t, host, "void* c = tlc_tensor_data(c_desc);")
	require.Contains(t, host, "vecadd_kernel0(a, b, n, c);")
	// The host file declares the kernel it calls.
	require.Contains(t, host, "void vecadd_kernel0(void*, void*, int32_t, void*);")
	// n is bound by a_desc first; the other descriptors must agree.
	require.Contains(t, host, "ShapeMismatchError: argument b")

	device := result.KernelSources[0]
	require.Contains(t, device, `extern "C" __global__ void vecadd_kernel0(float* a, float* b, int32_t n, float* c)`)
	require.Contains(t, device, "c[tx] = (a[tx] + b[tx]);")
	require.True(t, strings.HasPrefix(device, "#include \"tlc_runtime.cuh\"\n"))
}

func TestCompileDeterministic(t *testing.T) {
	// Bit-identical input must produce bit-identical output, including the
	// kernel parameter order, across repeated compilations.
	var firstHost string
	var firstKernels []string
	for trial := 0; trial < 10; trial++ {
		fn, args := buildVecAdd()
		result, err := Compile(fn, args, Options{Target: codegen.TargetC})
		require.NoError(t, err)
		if trial == 0 {
			firstHost = result.HostSource
			firstKernels = result.KernelSources
			continue
		}
		require.Equal(t, firstHost, result.HostSource)
		require.Equal(t, firstKernels, result.KernelSources)
	}
}

func TestCompileHostOnlyFunction(t *testing.T) {
	n := ir.NewVar("n", dtypes.Int32)
	i := ir.NewVar("i", dtypes.Int32)
	out := ir.NewVar("out", dtypes.Handle)
	outDesc := ir.NewVar("out_desc", dtypes.Handle)
	fn := &ir.Function{
		Name:   "iota",
		Params: []*ir.Var{outDesc},
		Body: &ir.For{LoopVar: i, Extent: n,
			Body: &ir.Store{Buffer: out, Index: i, Value: i}},
	}
	args := []BufferArg{{
		Param:  outDesc,
		Buffer: &abi.Buffer{Name: "out", Data: out, Type: dtypes.Int32, Shape: []ir.Expr{n}, Kind: abi.Output},
	}}
	result, err := Compile(fn, args, Options{Target: codegen.TargetC})
	require.NoError(t, err)
	require.Empty(t, result.Kernels)
	require.Contains(t, result.HostSource, "((int32_t*)out)[i] = i;")
}

func TestCompileConcurrentFunctions(t *testing.T) {
	// Independent functions compile concurrently against one shared
	// registry.
	registry := dtypes.NewRegistry()
	_, err := registry.Register("posit8")
	require.NoError(t, err)

	done := make(chan error, 8)
	for worker := 0; worker < 8; worker++ {
		go func() {
			fn, args := buildVecAdd()
			_, err := Compile(fn, args, Options{Target: codegen.TargetCUDA, Registry: registry})
			done <- err
		}()
	}
	for worker := 0; worker < 8; worker++ {
		require.NoError(t, <-done)
	}
}

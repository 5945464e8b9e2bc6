package codegen

// Target-specific lowering policy. The backend identifier is an opaque token
// supplied by the caller; everything it switches is textual codegen policy,
// never the semantics of the emitted program.

// TargetC is the default plain-C backend.
const TargetC = "c"

// TargetCUDA emits CUDA C++ kernels.
const TargetCUDA = "cuda"

type targetPolicy struct {
	// castScalarPointers wraps scalar buffer references in an element-type
	// pointer cast, e.g. ((float*)a)[i]. Targets with typed kernel
	// parameters suppress the wrapper and emit a[i] directly.
	castScalarPointers bool

	// kernelQualifier prefixes device kernel definitions.
	kernelQualifier string

	// threadIndexExpr, when non-empty, is the expression a thread index
	// variable is bound to; targets without a hardware thread index lower
	// the extent annotation to a serial loop instead.
	threadIndexExpr string

	// preamble is included at the top of a generated source file.
	preamble string

	float16Type  string
	bfloat16Type string
}

func policyFor(target string) targetPolicy {
	switch target {
	case TargetCUDA:
		return targetPolicy{
			castScalarPointers: false,
			kernelQualifier:    `extern "C" __global__ `,
			threadIndexExpr:    "threadIdx.x",
			preamble:           "#include \"tlc_runtime.cuh\"\n",
			float16Type:        "half",
			bfloat16Type:       "__nv_bfloat16",
		}
	default: // TargetC and anything unrecognized lowers as plain C.
		return targetPolicy{
			castScalarPointers: true,
			preamble:           "#include \"tlc_runtime.h\"\n",
			float16Type:        "tlc_float16",
			bfloat16Type:       "tlc_bfloat16",
		}
	}
}

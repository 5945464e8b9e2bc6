// Package compiler is the driver for the tlc boundary layer: it splits a
// function into host and device parts, generates the argument-binding entry
// sequence for the host function, and emits target source for everything.
//
// Compilation of one function is a synchronous sequence of pure passes over
// immutable IR snapshots. Multiple functions may be compiled concurrently;
// the only shared mutable state is the datatype registry, which supports
// concurrent lookups. Kernel sources within one compilation are generated
// concurrently but collected in deterministic (region) order.
package compiler

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/tensorlang/tlc/abi"
	"github.com/tensorlang/tlc/codegen"
	"github.com/tensorlang/tlc/ir"
	"github.com/tensorlang/tlc/transforms/splithost"
	"github.com/tensorlang/tlc/types/dtypes"
)

// BufferArg pairs a declared buffer with the host-function parameter holding
// its runtime tensor descriptor.
type BufferArg struct {
	Param  *ir.Var
	Buffer *abi.Buffer
}

// Options configures one compilation.
type Options struct {
	// Target is the backend identifier for device kernels (codegen.TargetC,
	// codegen.TargetCUDA, ...). The host function always lowers as plain C.
	Target string

	// Registry resolves custom datatypes; nil means dtypes.Global.
	Registry *dtypes.Registry

	// NoLaunchComments disables the inert thread/block extent comments.
	NoLaunchComments bool
}

// Result of compiling one function.
type Result struct {
	// Host is the rewritten host function: argument validation and
	// extraction, then the original body with device regions replaced by
	// kernel calls.
	Host *ir.Function

	// Kernels are the extracted device functions, in region order.
	Kernels []*ir.Function

	// HostSource is standalone C source for the host function.
	HostSource string

	// KernelSources holds one standalone source file per kernel, in the
	// same order as Kernels.
	KernelSources []string
}

// Compile runs the boundary-layer passes on fn: split out device kernels,
// bind the declared buffer arguments, and generate source text. fn is not
// modified.
func Compile(fn *ir.Function, args []BufferArg, opts Options) (*Result, error) {
	session := uuid.NewString()
	klog.V(1).Infof("compile %s: function %q, %d buffer args, target %q",
		session, fn.Name, len(args), opts.Target)

	split, err := splithost.Split(fn)
	if err != nil {
		return nil, err
	}

	// The binder's checks and extractions become the host entry sequence,
	// in declared argument order. One Binder across all arguments, so a
	// symbolic extent shared between buffers binds once and is checked for
	// agreement on the others.
	binder := abi.NewBinder()
	var prologue []ir.Stmt
	for _, arg := range args {
		binding, err := binder.Bind(arg.Buffer, arg.Param)
		if err != nil {
			return nil, errors.Wrapf(err, "binding argument %q of function %q", arg.Buffer.Name, fn.Name)
		}
		prologue = append(prologue, binding.Stmts(arg.Buffer, arg.Param)...)
	}
	host := split.Host
	if len(prologue) > 0 {
		host = &ir.Function{
			Name:   host.Name,
			Params: host.Params,
			Body:   ir.Seq(append(prologue, host.Body)...),
		}
	}

	result := &Result{
		Host:          host,
		Kernels:       split.Kernels,
		KernelSources: make([]string, len(split.Kernels)),
	}
	hostOpts := codegen.Options{
		Target:           codegen.TargetC,
		Registry:         opts.Registry,
		NoLaunchComments: opts.NoLaunchComments,
		Declare:          split.Kernels,
	}
	result.HostSource, err = codegen.Source([]*ir.Function{host}, hostOpts)
	if err != nil {
		return nil, err
	}

	kernelOpts := codegen.Options{
		Target:           opts.Target,
		Registry:         opts.Registry,
		Kernel:           true,
		NoLaunchComments: opts.NoLaunchComments,
	}
	var group errgroup.Group
	for ii, kernel := range split.Kernels {
		ii, kernel := ii, kernel
		group.Go(func() error {
			source, err := codegen.Source([]*ir.Function{kernel}, kernelOpts)
			if err != nil {
				return err
			}
			result.KernelSources[ii] = source
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	klog.V(1).Infof("compile %s: done, %d kernels", session, len(result.Kernels))
	return result, nil
}

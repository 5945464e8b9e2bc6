// Package splithost splits a compiled function into a host function and one
// device kernel function per device-scoped region.
//
// A device region is a statement annotated with ir.AttrDeviceScope. For each
// region the splitter computes the capture set (variables used inside the
// region but not defined by it) with the use-def analyzer, orders it
// deterministically, emits a kernel function taking the ordered captures as
// parameters, and rewrites the host function to call the kernel with the
// arguments in that same order.
//
// The ordering is the load-bearing contract of this package: linkers, cached
// binaries and argument-packing code all rely on the kernel parameter list
// being bit-stable across repeated compilations of identical input, so it is
// produced by an explicit sort and never by map or set iteration order.
package splithost

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/tensorlang/tlc/ir"
)

// Result is the outcome of splitting one function.
type Result struct {
	// Host is the rewritten host function. If the input had no device
	// regions, Host is the input function itself, unchanged.
	Host *ir.Function

	// Kernels holds one extracted device function per region, in the
	// syntactic order the regions appear in the host body.
	Kernels []*ir.Function
}

// Split extracts every device-scoped region of fn into its own kernel
// function. fn is not modified; shared subtrees between fn and the result are
// possible wherever nothing changed.
func Split(fn *ir.Function) (*Result, error) {
	sp := &splitter{hostName: fn.Name}
	body, err := sp.rewrite(fn.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "splitting function %q", fn.Name)
	}
	if len(sp.kernels) == 0 {
		return &Result{Host: fn}, nil
	}
	host := &ir.Function{Name: fn.Name, Params: fn.Params, Body: body}
	return &Result{Host: host, Kernels: sp.kernels}, nil
}

// OrderCaptures returns the capture set of a use-def record in the canonical
// kernel parameter order: variables never seen as a store target first, then
// store targets, lexicographically by name within each group. The two-level
// key makes the order reproducible; it says nothing about true input/output
// semantics.
func OrderCaptures(ud *ir.UseDef) []*ir.Var {
	captures := make([]*ir.Var, len(ud.Undefined))
	copy(captures, ud.Undefined)
	sort.SliceStable(captures, func(i, j int) bool {
		hintI := ud.OutputHints.Has(captures[i])
		hintJ := ud.OutputHints.Has(captures[j])
		if hintI != hintJ {
			return !hintI
		}
		return captures[i].Name < captures[j].Name
	})
	return captures
}

type splitter struct {
	hostName string
	kernels  []*ir.Function
}

// rewrite returns stmt with every device region replaced by a kernel call.
// It returns the original pointer when nothing underneath changed.
func (sp *splitter) rewrite(stmt ir.Stmt) (ir.Stmt, error) {
	switch s := stmt.(type) {
	case nil:
		return nil, nil
	case *ir.AttrStmt:
		if s.Key == ir.AttrDeviceScope {
			return sp.extract(s)
		}
		body, err := sp.rewrite(s.Body)
		if err != nil || body == s.Body {
			return stmt, err
		}
		return &ir.AttrStmt{Key: s.Key, Node: s.Node, Value: s.Value, Body: body}, nil
	case *ir.Block:
		var out []ir.Stmt
		for ii, sub := range s.Stmts {
			rewritten, err := sp.rewrite(sub)
			if err != nil {
				return nil, err
			}
			if out == nil && rewritten != sub {
				out = make([]ir.Stmt, ii, len(s.Stmts))
				copy(out, s.Stmts[:ii])
			}
			if out != nil {
				out = append(out, rewritten)
			}
		}
		if out == nil {
			return stmt, nil
		}
		return &ir.Block{Stmts: out}, nil
	case *ir.For:
		body, err := sp.rewrite(s.Body)
		if err != nil || body == s.Body {
			return stmt, err
		}
		return &ir.For{LoopVar: s.LoopVar, Extent: s.Extent, Body: body}, nil
	default:
		// Leaf statements hold no nested regions.
		return stmt, nil
	}
}

// extract turns one device region into a kernel function and returns the
// host-side call that replaces it. The region body is analyzed on its own:
// a variable appearing only in the region's launch-bound attribute value is
// not a use inside the region and is therefore not captured.
func (sp *splitter) extract(attr *ir.AttrStmt) (ir.Stmt, error) {
	ud := ir.AnalyzeUseDef(attr.Body)
	captures := OrderCaptures(ud)
	for _, v := range captures {
		if !v.Type.Ok() {
			return nil, errors.Errorf("captured variable %q has no concrete type declaration", v.Name)
		}
	}

	name := fmt.Sprintf("%s_kernel%d", sp.hostName, len(sp.kernels))
	kernel := &ir.Function{Name: name, Params: captures, Body: attr.Body}
	sp.kernels = append(sp.kernels, kernel)
	klog.V(2).Infof("extracted kernel %q with %d captured variables", name, len(captures))

	args := make([]ir.Expr, len(captures))
	for ii, v := range captures {
		args[ii] = v
	}
	call := &ir.Call{Name: name, Args: args}
	return &ir.Evaluate{Value: call}, nil
}

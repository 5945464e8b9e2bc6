// tlc is a small driver around the compiler boundary layer: it compiles a
// built-in demo program for a chosen backend target and prints the generated
// host and kernel sources, and it can list the known datatypes.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/tensorlang/tlc/abi"
	"github.com/tensorlang/tlc/compiler"
	"github.com/tensorlang/tlc/ir"
	"github.com/tensorlang/tlc/types/dtypes"
)

func main() {
	klog.InitFlags(nil)
	root := &cobra.Command{
		Use:           "tlc",
		Short:         "tensor-program compiler boundary layer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	root.AddCommand(demoCommand(), dtypesCommand())
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tlc: %+v\n", err)
		os.Exit(1)
	}
}

func demoCommand() *cobra.Command {
	var target string
	var noComments bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "compile the built-in vector-add program and print the generated sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, bufferArgs := demoProgram()
			result, err := compiler.Compile(fn, bufferArgs, compiler.Options{
				Target:           target,
				NoLaunchComments: noComments,
			})
			if err != nil {
				return err
			}
			fmt.Printf("// ==== host ====\n%s\n", result.HostSource)
			for ii, source := range result.KernelSources {
				fmt.Printf("// ==== kernel %s ====\n%s\n", result.Kernels[ii].Name, source)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "cuda", "backend identifier for device kernels (c, cuda)")
	cmd.Flags().BoolVar(&noComments, "no-comments", false, "suppress inert launch-extent comments")
	return cmd
}

func dtypesCommand() *cobra.Command {
	var register []string
	cmd := &cobra.Command{
		Use:   "dtypes",
		Short: "list built-in dtypes and the registered custom datatypes",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range register {
				code, err := dtypes.Register(name)
				if err != nil {
					return err
				}
				fmt.Printf("registered %q as code %d\n", name, code)
			}
			fmt.Println("built-in:")
			for _, dt := range []dtypes.DType{
				dtypes.Bool,
				dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
				dtypes.UInt8, dtypes.UInt16, dtypes.UInt32, dtypes.UInt64,
				dtypes.Float16, dtypes.Float32, dtypes.Float64,
				dtypes.BFloat16, dtypes.Handle,
			} {
				fmt.Printf("  %-10s code=%-3d bits=%d\n", dt, dt.Code(), dt.Bits())
			}
			names := dtypes.Global.Names()
			if len(names) == 0 {
				return nil
			}
			fmt.Println("custom:")
			for _, name := range names {
				code, err := dtypes.TypeCodeOf(name)
				if err != nil {
					return err
				}
				fmt.Printf("  %-10s code=%d\n", name, code)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&register, "register", nil, "register a custom datatype name before listing")
	return cmd
}

// demoProgram builds vecadd: c[i] = a[i] + b[i] over a device region, with
// float32 buffers of symbolic extent n.
func demoProgram() (*ir.Function, []compiler.BufferArg) {
	aDesc := ir.NewVar("a_desc", dtypes.Handle)
	bDesc := ir.NewVar("b_desc", dtypes.Handle)
	cDesc := ir.NewVar("c_desc", dtypes.Handle)
	a := ir.NewVar("a", dtypes.Handle)
	b := ir.NewVar("b", dtypes.Handle)
	c := ir.NewVar("c", dtypes.Handle)
	n := ir.NewVar("n", dtypes.Int32)
	tx := ir.NewVar("tx", dtypes.Int32)

	fn := &ir.Function{
		Name:   "vecadd",
		Params: []*ir.Var{aDesc, bDesc, cDesc},
		Body: &ir.AttrStmt{
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
		},
	}
	mkBuffer := func(name string, data *ir.Var, kind abi.Kind) *abi.Buffer {
		return &abi.Buffer{Name: name, Data: data, Type: dtypes.Float32, Shape: []ir.Expr{n}, Kind: kind}
	}
	return fn, []compiler.BufferArg{
		{Param: aDesc, Buffer: mkBuffer("a", a, abi.Input)},
		{Param: bDesc, Buffer: mkBuffer("b", b, abi.Input)},
		{Param: cDesc, Buffer: mkBuffer("c", c, abi.Output)},
	}
}

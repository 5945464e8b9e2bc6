package ir

import (
	"fmt"
	"strings"
)

// The String methods render a readable, indented form of the IR used in error
// messages and tests. This is not the backend surface syntax; see the codegen
// package for that.

func (v *Var) String() string       { return v.Name }
func (e *IntImm) String() string    { return fmt.Sprintf("%d", e.Value) }
func (e *FloatImm) String() string  { return fmt.Sprintf("%gf", e.Value) }
func (e *StringImm) String() string { return fmt.Sprintf("%q", e.Value) }
func (e *Cast) String() string      { return fmt.Sprintf("%s(%s)", e.Type, e.Value) }

func (e *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", e.A, e.Op, e.B)
}

func (e *Load) String() string {
	return fmt.Sprintf("%s[%s]", e.Buffer, e.Index)
}

func (e *Call) String() string {
	args := make([]string, len(e.Args))
	for ii, arg := range e.Args {
		args[ii] = arg.String()
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(args, ", "))
}

func (s *Block) String() string      { return printStmt(s) }
func (s *LetStmt) String() string    { return printStmt(s) }
func (s *Allocate) String() string   { return printStmt(s) }
func (s *Store) String() string      { return printStmt(s) }
func (s *For) String() string        { return printStmt(s) }
func (s *Evaluate) String() string   { return printStmt(s) }
func (s *AssertStmt) String() string { return printStmt(s) }
func (s *AttrStmt) String() string   { return printStmt(s) }

func printStmt(stmt Stmt) string {
	var sb strings.Builder
	writeStmt(&sb, stmt, 0)
	return sb.String()
}

func writeStmt(sb *strings.Builder, stmt Stmt, indent int) {
	pad := strings.Repeat("  ", indent)
	switch s := stmt.(type) {
	case *Block:
		for _, sub := range s.Stmts {
			writeStmt(sb, sub, indent)
		}
	case *LetStmt:
		fmt.Fprintf(sb, "%slet %s: %s = %s\n", pad, s.Var, s.Var.Type, s.Value)
	case *Allocate:
		fmt.Fprintf(sb, "%sallocate %s: %s[%s]\n", pad, s.Buffer, s.Type, s.Extent)
	case *Store:
		fmt.Fprintf(sb, "%s%s[%s] = %s\n", pad, s.Buffer, s.Index, s.Value)
	case *For:
		fmt.Fprintf(sb, "%sfor %s in [0, %s) {\n", pad, s.LoopVar, s.Extent)
		writeStmt(sb, s.Body, indent+1)
		fmt.Fprintf(sb, "%s}\n", pad)
	case *Evaluate:
		fmt.Fprintf(sb, "%s%s\n", pad, s.Value)
	case *AssertStmt:
		fmt.Fprintf(sb, "%sassert %s, %q\n", pad, s.Cond, s.Message)
	case *AttrStmt:
		fmt.Fprintf(sb, "%s// attr [%s", pad, s.Key)
		if s.Node != nil {
			fmt.Fprintf(sb, " %s", s.Node)
		}
		if s.Value != nil {
			fmt.Fprintf(sb, " = %s", s.Value)
		}
		sb.WriteString("]\n")
		writeStmt(sb, s.Body, indent)
	default:
		fmt.Fprintf(sb, "%s<unknown stmt %T>\n", pad, stmt)
	}
}

// String renders the function header and body.
func (f *Function) String() string {
	var sb strings.Builder
	params := make([]string, len(f.Params))
	for ii, p := range f.Params {
		params[ii] = fmt.Sprintf("%s: %s", p.Name, p.Type)
	}
	fmt.Fprintf(&sb, "fn %s(%s) {\n", f.Name, strings.Join(params, ", "))
	if f.Body != nil {
		writeStmt(&sb, f.Body, 1)
	}
	sb.WriteString("}\n")
	return sb.String()
}

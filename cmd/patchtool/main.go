package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/arc-language/rewriteir/asmexec"
	"github.com/arc-language/rewriteir/internal/diagnostics"
	"github.com/arc-language/rewriteir/internal/testfixture"
	"github.com/arc-language/rewriteir/ir"
	"github.com/arc-language/rewriteir/patch"
	"github.com/arc-language/rewriteir/scope"
)

var root = &cobra.Command{
	Use:   "patchtool",
	Short: "Apply a scope-driven patch plan to an IR module fixture",
}

func main() {
	root.AddCommand(applyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	flagModulePath    string
	flagPlanPath      string
	flagAssemblerPath string
	flagObjcopyPath   string
	flagVerbose       bool
)

func panicOnError(err error) {
	if err != nil {
		panic(err)
	}
}

func applyCmd() *cobra.Command {
	apply := &cobra.Command{
		Use:   "apply",
		Short: "Load a module and a patch plan, apply it, and print the rewritten module",
		RunE:  runApply,
	}

	fs := apply.Flags()
	fs.StringVar(&flagModulePath, "module", "", "Path to a txtar-encoded module fixture")
	panicOnError(apply.MarkFlagRequired("module"))

	fs.StringVar(&flagPlanPath, "plan", "", "Path to a JSON patch plan")
	panicOnError(apply.MarkFlagRequired("plan"))

	fs.StringVar(&flagAssemblerPath, "assembler", "", "Path to an as-compatible assembler binary "+
		"(falls back to $PATCHTOOL_ASSEMBLER, then \"as\")")
	fs.StringVar(&flagObjcopyPath, "objcopy", "", "Path to objcopy (falls back to \"objcopy\")")
	fs.BoolVar(&flagVerbose, "verbose", false, "Dump patch constraints and syntax errors to stderr "+
		"(falls back to $PATCHTOOL_VERBOSE)")

	return apply
}

func runApply(cmd *cobra.Command, args []string) error {
	moduleData, err := readModuleFile(flagModulePath)
	if err != nil {
		return err
	}
	m, err := testfixture.Decode(moduleData)
	if err != nil {
		return fmt.Errorf("decode module: %w", err)
	}

	p, err := loadPlan(flagPlanPath)
	if err != nil {
		return err
	}

	assemblerPath := flagAssemblerPath
	if assemblerPath == "" {
		assemblerPath = env.Str("PATCHTOOL_ASSEMBLER", "as")
	}
	objcopyPath := flagObjcopyPath
	if objcopyPath == "" {
		objcopyPath = "objcopy"
	}
	verbose := flagVerbose || env.Bool("PATCHTOOL_VERBOSE")

	functions := ir.Functions(m)
	driver := patch.NewDriver(m, functions, func() asmexec.Assembler {
		return &asmexec.Exec{AssemblerPath: assemblerPath, ObjcopyPath: objcopyPath}
	}, os.Stderr)
	driver.Verbose = verbose

	for _, entry := range p.Insertions {
		sc, err := scope.Parse(m, entry.Scope)
		if err != nil {
			return fmt.Errorf("parse scope %q: %w", entry.Scope, err)
		}
		driver.RegisterInsert(sc, rawPatch{asm: entry.Asm})
	}

	if err := driver.Apply(); err != nil {
		if se, ok := err.(*asmexec.SyntaxError); ok {
			diagnostics.LogPatchSyntaxError(os.Stderr, "plan", 0, se.Line, se.Column, se.Message, "")
		}
		return fmt.Errorf("apply: %w", err)
	}

	os.Stdout.Write(testfixture.Encode(m))
	return nil
}

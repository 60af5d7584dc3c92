package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/sanity-io/litter"

	"github.com/Batoch/snupl2-compiler/compiler"
)

var options struct {
	Target  string `long:"target" default:"amd64" description:"target architecture (amd64, tac32, tac64)"`
	LibPath string `long:"lib-path" default:"rte" description:"path to the runtime library"`
	Console bool   `long:"console" description:"emit assembly to stdout instead of <file>.s"`
	Exe     bool   `long:"exe" description:"invoke gcc to link an executable"`
	Ast     bool   `long:"ast" description:"dump the AST to <file>.ast"`
	Tac     bool   `long:"tac" description:"dump the three-address code to <file>.tac"`
	Dot     bool   `long:"dot" description:"also write graphviz dumps"`
	RunDot  bool   `long:"run-dot" description:"render graphviz dumps to PDF (implies --dot)"`
}

func main() {
	files, err := flags.Parse(&options)
	if err != nil {
		os.Exit(2)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no input files.")
		os.Exit(2)
	}

	failed := false
	for _, file := range files {
		if err := compileFile(file); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", file, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func compileFile(file string) error {
	fmt.Printf("compiling %s...\n", file)
	src, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	module, err := compiler.CompileToTac(string(src))
	if err != nil {
		return err
	}

	if options.Ast {
		if err := dumpAst(file, module); err != nil {
			return err
		}
	}
	if options.Tac || isTacTarget(options.Target) {
		if err := dumpTac(file, module); err != nil {
			return err
		}
	}
	if isTacTarget(options.Target) {
		return nil
	}
	if options.Target != "amd64" {
		return fmt.Errorf("target %q not available", options.Target)
	}

	var out strings.Builder
	backend := compiler.NewBackendAMD64(&out)
	if err := backend.Emit(module); err != nil {
		return err
	}

	if options.Console {
		fmt.Print(out.String())
		return nil
	}
	asmFile := file + ".s"
	if err := os.WriteFile(asmFile, []byte(out.String()), 0644); err != nil {
		return err
	}
	if options.Exe {
		return runCompile(file, asmFile)
	}
	return nil
}

// isTacTarget reports whether the target is one of the generic IR dump
// targets instead of a native backend.
func isTacTarget(target string) bool {
	return target == "tac32" || target == "tac64"
}

func dumpAst(file string, module *compiler.Scope) error {
	dumper := litter.Options{HidePrivateFields: false, HomePackage: "compiler"}
	out := file + ".ast:\n" + dumper.Sdump(module) + "\n"
	return os.WriteFile(file+".ast", []byte(out), 0644)
}

func dumpTac(file string, module *compiler.Scope) error {
	out := file + ":\n" + compiler.DumpTac(module)
	if err := os.WriteFile(file+".tac", []byte(out), 0644); err != nil {
		return err
	}
	if options.Dot || options.RunDot {
		dotFile := file + ".tac.dot"
		if err := os.WriteFile(dotFile, []byte(tacToDot(module)), 0644); err != nil {
			return err
		}
		if options.RunDot {
			return runDot(dotFile)
		}
	}
	return nil
}

// tacToDot renders every code block as a chain of instruction nodes.
func tacToDot(module *compiler.Scope) string {
	var out strings.Builder
	out.WriteString("digraph IR {\n")
	out.WriteString("  node [fontname=\"Courier New\",fontsize=10,shape=box];\n")
	scopes := make([]*compiler.Scope, 0, len(module.Children())+1)
	scopes = append(scopes, module.Children()...)
	scopes = append(scopes, module)
	for si, scope := range scopes {
		fmt.Fprintf(&out, "  subgraph cluster_%d {\n    label=\"%s\";\n", si, scope.Name())
		prev := ""
		for ii, instr := range scope.CodeBlock().Instrs() {
			id := fmt.Sprintf("n%d_%d", si, ii)
			fmt.Fprintf(&out, "    %s [label=%q];\n", id, instr.String())
			if prev != "" {
				fmt.Fprintf(&out, "    %s -> %s;\n", prev, id)
			}
			prev = id
		}
		out.WriteString("  }\n")
	}
	out.WriteString("}\n")
	return out.String()
}

func runCompile(file, asmFile string) error {
	exe := strings.TrimSuffix(file, ".mod")
	cmd := exec.Command("gcc", "-m64",
		"-L"+options.LibPath+"/amd64",
		"-o", exe, asmFile, "-lsnupl")
	fmt.Printf("  running command '%s'...\n", strings.Join(cmd.Args, " "))
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	return cmd.Run()
}

func runDot(dotFile string) error {
	cmd := exec.Command("dot", "-Tpdf", "-o"+dotFile+".pdf", dotFile)
	fmt.Printf("  running command '%s'...\n", strings.Join(cmd.Args, " "))
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	return cmd.Run()
}

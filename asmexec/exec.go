package asmexec

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/arc-language/rewriteir/abi"
	"github.com/arc-language/rewriteir/ir"
)

// Exec shells out to a real GNU-as-compatible assembler plus objcopy to
// extract raw machine code. No example repo in the corpus shells out to
// an external assembler, so this stays on os/exec (stdlib) rather than
// adopting a process-exec wrapper library (DESIGN.md).
//
// Assemble only buffers text and never fails; the assembler runs in
// Finalize, which returns any *SyntaxError. Its Line counts lines of the
// whole buffered source, including the syntax directive Assemble writes
// before each snippet.
//
// It is intentionally thin: it does not parse the resulting object
// file's symbol table or relocations, only its .text bytes. Symbol and
// CFG extraction for assembled fragments is left to Fake in tests; a
// production assembler front-end would extend Finalize to parse the
// object file's symtab/relocs instead of shelling to objcopy.
type Exec struct {
	// AssemblerPath is the `as`-compatible binary, e.g. "as" or
	// "x86_64-linux-gnu-as". Defaults to "as" if empty.
	AssemblerPath string

	// ObjcopyPath is the binary used to extract raw section bytes.
	// Defaults to "objcopy" if empty.
	ObjcopyPath string

	text strings.Builder
	err  error
}

var lineColRe = regexp.MustCompile(`:(\d+):\s*(?:(\d+):)?\s*(?:Error|error):\s*(.*)`)

func (e *Exec) Assemble(snippet string, syntax abi.Syntax) error {
	if e.err != nil {
		return e.err
	}
	if syntax == abi.SyntaxIntel {
		e.text.WriteString(".intel_syntax noprefix\n")
	} else {
		e.text.WriteString(".att_syntax\n")
	}
	e.text.WriteString(snippet)
	e.text.WriteString("\n")
	return nil
}

func (e *Exec) Finalize() (*Result, error) {
	if e.err != nil {
		return nil, e.err
	}

	asmPath, objPath, err := e.writeAndAssemble()
	if err != nil {
		return nil, err
	}
	defer os.Remove(asmPath)
	defer os.Remove(objPath)

	binPath := objPath + ".bin"
	objcopy := e.ObjcopyPath
	if objcopy == "" {
		objcopy = "objcopy"
	}
	cmd := exec.Command(objcopy, "-O", "binary", "--only-section=.text", objPath, binPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("asmexec: objcopy: %w: %s", err, stderr.String())
	}
	defer os.Remove(binPath)

	data, err := os.ReadFile(binPath)
	if err != nil {
		return nil, fmt.Errorf("asmexec: reading extracted .text: %w", err)
	}

	var blocks []*ir.CodeBlock
	if len(data) > 0 {
		blocks = []*ir.CodeBlock{ir.NewCodeBlock(0, int64(len(data)))}
	}
	return &Result{TextSection: TextSectionResult{Data: data, Blocks: blocks}}, nil
}

func (e *Exec) writeAndAssemble() (asmPath, objPath string, err error) {
	asmFile, err := os.CreateTemp("", "patch-*.s")
	if err != nil {
		return "", "", fmt.Errorf("asmexec: creating temp source: %w", err)
	}
	asmPath = asmFile.Name()
	if _, err := asmFile.WriteString(e.text.String()); err != nil {
		asmFile.Close()
		return "", "", fmt.Errorf("asmexec: writing temp source: %w", err)
	}
	asmFile.Close()

	objPath = asmPath + ".o"
	assembler := e.AssemblerPath
	if assembler == "" {
		assembler = "as"
	}
	cmd := exec.Command(assembler, "-o", objPath, asmPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if runErr := cmd.Run(); runErr != nil {
		if se := parseSyntaxError(stderr.String()); se != nil {
			return "", "", se
		}
		return "", "", fmt.Errorf("asmexec: assemble: %w: %s", runErr, stderr.String())
	}
	return asmPath, objPath, nil
}

// parseSyntaxError extracts a line/column from GNU as's
// "file:LINE: Error: MESSAGE" diagnostic format, or nil if the output
// doesn't match that shape.
func parseSyntaxError(stderr string) *SyntaxError {
	m := lineColRe.FindStringSubmatch(stderr)
	if m == nil {
		return nil
	}
	line, _ := strconv.Atoi(m[1])
	column := 0
	if m[2] != "" {
		column, _ = strconv.Atoi(m[2])
	}
	return &SyntaxError{Line: line, Column: column, Message: strings.TrimSpace(m[3])}
}

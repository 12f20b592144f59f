package asmexec

import (
	"strings"

	"github.com/arc-language/rewriteir/abi"
	"github.com/arc-language/rewriteir/ir"
)

// Fake is an in-memory Assembler test double: rather than invoking a
// real assembler, it encodes each non-blank, non-comment line of
// assembled text through a caller-supplied Encode function, so tests
// can pin down exact byte output without shelling out to anything.
type Fake struct {
	// Encode maps one line of assembly text to its "encoded" bytes.
	// Required.
	Encode func(line string) ([]byte, error)

	lines []string
	err   error
}

// NewFake returns a Fake assembler using encode to turn each line into
// bytes.
func NewFake(encode func(line string) ([]byte, error)) *Fake {
	return &Fake{Encode: encode}
}

func (f *Fake) Assemble(text string, _ abi.Syntax) error {
	if f.err != nil {
		return f.err
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		f.lines = append(f.lines, trimmed)
	}
	return nil
}

func (f *Fake) Finalize() (*Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	var data []byte
	for _, line := range f.lines {
		encoded, err := f.Encode(line)
		if err != nil {
			return nil, err
		}
		data = append(data, encoded...)
	}
	var blocks []*ir.CodeBlock
	if len(data) > 0 {
		blocks = []*ir.CodeBlock{ir.NewCodeBlock(0, int64(len(data)))}
	}
	return &Result{
		TextSection: TextSectionResult{Data: data, Blocks: blocks},
	}, nil
}

package abi

import (
	"fmt"

	"github.com/arc-language/rewriteir/ir"
)

// amd64ABI implements ABI for the System V AMD64 calling convention.
// Register classification follows the teacher's arch/amd64 backend
// (arch/amd64/abi.go's parameter classification, arch/amd64/helpers.go's
// register emission), generalized from "classify a call argument" to
// "classify a register for save/restore purposes".
type amd64ABI struct{}

// AMD64 is the System V AMD64 ABI.
var AMD64 ABI = amd64ABI{}

var (
	reservedRegisters = map[string]bool{"rsp": true, "rbp": true}

	// callerSaved (volatile) registers are offered as scratch first:
	// a patch clobbering one costs nothing a surrounding call wouldn't
	// already risk.
	callerSaved = []string{"rax", "rcx", "rdx", "rsi", "rdi", "r8", "r9", "r10", "r11"}

	// calleeSaved registers are the scratch fallback once callerSaved
	// is exhausted or already spoken for.
	calleeSaved = []string{"rbx", "r12", "r13", "r14", "r15"}
)

const (
	amd64RedZoneSize     = int64(128)
	amd64StackAlignment  = int64(16)
	amd64WordSize        = int64(8)
	amd64EntryAlignDelta = int64(8) // rsp ≡ 8 (mod 16) on function entry, since `call` pushed a return address
)

func (amd64ABI) Name() string { return "sysv-amd64" }

func (a amd64ABI) Synthesize(c Constraints, isLeaf bool) (*Synthesis, error) {
	excluded := map[string]bool{}
	for name := range reservedRegisters {
		excluded[name] = true
	}
	for _, r := range c.PreserveOperands {
		excluded[r] = true
	}
	for _, r := range c.ClobbersRegisters {
		excluded[r] = true
	}

	scratch := make([]string, 0, c.ScratchCount)
	for _, r := range append(append([]string{}, callerSaved...), calleeSaved...) {
		if len(scratch) >= c.ScratchCount {
			break
		}
		if excluded[r] {
			continue
		}
		scratch = append(scratch, r)
		excluded[r] = true
	}
	if len(scratch) < c.ScratchCount {
		return nil, fmt.Errorf("abi: cannot allocate %d scratch register(s), only %d available",
			c.ScratchCount, len(scratch))
	}

	saves := append([]string{}, c.ClobbersRegisters...)
	saves = append(saves, scratch...)
	if c.PreserveCallerSavedRegisters {
		have := map[string]bool{}
		for _, r := range saves {
			have[r] = true
		}
		for _, r := range callerSaved {
			if !have[r] {
				saves = append(saves, r)
			}
		}
	}

	var prologue, epilogue []string
	var adjustment int64

	// A leaf function may keep live data in the 128-byte red zone
	// below rsp without ever adjusting rsp itself. A non-leaf function
	// makes calls and so gets no such guarantee from its own callees;
	// the hint permits skipping this reservation there (spec.md §4.C).
	reserveRedZone := isLeaf && len(saves) > 0
	if reserveRedZone {
		prologue = append(prologue, sub("rsp", amd64RedZoneSize, c.X86Syntax))
		adjustment += amd64RedZoneSize
	}

	for _, r := range saves {
		prologue = append(prologue, push(r, c.X86Syntax))
		adjustment += amd64WordSize
	}
	if c.ClobbersFlags {
		prologue = append(prologue, pushf(c.X86Syntax))
		adjustment += amd64WordSize
	}

	// Entry rsp is 8 mod 16; everything pushed so far (plus the
	// red-zone reservation, a multiple of 16) shifts parity by one word
	// per push. Pad with a single word when that leaves rsp off the
	// 16-byte boundary the body expects.
	paddedForAlignment := false
	if c.AlignStack && (amd64EntryAlignDelta+adjustment)%amd64StackAlignment != 0 {
		prologue = append(prologue, sub("rsp", amd64WordSize, c.X86Syntax))
		adjustment += amd64WordSize
		paddedForAlignment = true
	}

	if paddedForAlignment {
		epilogue = append(epilogue, add("rsp", amd64WordSize, c.X86Syntax))
	}
	if c.ClobbersFlags {
		epilogue = append(epilogue, popf(c.X86Syntax))
	}
	for i := len(saves) - 1; i >= 0; i-- {
		epilogue = append(epilogue, pop(saves[i], c.X86Syntax))
	}
	if reserveRedZone {
		epilogue = append(epilogue, add("rsp", amd64RedZoneSize, c.X86Syntax))
	}

	return &Synthesis{
		Prologue:         prologue,
		Epilogue:         epilogue,
		ScratchRegisters: scratch,
		StackAdjustment:  adjustment,
	}, nil
}

func (amd64ABI) TargetTriple(m *ir.Module) (string, error) {
	var arch string
	switch m.ISA {
	case ir.ISAX64:
		arch = "x86_64"
	case ir.ISAIA32:
		arch = "i386"
	case ir.ISAARM:
		arch = "arm"
	case ir.ISAARM64:
		arch = "arm64"
	default:
		return "", &UnsupportedISAError{ISA: int(m.ISA)}
	}
	var os string
	switch m.FileFormat {
	case ir.FormatELF:
		os = "linux"
	case ir.FormatPE:
		os = "win32"
	default:
		return "", &UnsupportedFileFormatError{FileFormat: int(m.FileFormat)}
	}
	return fmt.Sprintf("%s-pc-%s", arch, os), nil
}

func push(reg string, syntax Syntax) string {
	if syntax == SyntaxIntel {
		return "push " + reg
	}
	return "pushq %" + reg
}

func pop(reg string, syntax Syntax) string {
	if syntax == SyntaxIntel {
		return "pop " + reg
	}
	return "popq %" + reg
}

// pushfq/popfq are spelled the same in both AT&T and Intel syntax.
func pushf(Syntax) string { return "pushfq" }
func popf(Syntax) string  { return "popfq" }

func sub(reg string, n int64, syntax Syntax) string {
	if syntax == SyntaxIntel {
		return fmt.Sprintf("sub %s, %d", reg, n)
	}
	return fmt.Sprintf("subq $%d, %%%s", n, reg)
}

func add(reg string, n int64, syntax Syntax) string {
	if syntax == SyntaxIntel {
		return fmt.Sprintf("add %s, %d", reg, n)
	}
	return fmt.Sprintf("addq $%d, %%%s", n, reg)
}

package abi

import "fmt"

// UnsupportedISAError is raised by TargetTriple when the module's ISA
// has no defined triple (spec.md §7).
type UnsupportedISAError struct {
	ISA int
}

func (e *UnsupportedISAError) Error() string {
	return fmt.Sprintf("abi: unsupported ISA %d", e.ISA)
}

// UnsupportedFileFormatError is raised by TargetTriple when the
// module's file format has no defined OS component.
type UnsupportedFileFormatError struct {
	FileFormat int
}

func (e *UnsupportedFileFormatError) Error() string {
	return fmt.Sprintf("abi: unsupported file format %d", e.FileFormat)
}

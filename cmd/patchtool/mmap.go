package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// readModuleFile reads a module fixture via mmap when possible, falling
// back to a plain read for empty files or platforms/paths where mmap
// isn't available (e.g. a pipe). Module fixtures are read-only for the
// CLI's lifetime, so mapping them avoids a full buffered copy for the
// common case of a large golden fixture passed via --module.
func readModuleFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open module: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat module: %w", err)
	}
	if fi.Size() == 0 {
		return nil, nil
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		// Not every filesystem or file type supports mmap (pipes, some
		// network mounts); fall back to a normal read rather than fail.
		data, readErr := io.ReadAll(f)
		if readErr != nil {
			return nil, fmt.Errorf("read module: %w", readErr)
		}
		return data, nil
	}
	defer unix.Munmap(mapped)

	out := make([]byte, len(mapped))
	copy(out, mapped)
	return out, nil
}

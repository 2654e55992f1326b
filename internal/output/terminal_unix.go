//go:build !windows

package output

import (
	"os"

	"github.com/mattn/go-isatty"
)

// checkIsTerminal reports whether f is a tty that can render colors. A
// dumb terminal counts as no terminal.
func checkIsTerminal(f *os.File) bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

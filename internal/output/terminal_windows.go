//go:build windows

package output

import (
	"os"

	"github.com/mattn/go-isatty"
)

// checkIsTerminal checks if the file is a console or a Cygwin/MSYS pty.
func checkIsTerminal(f *os.File) bool {
	if os.Getenv("WT_SESSION") != "" || os.Getenv("ConEmuANSI") == "ON" {
		return true
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

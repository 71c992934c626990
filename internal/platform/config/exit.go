package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	exitWriter io.Writer = os.Stderr
	exit                 = os.Exit
)

// Exitf reports a startup failure prefixed with the program name and exits
// with code 1. Only command mains call it.
func Exitf(format string, args ...any) {
	fmt.Fprintf(exitWriter, "%s: %s\n", filepath.Base(os.Args[0]), fmt.Sprintf(format, args...))
	exit(1)
}

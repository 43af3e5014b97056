// Package terminal reports whether ml talks to an interactive terminal.
package terminal

import (
	"os"

	"golang.org/x/term"
)

var (
	isTerminal = term.IsTerminal
	getSize    = term.GetSize
)

// IsInteractive reports whether stdin and stdout are both terminals. Pickers
// and confirmations are only shown when it returns true.
func IsInteractive() bool {
	return isTerminal(int(os.Stdin.Fd())) && isTerminal(int(os.Stdout.Fd()))
}

// Width returns the column count of stdout, or fallback when stdout is not
// a terminal.
func Width(fallback int) int {
	width, _, err := getSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}

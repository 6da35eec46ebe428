package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether stdout gets ANSI colors. NO_COLOR wins over
// CLICOLOR_FORCE=1, which wins over CLICOLOR=0 and TTY detection.
func ShouldUseColor() bool {
	switch {
	case os.Getenv("NO_COLOR") != "": // https://no-color.org
		return false
	case envIs("CLICOLOR_FORCE", "1"):
		return true
	case envIs("CLICOLOR", "0"):
		return false
	}
	return isTerminal(os.Stdout)
}

func envIs(key, want string) bool {
	return strings.TrimSpace(os.Getenv(key)) == want
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// IsInteractive reports whether prompts can be shown: both stdin and stdout
// must be terminals.
func IsInteractive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

// Width is the stdout terminal width, or 80 when piped.
func Width() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// TextColumn is the width given to free-text table columns such as labels
// and event names: half the terminal, between 24 and 60.
func TextColumn() int {
	return min(max(Width()/2, 24), 60)
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	switch {
	case n <= 0 || len(r) <= n:
		return s
	case n == 1:
		return "…"
	}
	return string(r[:n-1]) + "…"
}

package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

func TestShouldUseColor(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"NoColor", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"Forced", map[string]string{"NO_COLOR": "", "CLICOLOR_FORCE": "1"}, true},
		{"Disabled", map[string]string{"NO_COLOR": "", "CLICOLOR_FORCE": "", "CLICOLOR": "0"}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(); got != tc.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	prev := noColor
	t.Cleanup(func() { noColor = prev })

	noColor = false
	if got := RenderStatus(model.BookingScheduled); !strings.Contains(got, "\x1b[38;5;114m") {
		t.Errorf("scheduled should be green, got %q", got)
	}
	if got := RenderGroup(model.GroupSystem); !strings.Contains(got, "\x1b[38;5;245m") {
		t.Errorf("system group should be muted, got %q", got)
	}
	if got := RenderStatus("weird"); got != "weird" {
		t.Errorf("unknown status should be plain, got %q", got)
	}

	ForceNoColor()
	if got := RenderError("boom"); got != "boom" {
		t.Errorf("RenderError with color disabled = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	for _, tc := range []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 6, "hello…"},
		{"héllo", 3, "hé…"},
		{"hello", 1, "…"},
		{"hello", 0, "hello"},
	} {
		if got := Truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestTextColumn_Piped(t *testing.T) {
	if isTerminal(os.Stdout) {
		t.Skip("stdout is a terminal")
	}
	if got := TextColumn(); got != 40 {
		t.Errorf("TextColumn() = %d, want 40 for piped output", got)
	}
}

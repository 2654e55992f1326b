package output

import (
	"testing"
)

func TestColorSchemes(t *testing.T) {
	for name, scheme := range map[string]*ColorScheme{
		"default": DefaultColorScheme(),
		"none":    NoColorScheme(),
		"forced":  ForcedColorScheme(),
	} {
		for i, c := range scheme.all() {
			if c == nil {
				t.Errorf("%s scheme color %d should not be nil", name, i)
			}
		}
	}

	if got := NoColorScheme().Pass.Sprint("ok"); got != "ok" {
		t.Errorf("NoColorScheme().Pass.Sprint() = %q, want plain text", got)
	}
	if got := ForcedColorScheme().Pass.Sprint("ok"); got == "ok" {
		t.Error("ForcedColorScheme().Pass.Sprint() should contain escape codes")
	}
}

func TestIcons(t *testing.T) {
	if SuccessIcon(true) != "✓" {
		t.Errorf("SuccessIcon(true) = %q", SuccessIcon(true))
	}
	if ErrorIcon(true) != "✗" {
		t.Errorf("ErrorIcon(true) = %q", ErrorIcon(true))
	}
	if WarningIcon(true) != "⚠" {
		t.Errorf("WarningIcon(true) = %q", WarningIcon(true))
	}

	if SuccessIcon(false) == "" || ErrorIcon(false) == "" || WarningIcon(false) == "" {
		t.Error("colored icons should not be empty")
	}
}

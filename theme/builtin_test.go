package theme

import "testing"

func TestDefaultParsesEveryRule(t *testing.T) {
	th, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if len(th.Scopes) != len(builtinPalette) {
		t.Fatalf("got %d scopes, want %d", len(th.Scopes), len(builtinPalette))
	}
	if th.Settings.Background == nil {
		t.Fatalf("expected a background color in the builtin theme settings")
	}
}

func TestDefaultCommentIsItalic(t *testing.T) {
	th, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	for _, item := range th.Scopes {
		if item.Name == "comment" {
			if item.Style.FontStyle == nil || !item.Style.FontStyle.Has(Italic) {
				t.Fatalf("expected comment rule to be italic")
			}
			return
		}
	}
	t.Fatalf("no comment rule found in builtin theme")
}

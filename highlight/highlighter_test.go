package highlight

import (
	"testing"

	syntax "github.com/friedelschoen/go-syntax"
	"github.com/friedelschoen/go-syntax/theme"
)

func mustScope(t *testing.T, s string) syntax.Scope {
	t.Helper()
	sc, err := syntax.NewScope(s)
	if err != nil {
		t.Fatalf("NewScope(%q): %v", s, err)
	}
	return sc
}

func mustSelectors(t *testing.T, s string) syntax.ScopeSelectors {
	t.Helper()
	sel, err := syntax.ParseScopeSelectors(s)
	if err != nil {
		t.Fatalf("ParseScopeSelectors(%q): %v", s, err)
	}
	return sel
}

func testTheme(t *testing.T) *theme.Theme {
	red := theme.Color{R: 0xFF, A: 0xFF}
	green := theme.Color{G: 0xFF, A: 0xFF}
	bold := theme.Bold
	return &theme.Theme{
		Settings: theme.ThemeSettings{},
		Scopes: []theme.ThemeItem{
			{Name: "string", Scope: mustSelectors(t, "string"), Style: theme.StyleModifier{Foreground: &red}},
			{Name: "string.quoted.double", Scope: mustSelectors(t, "string.quoted.double"), Style: theme.StyleModifier{Foreground: &green, FontStyle: &bold}},
		},
	}
}

func TestHighlighterStyleForStackPicksDeeperSingleSelector(t *testing.T) {
	h := NewHighlighter(testTheme(t))
	stack := []syntax.Scope{mustScope(t, "string.quoted.double")}
	style := h.StyleForStack(stack)
	if style.Foreground != (theme.Color{G: 0xFF, A: 0xFF}) {
		t.Fatalf("expected deeper selector (string.quoted.double) to win, got %+v", style.Foreground)
	}
	if !style.FontStyle.Has(theme.Bold) {
		t.Fatalf("expected bold font style")
	}
}

func TestHighlighterStyleForStackFallsBackToShallowerSelector(t *testing.T) {
	h := NewHighlighter(testTheme(t))
	stack := []syntax.Scope{mustScope(t, "string.quoted.single")}
	style := h.StyleForStack(stack)
	if style.Foreground != (theme.Color{R: 0xFF, A: 0xFF}) {
		t.Fatalf("expected shallower 'string' selector to apply, got %+v", style.Foreground)
	}
}

func TestHighlightSplitsTextIntoScoredSpans(t *testing.T) {
	h := NewHighlighter(testTheme(t))
	state := NewHighlightState(h, syntax.NewScopeStack())

	stringScope := mustScope(t, "string.quoted.double")
	changes := []syntax.ParseOp{
		{Offset: 4, Op: syntax.PushOp(stringScope)},
		{Offset: 8, Op: syntax.PopOp(1)},
	}
	text := `x = "hi"`

	spans := Highlight(state, h, changes, text)
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2: %+v", len(spans), spans)
	}
	if spans[0].Text != "x = " || spans[0].Style.Foreground != h.GetDefault().Foreground {
		t.Fatalf("got span[0] %+v", spans[0])
	}
	if spans[1].Text != `"hi"` || spans[1].Style.Foreground != (theme.Color{G: 0xFF, A: 0xFF}) {
		t.Fatalf("got span[1] %+v", spans[1])
	}
}

func TestHighlightDropsZeroWidthSpans(t *testing.T) {
	h := NewHighlighter(testTheme(t))
	state := NewHighlightState(h, syntax.NewScopeStack())

	stringScope := mustScope(t, "string")
	changes := []syntax.ParseOp{
		{Offset: 0, Op: syntax.PushOp(stringScope)},
		{Offset: 0, Op: syntax.PopOp(1)},
	}
	spans := Highlight(state, h, changes, "")
	if len(spans) != 0 {
		t.Fatalf("expected no spans for an empty line, got %+v", spans)
	}
}

func TestHighlightStopsOnScopeStackError(t *testing.T) {
	h := NewHighlighter(testTheme(t))
	state := NewHighlightState(h, syntax.NewScopeStack())

	stringScope := mustScope(t, "string")
	changes := []syntax.ParseOp{
		{Offset: 0, Op: syntax.PushOp(stringScope)},
		// RestoreOp with nothing cleared errors: apply_with_hook discards
		// this step entirely, including the "hello" text that ends at it,
		// so no span at all is produced.
		{Offset: 5, Op: syntax.RestoreOp()},
		{Offset: 10, Op: syntax.PopOp(1)},
	}
	spans := Highlight(state, h, changes, "hello oops more")

	if len(spans) != 0 {
		t.Fatalf("expected highlighting to stop at the erroring op with no spans, got %+v", spans)
	}
	if state.Path.Len() != 1 {
		t.Fatalf("expected the scope pushed before the error to remain, got stack len %d", state.Path.Len())
	}
}

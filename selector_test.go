package syntax

import "testing"

func TestScopeSelectorsDoesMatch(t *testing.T) {
	sels, err := ParseScopeSelectors("a.b, a e.f - c k, e.f - a.b")
	if err != nil {
		t.Fatal(err)
	}
	if len(sels.Selectors) != 3 {
		t.Fatalf("expected 3 selectors, got %d", len(sels.Selectors))
	}
	stack, err := ParseScopeStack("a.b c.d j e.f")
	if err != nil {
		t.Fatal(err)
	}
	score, ok := sels.DoesMatch(stack.AsSlice())
	if !ok || score != MatchPower(0o2001) {
		t.Fatalf("got (%v,%v), want (0o2001,true)", score, ok)
	}
}

func TestScopeSelectorsNoMatch(t *testing.T) {
	sels, err := ParseScopeSelectors("source")
	if err != nil {
		t.Fatal(err)
	}
	stack, _ := ParseScopeStack("string.quoted")
	if _, ok := sels.DoesMatch(stack.AsSlice()); ok {
		t.Fatalf("expected no match")
	}
}

func TestScopeSelectorsEmptyMatchesEverything(t *testing.T) {
	sels, err := ParseScopeSelectors("")
	if err != nil {
		t.Fatal(err)
	}
	stack, _ := ParseScopeStack("anything.at.all")
	score, ok := sels.DoesMatch(stack.AsSlice())
	if !ok || score != MatchPower(1) {
		t.Fatalf("got (%v,%v), want (1,true)", score, ok)
	}
}

func TestParseScopeSelectorExclude(t *testing.T) {
	sels, err := ParseScopeSelectors("source.php meta.preprocessor - string.quoted, source string")
	if err != nil {
		t.Fatal(err)
	}
	if len(sels.Selectors) != 2 {
		t.Fatalf("expected 2 selectors, got %d", len(sels.Selectors))
	}
	first := sels.Selectors[0]
	if first.exclude == nil {
		t.Fatalf("expected an exclude stack on the first selector")
	}
}

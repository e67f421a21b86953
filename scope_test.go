package syntax

import "testing"

func TestRepositoryBuildAndString(t *testing.T) {
	repo := NewRepository()

	a, err := repo.Build("source.php")
	if err != nil {
		t.Fatal(err)
	}
	b, err := repo.Build("source.php")
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Fatalf("expected equal scopes for repeated build")
	}

	empty, _ := repo.Build("")
	if repo.String(empty) != "" {
		t.Fatalf("expected empty string for zero scope")
	}

	trimmed, _ := repo.Build("comment.line.")
	plain, _ := repo.Build("comment.line")
	if !trimmed.Equal(plain) {
		t.Fatalf("expected trailing dot to be trimmed")
	}

	wow, _ := repo.Build("source.php.wow")
	if repo.String(wow) != "source.php.wow" {
		t.Fatalf("got %q", repo.String(wow))
	}
}

func TestBuildTooManyAtoms(t *testing.T) {
	repo := NewRepository()
	if _, err := repo.Build("1.2.3.4.5.6.7.8"); err != nil {
		t.Fatalf("8 atoms should be legal: %v", err)
	}
	if _, err := repo.Build("1.2.3.4.5.6.7.8.9"); err == nil {
		t.Fatalf("expected error for 9 atoms")
	}
}

func TestIsPrefixOf(t *testing.T) {
	repo := NewRepository()
	mustBuild := func(s string) Scope {
		sc, err := repo.Build(s)
		if err != nil {
			t.Fatal(err)
		}
		return sc
	}

	cases := []struct {
		prefix, full string
		want         bool
	}{
		{"1.2.3.4.5.6.7.8", "1.2.3.4.5.6.7.8", true},
		{"1.2.3.4.5.6", "1.2.3.4.5.6.7.8", true},
		{"string", "string.quoted", true},
		{"string.quoted", "string.quoted", true},
		{"", "meta.rails.controller", true},
		{"source.php", "source", false},
		{"source.php", "source.ruby", false},
		{"meta.php", "source.php", false},
		{"meta.php", "source.php.wow", false},
	}
	for _, c := range cases {
		if got := mustBuild(c.prefix).IsPrefixOf(mustBuild(c.full)); got != c.want {
			t.Errorf("%q.IsPrefixOf(%q) = %v, want %v", c.prefix, c.full, got, c.want)
		}
	}
}

func TestScopeStackApplyClearRestore(t *testing.T) {
	st := NewScopeStack()
	a, _ := NewScope("a")
	b, _ := NewScope("b")
	c, _ := NewScope("c")

	var hooks []BasicOp
	hook := func(op BasicOp) { hooks = append(hooks, op) }

	must(t, st.ApplyWithHook(PushOp(a), hook))
	must(t, st.ApplyWithHook(PushOp(b), hook))
	must(t, st.ApplyWithHook(PushOp(c), hook))

	must(t, st.ApplyWithHook(ClearTopNOp(2), hook))
	if st.Len() != 1 {
		t.Fatalf("expected stack len 1 after clearing top 2, got %d", st.Len())
	}

	must(t, st.ApplyWithHook(RestoreOp(), hook))
	if st.Len() != 3 {
		t.Fatalf("expected stack len 3 after restore, got %d", st.Len())
	}
	if !st.AsSlice()[1].Equal(b) || !st.AsSlice()[2].Equal(c) {
		t.Fatalf("restore did not reproduce cleared contents")
	}

	if err := st.Apply(RestoreOp()); err == nil {
		t.Fatalf("expected ErrNoClearedFrames on empty clear stack")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestDoesMatchScoring(t *testing.T) {
	sel, err := ParseScopeStack("a.b c e.f")
	if err != nil {
		t.Fatal(err)
	}
	stack, err := ParseScopeStack("a.b c.d e.f.g")
	if err != nil {
		t.Fatal(err)
	}
	score, ok := sel.DoesMatch(stack.AsSlice())
	if !ok || score != MatchPower(0o212) {
		t.Fatalf("got (%v,%v), want (0o212,true)", score, ok)
	}

	sel2, _ := ParseScopeStack("a c.d.e")
	if _, ok := sel2.DoesMatch(stack.AsSlice()); ok {
		t.Fatalf("expected no match")
	}
}

package syntax

import "testing"

func mustScopeStr(t *testing.T, s string) Scope {
	t.Helper()
	sc, err := NewScope(s)
	if err != nil {
		t.Fatalf("NewScope(%q): %v", s, err)
	}
	return sc
}

func TestLoadSyntaxMinimal(t *testing.T) {
	def, err := LoadSyntaxFromBytes([]byte("name: C\nscope: source.c\ncontexts: {main: []}"), false, "")
	if err != nil {
		t.Fatalf("LoadSyntaxFromBytes: %v", err)
	}
	if def.Name != "C" {
		t.Fatalf("got name %q", def.Name)
	}
	if !def.Scope.Equal(mustScopeStr(t, "source.c")) {
		t.Fatalf("got scope %q", def.Scope.String())
	}
	if len(def.FileExtensions) != 0 {
		t.Fatalf("expected no file extensions, got %v", def.FileExtensions)
	}
	if def.Hidden {
		t.Fatalf("expected hidden false")
	}
	if len(def.Variables) != 0 {
		t.Fatalf("expected no variables")
	}
}

func TestLoadSyntaxMissingMainErrors(t *testing.T) {
	_, err := LoadSyntaxFromBytes([]byte("scope: source.x\ncontexts: {other: []}"), false, "")
	if err != ErrMainMissing {
		t.Fatalf("got err %v, want ErrMainMissing", err)
	}
}

const fullDoc = `
name: C
scope: source.c
file_extensions: [c, h]
hidden: true
variables:
  ident: '[QY]+'
contexts:
  prototype:
    - match: lol
      scope: source.php
  main:
    - match: \b(if|else|for|while|{{ident}})\b
      scope: keyword.control.c keyword.looping.c
      captures:
          1: meta.preprocessor.c++
          2: keyword.control.include.c++
      push: [string, 'scope:source.c#main', 'CSS.sublime-syntax#rule-list-body']
      with_prototype:
        - match: wow
          pop: true
    - match: '"'
      push: string
  string:
    - meta_scope: string.quoted.double.c
    - meta_include_prototype: false
    - match: \\.
      scope: constant.character.escape.c
    - match: '"'
      pop: true
`

func TestLoadSyntaxFull(t *testing.T) {
	def, err := LoadSyntaxFromBytes([]byte(fullDoc), false, "")
	if err != nil {
		t.Fatalf("LoadSyntaxFromBytes: %v", err)
	}
	if def.Name != "C" {
		t.Fatalf("got name %q", def.Name)
	}
	topLevelScope := mustScopeStr(t, "source.c")
	if !def.Scope.Equal(topLevelScope) {
		t.Fatalf("got scope %q", def.Scope.String())
	}
	if want := []string{"c", "h"}; len(def.FileExtensions) != len(want) ||
		def.FileExtensions[0] != want[0] || def.FileExtensions[1] != want[1] {
		t.Fatalf("got extensions %v", def.FileExtensions)
	}
	if !def.Hidden {
		t.Fatalf("expected hidden true")
	}
	if def.Variables["ident"] != "[QY]+" {
		t.Fatalf("got variable ident=%q", def.Variables["ident"])
	}

	main := def.Contexts["main"]
	if main == nil {
		t.Fatalf("missing main context")
	}
	if len(main.MetaContentScope) != 1 || !main.MetaContentScope[0].Equal(topLevelScope) {
		t.Fatalf("expected main.MetaContentScope == [source.c], got %v", main.MetaContentScope)
	}
	if len(main.MetaScope) != 0 {
		t.Fatalf("expected main.MetaScope empty, got %v", main.MetaScope)
	}
	if !main.MetaIncludePrototype {
		t.Fatalf("expected main.MetaIncludePrototype true")
	}

	str := def.Contexts["string"]
	if str == nil {
		t.Fatalf("missing string context")
	}
	if len(str.MetaScope) != 1 || !str.MetaScope[0].Equal(mustScopeStr(t, "string.quoted.double.c")) {
		t.Fatalf("got string.MetaScope %v", str.MetaScope)
	}

	first, ok := main.Patterns[0].(*MatchPattern)
	if !ok {
		t.Fatalf("expected main's first pattern to be a MatchPattern")
	}
	if len(first.Captures) != 2 {
		t.Fatalf("got %d captures, want 2", len(first.Captures))
	}
	if first.Captures[0].Index != 1 || !first.Captures[0].Scopes[0].Equal(mustScopeStr(t, "meta.preprocessor.c++")) {
		t.Fatalf("got capture[0] %+v", first.Captures[0])
	}
	if first.Operation.Kind != MatchOpPush || len(first.Operation.Contexts) != 3 {
		t.Fatalf("got operation %+v", first.Operation)
	}
	if first.Operation.Contexts[0].Kind != RefNamed || first.Operation.Contexts[0].Name != "string" {
		t.Fatalf("got push[0] %+v", first.Operation.Contexts[0])
	}
	if first.Operation.Contexts[1].Kind != RefByScope || first.Operation.Contexts[1].SubContext != "main" {
		t.Fatalf("got push[1] %+v", first.Operation.Contexts[1])
	}
	if first.Operation.Contexts[2].Kind != RefFile || first.Operation.Contexts[2].Name != "CSS" ||
		first.Operation.Contexts[2].SubContext != "rule-list-body" {
		t.Fatalf("got push[2] %+v", first.Operation.Contexts[2])
	}
	if first.WithPrototype == nil || len(first.WithPrototype.Patterns) != 1 {
		t.Fatalf("expected with_prototype with one pattern")
	}
	if len(first.Scope) != 2 ||
		!first.Scope[0].Equal(mustScopeStr(t, "keyword.control.c")) ||
		!first.Scope[1].Equal(mustScopeStr(t, "keyword.looping.c")) {
		t.Fatalf("got scope %v", first.Scope)
	}
	// {{ident}} must have been substituted into the compiled regex string.
	if want := `\b(if|else|for|while|[QY]+)\b`; first.RegexStr != want {
		t.Fatalf("got regex %q, want %q", first.RegexStr, want)
	}
}

func TestLoadSyntaxInjectsStartAndMainContexts(t *testing.T) {
	def, err := LoadSyntaxFromBytes([]byte(fullDoc), false, "")
	if err != nil {
		t.Fatalf("LoadSyntaxFromBytes: %v", err)
	}
	ss := NewSyntaxSet()
	ss.AddSyntax(def)
	ss.Link()

	topLevelScope := mustScopeStr(t, "source.c")

	start := def.Contexts["__start"]
	if start == nil {
		t.Fatalf("missing __start context")
	}
	if len(start.MetaContentScope) != 1 || !start.MetaContentScope[0].Equal(topLevelScope) {
		t.Fatalf("got __start.MetaContentScope %v", start.MetaContentScope)
	}

	wrap := def.Contexts["__main"]
	if wrap == nil {
		t.Fatalf("missing __main context")
	}
	if len(wrap.MetaContentScope) != 0 {
		t.Fatalf("expected __main.MetaContentScope empty (inherited before injection), got %v", wrap.MetaContentScope)
	}
}

func TestRewriteRegexRewritesBareNewline(t *testing.T) {
	got := rewriteRegex(`foo\n`)
	if want := "foo$"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRewriteRegexLeavesEscapedQuestionAlone(t *testing.T) {
	got := rewriteRegex(`foo\n?`)
	if want := `foo\n?`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRewriteRegexWrapsNewlineMatchingClass(t *testing.T) {
	got := rewriteRegex(`[a\n]+`)
	if want := `(?:[a\n]|$)+`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRewriteRegexLeavesNegatedClassAlone(t *testing.T) {
	// A negated class containing \n does not match \n, so it is left as is.
	got := rewriteRegex(`[^a\n]+`)
	if want := `[^a\n]+`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRewriteRegexSkipsWhenNoLiteralNewline(t *testing.T) {
	got := rewriteRegex(`foo(bar)+`)
	if want := `foo(bar)+`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLoadSyntaxPopBackrefDetected(t *testing.T) {
	doc := `
scope: source.heredoc
contexts:
  main:
    - match: <<-(\w+)
      push: body
  body:
    - match: ^\1$
      pop: true
`
	def, err := LoadSyntaxFromBytes([]byte(doc), false, "heredoc")
	if err != nil {
		t.Fatalf("LoadSyntaxFromBytes: %v", err)
	}
	body := def.Contexts["body"]
	pop := body.Patterns[0].(*MatchPattern)
	if !pop.HasCaptures {
		t.Fatalf("expected pop pattern with \\1 to have HasCaptures true")
	}
	if !body.UsesBackrefs {
		t.Fatalf("expected body.UsesBackrefs true")
	}

	push := def.Contexts["main"].Patterns[0].(*MatchPattern)
	if push.HasCaptures {
		t.Fatalf("push patterns never carry HasCaptures")
	}
}

// TestLoadSyntaxEmbedDesugarsWithEscapeAndWithPrototype mirrors
// can_parse_embed_as_with_prototypes: embed:/embed_scope:/escape: must
// desugar to the same shape as writing the push-of-two-contexts and the
// with_prototype lookahead out by hand.
func TestLoadSyntaxEmbedDesugarsWithEscapeAndWithPrototype(t *testing.T) {
	doc := `
name: C
scope: source.c
contexts:
  main:
    - match: '(>)\s*'
      captures:
        1: meta.tag.style.begin.html punctuation.definition.tag.end.html
      embed: scope:source.css
      embed_scope: source.css.embedded.html
      escape: (?i)(?=</style)
`
	def, err := LoadSyntaxFromBytes([]byte(doc), false, "")
	if err != nil {
		t.Fatalf("LoadSyntaxFromBytes: %v", err)
	}
	main := def.Contexts["main"].Patterns[0].(*MatchPattern)

	if main.Operation.Kind != MatchOpPush || len(main.Operation.Contexts) != 2 {
		t.Fatalf("got operation %+v", main.Operation)
	}
	escCtxRef := main.Operation.Contexts[0]
	if escCtxRef.Kind != RefInline || escCtxRef.Inline == nil {
		t.Fatalf("expected push[0] to be an inline escape context, got %+v", escCtxRef)
	}
	if len(escCtxRef.Inline.MetaContentScope) != 1 ||
		!escCtxRef.Inline.MetaContentScope[0].Equal(mustScopeStr(t, "source.css.embedded.html")) {
		t.Fatalf("got embed escape context MetaContentScope %v", escCtxRef.Inline.MetaContentScope)
	}
	if len(escCtxRef.Inline.Patterns) != 1 {
		t.Fatalf("expected embed escape context to carry one pop pattern")
	}
	escPop := escCtxRef.Inline.Patterns[0].(*MatchPattern)
	if escPop.Operation.Kind != MatchOpPop {
		t.Fatalf("expected embed escape context's pattern to pop")
	}

	embedTarget := main.Operation.Contexts[1]
	if embedTarget.Kind != RefByScope || !embedTarget.TargetScope.Equal(mustScopeStr(t, "source.css")) {
		t.Fatalf("got push[1] %+v", embedTarget)
	}

	// The pusher's own with_prototype must also carry the escape lookahead,
	// independently of the inline escape context embed's desugaring pushed.
	if main.WithPrototype == nil || len(main.WithPrototype.Patterns) != 1 {
		t.Fatalf("expected with_prototype with one lookahead pop pattern, got %+v", main.WithPrototype)
	}
	protoPat := main.WithPrototype.Patterns[0].(*MatchPattern)
	if protoPat.Operation.Kind != MatchOpPop {
		t.Fatalf("expected with_prototype pattern to pop")
	}
	if want := "(?=(?i)(?=</style))"; protoPat.RegexStr != want {
		t.Fatalf("got with_prototype regex %q, want %q", protoPat.RegexStr, want)
	}
}

func TestLoadSyntaxEmbedWithoutEscapeErrors(t *testing.T) {
	doc := `
scope: source.c
contexts:
  main:
    - match: '(>)\s*'
      embed: scope:source.css
`
	_, err := LoadSyntaxFromBytes([]byte(doc), false, "")
	if err == nil {
		t.Fatalf("expected an error for embed: without escape:")
	}
}

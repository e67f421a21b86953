package syntax

import "github.com/friedelschoen/go-syntax/regexp"

// startContextName and mainContextName are the synthetic contexts injected
// into every grammar at load time so that the top-level scope is pushed
// exactly once and the main context's own prototype never pops it.
const (
	startContextName = "__start"
	mainContextName  = "__main"
)

// injectStartContexts adds the __start/__main wrapper contexts to def if
// they are not already present, and arranges for the grammar's top-level
// scope to be pushed exactly once per parse. __start has no prototype and
// a single zero-width pattern that pushes __main; __main just includes
// "main". __start carries the grammar's scope as its own
// meta_content_scope, which ParseState.ParseLine pushes as the very first
// op; __main instead inherits whatever meta_scope/meta_content_scope
// "main" had at injection time (ordinarily none), and "main" itself gets
// the grammar's scope prepended to its own meta_content_scope so that a
// different grammar embedding this one by pushing its "main" context
// directly (bypassing __start) still carries the file scope. Idempotent,
// and requires def.Contexts["main"] to already exist.
func injectStartContexts(def *SyntaxDefinition) {
	if def.Contexts == nil {
		def.Contexts = make(map[string]*Context)
	}
	main, ok := def.Contexts["main"]
	if !ok {
		panic("syntax: grammar has no \"main\" context")
	}

	if _, ok := def.Contexts[startContextName]; !ok {
		mainRef := &ContextReference{Kind: RefNamed, Name: mainContextName}
		start := &Context{
			Name:                 startContextName,
			MetaIncludePrototype: false,
			MetaContentScope:     []Scope{def.Scope},
			Patterns: []Pattern{
				&MatchPattern{
					RegexStr: "",
					Operation: MatchOperation{
						Kind:     MatchOpPush,
						Contexts: []ContextReference{*mainRef},
					},
				},
			},
		}
		def.Contexts[startContextName] = start
	}
	if _, ok := def.Contexts[mainContextName]; !ok {
		wrap := &Context{
			Name:                 mainContextName,
			MetaIncludePrototype: main.MetaIncludePrototype,
			MetaScope:            append([]Scope(nil), main.MetaScope...),
			MetaContentScope:     append([]Scope(nil), main.MetaContentScope...),
			Patterns: []Pattern{
				&IncludePattern{Ref: &ContextReference{Kind: RefNamed, Name: "main"}},
			},
		}
		def.Contexts[mainContextName] = wrap
		main.MetaContentScope = append([]Scope{def.Scope}, main.MetaContentScope...)
	}
}

// SyntaxSet owns a collection of grammars and performs the cross-grammar
// linking that replaces symbolic ContextReferences with Direct pointers.
// Mutation (AddSyntax) invalidates linkage; Link must be called again
// before parsing.
type SyntaxSet struct {
	Syntaxes []*SyntaxDefinition
	linked   bool
}

// NewSyntaxSet returns an empty set. It does not contain the plain-text
// fallback grammar; call AddPlainTextSyntax to add it.
func NewSyntaxSet() *SyntaxSet {
	return &SyntaxSet{}
}

// AddSyntax registers def and marks the set as needing relinking.
func (ss *SyntaxSet) AddSyntax(def *SyntaxDefinition) {
	injectStartContexts(def)
	ss.Syntaxes = append(ss.Syntaxes, def)
	ss.linked = false
}

// AddPlainTextSyntax adds a builtin grammar with no highlighting rules,
// used as the fallback when no real syntax matches a file. Mirrors the
// "Plain Text" .tmLanguage syntax bundled by the system this module is
// compatible with, expressed directly instead of loaded from a file.
func (ss *SyntaxSet) AddPlainTextSyntax() {
	scope, _ := NewScope("text.plain")
	def := &SyntaxDefinition{
		Name:           "Plain Text",
		FileExtensions: []string{"txt"},
		Scope:          scope,
		Contexts: map[string]*Context{
			"main": NewContext("main"),
		},
	}
	ss.AddSyntax(def)
}

// IsLinked reports whether Link has been run since the last AddSyntax.
func (ss *SyntaxSet) IsLinked() bool { return ss.linked }

// Link resolves every ContextReference in every grammar into Direct
// pointers and wires up prototype overlays. Idempotent: relinking an
// already-linked set is a no-op save for the wasted pass.
func (ss *SyntaxSet) Link() {
	for _, def := range ss.Syntaxes {
		if proto, ok := def.Contexts["prototype"]; ok {
			def.Prototype = proto
		}
		for _, ctx := range def.Contexts {
			if ctx.MetaIncludePrototype && def.Prototype != nil && ctx != def.Prototype {
				ctx.Prototype = def.Prototype
			}
		}
	}
	visited := make(map[*Context]bool)
	for _, def := range ss.Syntaxes {
		for _, ctx := range def.Contexts {
			ss.linkContext(def, ctx, visited)
		}
	}
	ss.linked = true
}

func (ss *SyntaxSet) linkContext(def *SyntaxDefinition, ctx *Context, visited map[*Context]bool) {
	if visited[ctx] {
		return
	}
	visited[ctx] = true
	for _, pat := range ctx.Patterns {
		switch p := pat.(type) {
		case *MatchPattern:
			ss.linkMatchPattern(def, p, visited)
		case *IncludePattern:
			ss.linkRef(def, p.Ref, visited)
		}
	}
}

func (ss *SyntaxSet) linkMatchPattern(def *SyntaxDefinition, pat *MatchPattern, visited map[*Context]bool) {
	if pat.Operation.Kind == MatchOpPush || pat.Operation.Kind == MatchOpSet {
		for i := range pat.Operation.Contexts {
			ss.linkRef(def, &pat.Operation.Contexts[i], visited)
		}
	}
	if pat.WithPrototype != nil {
		ss.linkContext(def, pat.WithPrototype, visited)
	}
}

func (ss *SyntaxSet) linkRef(def *SyntaxDefinition, ref *ContextReference, visited map[*Context]bool) {
	switch ref.Kind {
	case RefNamed:
		if target, ok := def.Contexts[ref.Name]; ok {
			*ref = ContextReference{Kind: RefDirect, Direct: target}
		}
		// Unresolved: left as Named; Resolve panics if the parser is
		// later asked to follow it.
	case RefByScope:
		if other := ss.FindSyntaxByScope(ref.TargetScope); other != nil {
			sub := ref.SubContext
			if sub == "" {
				sub = "main"
			}
			if target, ok := other.Contexts[sub]; ok {
				*ref = ContextReference{Kind: RefDirect, Direct: target}
			}
		}
	case RefFile:
		if other := ss.FindSyntaxByName(ref.Name); other != nil {
			sub := ref.SubContext
			if sub == "" {
				sub = "main"
			}
			if target, ok := other.Contexts[sub]; ok {
				*ref = ContextReference{Kind: RefDirect, Direct: target}
			}
		}
	case RefInline:
		ss.linkContext(def, ref.Inline, visited)
	case RefDirect:
		// already linked
	}
}

// Resolve returns the context a linked reference points to. Panics if ref
// has not been linked to Inline or Direct, mirroring the upstream
// invariant that only the linker may produce an unresolved reference and
// that the parser must never be asked to follow one.
func (ref *ContextReference) Resolve() *Context {
	switch ref.Kind {
	case RefInline:
		return ref.Inline
	case RefDirect:
		return ref.Direct
	default:
		panic("syntax: Resolve called on an unlinked context reference")
	}
}

// FindSyntaxByScope returns the grammar whose root scope equals scope.
func (ss *SyntaxSet) FindSyntaxByScope(scope Scope) *SyntaxDefinition {
	for _, s := range ss.Syntaxes {
		if s.Scope.Equal(scope) {
			return s
		}
	}
	return nil
}

// FindSyntaxByName returns the grammar with the given display name.
func (ss *SyntaxSet) FindSyntaxByName(name string) *SyntaxDefinition {
	for _, s := range ss.Syntaxes {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// FindSyntaxByExtension returns the grammar declaring the given (no-dot)
// file extension, case-sensitively.
func (ss *SyntaxSet) FindSyntaxByExtension(ext string) *SyntaxDefinition {
	for _, s := range ss.Syntaxes {
		for _, e := range s.FileExtensions {
			if e == ext {
				return s
			}
		}
	}
	return nil
}

// FindSyntaxByToken looks up a syntax first by extension, then by
// case-insensitive name; useful when all you have is a short token such as
// a fenced-code-block language tag.
func (ss *SyntaxSet) FindSyntaxByToken(token string) *SyntaxDefinition {
	if s := ss.FindSyntaxByExtension(token); s != nil {
		return s
	}
	lower := lowerASCII(token)
	for _, s := range ss.Syntaxes {
		if lowerASCII(s.Name) == lower {
			return s
		}
	}
	return nil
}

// FindSyntaxByFirstLine returns the first grammar whose FirstLineMatch
// pattern matches line, skipping grammars with no such pattern. Used to
// detect a language for extensionless scripts (e.g. a shebang line).
func (ss *SyntaxSet) FindSyntaxByFirstLine(line string) *SyntaxDefinition {
	for _, s := range ss.Syntaxes {
		if s.FirstLineMatch == "" {
			continue
		}
		re, err := compiledFirstLine(s)
		if err != nil {
			continue
		}
		if re.IsMatch(line) {
			return s
		}
	}
	return nil
}

// FindSyntaxPlainText returns the builtin "Plain Text" grammar, panicking
// if the set was never given one via AddPlainTextSyntax. Every set used for
// open-ended file highlighting is expected to carry one as a fallback.
func (ss *SyntaxSet) FindSyntaxPlainText() *SyntaxDefinition {
	s := ss.FindSyntaxByName("Plain Text")
	if s == nil {
		panic("syntax: syntax set has no Plain Text fallback; call AddPlainTextSyntax")
	}
	return s
}

func compiledFirstLine(s *SyntaxDefinition) (*regexp.Regexp, error) {
	if s.firstLineRe == nil {
		re, err := regexp.Compile(s.FirstLineMatch)
		if err != nil {
			return nil, err
		}
		s.firstLineRe = re
	}
	return s.firstLineRe, nil
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

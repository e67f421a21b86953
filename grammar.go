package syntax

import "github.com/friedelschoen/go-syntax/regexp"

// SyntaxDefinition is an in-memory grammar: the data a `.sublime-syntax`
// file loads into, before and after linking. Grammars are built once,
// linked once, and treated as immutable afterward; parsers only read them.
type SyntaxDefinition struct {
	Name           string
	FileExtensions []string
	Scope          Scope
	FirstLineMatch string
	Hidden         bool

	// Prototype is filled in at link time: the implicit overlay applied
	// to every context in this grammar unless it opts out with
	// meta_include_prototype: false.
	Prototype *Context

	Variables map[string]string
	Contexts  map[string]*Context

	firstLineRe *regexp.Regexp // lazily compiled cache for FirstLineMatch
}

// Context is a named bundle of patterns the parser can be "inside".
type Context struct {
	Name string

	MetaScope            []Scope
	MetaContentScope     []Scope
	MetaIncludePrototype bool
	ClearScopes          *ClearAmount
	UsesBackrefs         bool

	// Prototype is set by the linker on every context with
	// MetaIncludePrototype true other than the grammar's prototype context
	// itself. Contexts that the prototype includes are not excluded.
	Prototype *Context

	Patterns []Pattern
}

// Pattern is either a MatchPattern or an Include(ContextReference); the
// parser's DFS over a context's patterns expands Includes transparently.
type Pattern interface{ isPattern() }

// CaptureEntry maps one capture-group index to the scopes pushed/popped
// around its matched text.
type CaptureEntry struct {
	Index  int
	Scopes []Scope
}

// MatchPattern is one `match:` rule.
type MatchPattern struct {
	HasCaptures bool
	RegexStr    string
	regex       *regexp.Regexp // lazily compiled on first use; stays nil if HasCaptures (recompiled per match instead)

	Scope         []Scope
	Captures      []CaptureEntry
	Operation     MatchOperation
	WithPrototype *Context
}

func (*MatchPattern) isPattern() {}

// IncludePattern is an `include:` rule referencing another context.
type IncludePattern struct {
	Ref *ContextReference
}

func (*IncludePattern) isPattern() {}

// RefKind tags the variant carried by a ContextReference.
type RefKind int

const (
	RefNamed RefKind = iota
	RefByScope
	RefFile
	RefInline
	RefDirect
)

// ContextReference names a context to jump to. All non-Direct variants
// are replaced by Direct during linking (see linker.go).
type ContextReference struct {
	Kind RefKind

	Name        string // RefNamed, RefFile
	TargetScope Scope  // RefByScope
	SubContext  string // RefByScope, RefFile ("" means "main")

	Inline *Context // RefInline
	Direct *Context // RefDirect
}

// OpKind tags the variant carried by a MatchOperation.
type OpKind int

const (
	MatchOpNone OpKind = iota
	MatchOpPop
	MatchOpPush
	MatchOpSet
)

// MatchOperation is the stack mutation a MatchPattern performs once its
// scopes and captures have been emitted.
type MatchOperation struct {
	Kind     OpKind
	Contexts []ContextReference // for Push/Set
}

// NewContext returns a Context ready to receive patterns. meta_include_prototype
// defaults to true in `.sublime-syntax`; callers that parse a context with
// that key set to false should flip MetaIncludePrototype after construction.
func NewContext(name string) *Context {
	return &Context{Name: name, MetaIncludePrototype: true}
}

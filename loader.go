package syntax

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	stdregexp "regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	variableRefRe = stdregexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)
	backrefRe     = stdregexp.MustCompile(`\\[0-9]`)
)

// loaderState carries the per-document parsing context through the
// recursive-descent walk of a parsed `.sublime-syntax` YAML document.
type loaderState struct {
	repo                *Repository
	variables           map[string]string
	linesIncludeNewline bool
}

// LoadSyntaxFromBytes parses a `.sublime-syntax` document. fallbackName is
// used as the grammar's Name when the document has no "name" key.
func LoadSyntaxFromBytes(data []byte, linesIncludeNewline bool, fallbackName string) (*SyntaxDefinition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("syntax: empty document")
	}
	return parseTopLevel(doc.Content[0], linesIncludeNewline, fallbackName)
}

// LoadSyntaxFromFile loads and parses a single `.sublime-syntax` file,
// using its base name (without extension) as the fallback grammar name.
func LoadSyntaxFromFile(pathname string) (*SyntaxDefinition, error) {
	data, err := os.ReadFile(pathname)
	if err != nil {
		return nil, err
	}
	fallback := strings.TrimSuffix(filepath.Base(pathname), filepath.Ext(pathname))
	return LoadSyntaxFromBytes(data, false, fallback)
}

func parseTopLevel(doc *yaml.Node, linesIncludeNewline bool, fallbackName string) (*SyntaxDefinition, error) {
	if doc.Kind != yaml.MappingNode {
		return nil, ErrMissingKey
	}

	variables := map[string]string{}
	if varsNode := mapGet(doc, "variables"); varsNode != nil && varsNode.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(varsNode.Content); i += 2 {
			variables[varsNode.Content[i].Value] = varsNode.Content[i+1].Value
		}
	}

	scopeStr := mapGetScalar(doc, "scope")
	if scopeStr == "" {
		return nil, fmt.Errorf("%w: scope", ErrMissingKey)
	}
	repo := NewRepository()
	topScope, err := repo.Build(scopeStr)
	if err != nil {
		return nil, err
	}

	contextsNode := mapGet(doc, "contexts")
	if contextsNode == nil || contextsNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: contexts", ErrMissingKey)
	}

	state := &loaderState{repo: repo, variables: variables, linesIncludeNewline: linesIncludeNewline}
	contexts, err := parseContexts(contextsNode, state)
	if err != nil {
		return nil, err
	}
	if _, ok := contexts["main"]; !ok {
		return nil, ErrMainMissing
	}

	name := mapGetScalar(doc, "name")
	if name == "" {
		name = fallbackName
	}
	if name == "" {
		name = "Unnamed"
	}

	var extensions []string
	if extNode := mapGet(doc, "file_extensions"); extNode != nil && extNode.Kind == yaml.SequenceNode {
		for _, n := range extNode.Content {
			extensions = append(extensions, n.Value)
		}
	}

	hidden := false
	if hNode := mapGet(doc, "hidden"); hNode != nil {
		hidden, _ = strconv.ParseBool(hNode.Value)
	}

	def := &SyntaxDefinition{
		Name:           name,
		Scope:          topScope,
		FileExtensions: extensions,
		FirstLineMatch: mapGetScalar(doc, "first_line_match"),
		Hidden:         hidden,
		Variables:      variables,
		Contexts:       contexts,
	}
	injectStartContexts(def)
	return def, nil
}

func parseContexts(mapping *yaml.Node, state *loaderState) (map[string]*Context, error) {
	contexts := make(map[string]*Context)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		name := mapping.Content[i].Value
		seq := mapping.Content[i+1]
		if seq.Kind != yaml.SequenceNode {
			continue
		}
		ctx, err := parseContext(seq, state, name == "prototype")
		if err != nil {
			return nil, err
		}
		ctx.Name = name
		contexts[name] = ctx
	}
	return contexts, nil
}

func parseContext(seq *yaml.Node, state *loaderState, isPrototype bool) (*Context, error) {
	ctx := &Context{MetaIncludePrototype: !isPrototype}

	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: context entry", ErrMissingKey)
		}

		special := false

		if v := mapGetScalar(item, "meta_scope"); v != "" {
			scopes, err := strToScopes(v, state.repo)
			if err != nil {
				return nil, err
			}
			ctx.MetaScope = scopes
			special = true
		}
		if v := mapGetScalar(item, "meta_content_scope"); v != "" {
			scopes, err := strToScopes(v, state.repo)
			if err != nil {
				return nil, err
			}
			ctx.MetaContentScope = scopes
			special = true
		}
		if n := mapGet(item, "meta_include_prototype"); n != nil {
			b, _ := strconv.ParseBool(n.Value)
			ctx.MetaIncludePrototype = b
			special = true
		}
		if n := mapGet(item, "clear_scopes"); n != nil {
			switch n.Tag {
			case "!!bool":
				if b, _ := strconv.ParseBool(n.Value); b {
					ctx.ClearScopes = &ClearAmount{Kind: ClearAll}
				}
			default:
				if num, err := strconv.Atoi(n.Value); err == nil {
					ctx.ClearScopes = &ClearAmount{Kind: ClearTopN, N: num}
				}
			}
			special = true
		}

		if special {
			continue
		}

		if incNode := mapGet(item, "include"); incNode != nil {
			ref, err := parseReference(incNode, state)
			if err != nil {
				return nil, err
			}
			ctx.Patterns = append(ctx.Patterns, &IncludePattern{Ref: ref})
			continue
		}

		pat, err := parseMatchPattern(item, state)
		if err != nil {
			return nil, err
		}
		if pat.HasCaptures {
			ctx.UsesBackrefs = true
		}
		ctx.Patterns = append(ctx.Patterns, pat)
	}
	return ctx, nil
}

func parseReference(node *yaml.Node, state *loaderState) (*ContextReference, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		s := node.Value
		var subContext string
		if idx := strings.IndexByte(s, '#'); idx >= 0 {
			subContext = s[idx+1:]
			s = s[:idx]
		}
		switch {
		case strings.HasPrefix(s, "scope:"):
			scope, err := state.repo.Build(s[len("scope:"):])
			if err != nil {
				return nil, err
			}
			return &ContextReference{Kind: RefByScope, TargetScope: scope, SubContext: subContext}, nil
		case strings.HasSuffix(s, ".sublime-syntax"):
			stem := strings.TrimSuffix(path.Base(s), ".sublime-syntax")
			return &ContextReference{Kind: RefFile, Name: stem, SubContext: subContext}, nil
		default:
			return &ContextReference{Kind: RefNamed, Name: s}, nil
		}
	case yaml.SequenceNode:
		ctx, err := parseContext(node, state, false)
		if err != nil {
			return nil, err
		}
		return &ContextReference{Kind: RefInline, Inline: ctx}, nil
	default:
		return nil, ErrBadReference
	}
}

func resolveVariables(raw string, vars map[string]string) string {
	return variableRefRe.ReplaceAllStringFunc(raw, func(m string) string {
		sub := variableRefRe.FindStringSubmatch(m)
		name := sub[1]
		val, ok := vars[name]
		if !ok {
			return ""
		}
		return resolveVariables(val, vars)
	})
}

func parseMatchPattern(item *yaml.Node, state *loaderState) (*MatchPattern, error) {
	matchNode := mapGet(item, "match")
	if matchNode == nil {
		return nil, fmt.Errorf("%w: match", ErrMissingKey)
	}
	regexStr := resolveVariables(matchNode.Value, state.variables)
	if !state.linesIncludeNewline {
		regexStr = rewriteRegex(regexStr)
	}

	var scope []Scope
	if v := mapGetScalar(item, "scope"); v != "" {
		s, err := strToScopes(v, state.repo)
		if err != nil {
			return nil, err
		}
		scope = s
	}

	var captures []CaptureEntry
	if capNode := mapGet(item, "captures"); capNode != nil && capNode.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(capNode.Content); i += 2 {
			idx, err := strconv.Atoi(capNode.Content[i].Value)
			if err != nil {
				continue
			}
			scopes, err := strToScopes(capNode.Content[i+1].Value, state.repo)
			if err != nil {
				return nil, err
			}
			captures = append(captures, CaptureEntry{Index: idx, Scopes: scopes})
		}
	}

	hasCaptures := false
	var operation MatchOperation
	var withPrototype *Context

	switch {
	case mapGet(item, "pop") != nil:
		// Back-reference detection only applies to pop patterns: a pop
		// pattern's \N refers to a group captured by the match that pushed
		// the context it closes. Push/set patterns define their own
		// capture groups instead and never carry has_captures.
		hasCaptures = backrefRe.MatchString(regexStr)
		operation = MatchOperation{Kind: MatchOpPop}

	case mapGet(item, "push") != nil:
		refs, err := parsePushArgs(mapGet(item, "push"), state)
		if err != nil {
			return nil, err
		}
		operation = MatchOperation{Kind: MatchOpPush, Contexts: refs}

	case mapGet(item, "set") != nil:
		refs, err := parsePushArgs(mapGet(item, "set"), state)
		if err != nil {
			return nil, err
		}
		operation = MatchOperation{Kind: MatchOpSet, Contexts: refs}

	case mapGet(item, "embed") != nil:
		refs, err := parseEmbed(item, state)
		if err != nil {
			return nil, err
		}
		operation = MatchOperation{Kind: MatchOpPush, Contexts: refs}

	default:
		operation = MatchOperation{Kind: MatchOpNone}
	}

	if protoNode := mapGet(item, "with_prototype"); protoNode != nil && protoNode.Kind == yaml.SequenceNode {
		ctx, err := parseContext(protoNode, state, true)
		if err != nil {
			return nil, err
		}
		withPrototype = ctx
	} else if escNode := mapGet(item, "escape"); escNode != nil {
		// Without an explicit with_prototype, escape: desugars to a
		// with_prototype containing a single lookahead pop rule, independently
		// of embed's own escape-context
		// push; the two compose so the lookahead rides every nested context
		// the embedded grammar pushes, not just the one embed introduces.
		escCtx := &Context{MetaIncludePrototype: false}
		escRegex := resolveVariables(escNode.Value, state.variables)
		if !state.linesIncludeNewline {
			escRegex = rewriteRegex(escRegex)
		}
		escPat := &MatchPattern{
			RegexStr:  "(?=" + escRegex + ")",
			Operation: MatchOperation{Kind: MatchOpPop},
		}
		escPat.HasCaptures = backrefRe.MatchString(escPat.RegexStr)
		if escPat.HasCaptures {
			escCtx.UsesBackrefs = true
		}
		escCtx.Patterns = append(escCtx.Patterns, escPat)
		withPrototype = escCtx
	}

	return &MatchPattern{
		HasCaptures:   hasCaptures,
		RegexStr:      regexStr,
		Scope:         scope,
		Captures:      captures,
		Operation:     operation,
		WithPrototype: withPrototype,
	}, nil
}

// parseEmbed desugars `embed:`/`embed_scope:`/`escape:`/`escape_captures:`
// into the push-of-two-contexts shape it is equivalent to: an inline
// context carrying embed_scope as its meta_content_scope and the escape
// rule as a pop pattern, pushed alongside the embedded grammar reference.
func parseEmbed(item *yaml.Node, state *loaderState) ([]ContextReference, error) {
	embedNode := mapGet(item, "embed")
	escapeNode := mapGet(item, "escape")
	if escapeNode == nil {
		return nil, fmt.Errorf("%w: escape (required by embed)", ErrMissingKey)
	}

	escapeCtx := &Context{MetaIncludePrototype: true}
	if scopeNode := mapGet(item, "embed_scope"); scopeNode != nil {
		scopes, err := strToScopes(scopeNode.Value, state.repo)
		if err != nil {
			return nil, err
		}
		escapeCtx.MetaContentScope = scopes
	}

	escRegex := resolveVariables(escapeNode.Value, state.variables)
	if !state.linesIncludeNewline {
		escRegex = rewriteRegex(escRegex)
	}
	escPat := &MatchPattern{
		RegexStr:  escRegex,
		Operation: MatchOperation{Kind: MatchOpPop},
	}
	if capNode := mapGet(item, "escape_captures"); capNode != nil && capNode.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(capNode.Content); i += 2 {
			idx, err := strconv.Atoi(capNode.Content[i].Value)
			if err != nil {
				continue
			}
			scopes, err := strToScopes(capNode.Content[i+1].Value, state.repo)
			if err != nil {
				return nil, err
			}
			escPat.Captures = append(escPat.Captures, CaptureEntry{Index: idx, Scopes: scopes})
		}
	}
	escPat.HasCaptures = backrefRe.MatchString(escPat.RegexStr)
	escapeCtx.Patterns = append(escapeCtx.Patterns, escPat)

	embedRef, err := parseReference(embedNode, state)
	if err != nil {
		return nil, err
	}
	return []ContextReference{
		{Kind: RefInline, Inline: escapeCtx},
		*embedRef,
	}, nil
}

func parsePushArgs(node *yaml.Node, state *loaderState) ([]ContextReference, error) {
	if node.Kind == yaml.SequenceNode && len(node.Content) > 0 {
		first := node.Content[0]
		looksLikeMultiple := first.Kind == yaml.ScalarNode ||
			(first.Kind == yaml.SequenceNode && len(first.Content) > 0 && first.Content[0].Kind == yaml.MappingNode)
		if looksLikeMultiple {
			var refs []ContextReference
			for _, n := range node.Content {
				ref, err := parseReference(n, state)
				if err != nil {
					return nil, err
				}
				refs = append(refs, *ref)
			}
			return refs, nil
		}
	}
	ref, err := parseReference(node, state)
	if err != nil {
		return nil, err
	}
	return []ContextReference{*ref}, nil
}

func strToScopes(s string, repo *Repository) ([]Scope, error) {
	fields := strings.Fields(s)
	scopes := make([]Scope, 0, len(fields))
	for _, f := range fields {
		sc, err := repo.Build(f)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, sc)
	}
	return scopes, nil
}

func mapGet(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func mapGetScalar(node *yaml.Node, key string) string {
	n := mapGet(node, key)
	if n == nil {
		return ""
	}
	return n.Value
}

// rewriteRegex rewrites a regex matching a literal `\n` (or a character
// class that matches one) into one matching `$` instead, so it can be used
// against line strings that don't carry their trailing newline. This is an
// approximation: `$` is a zero-width anchor where `\n` consumes a
// character, so patterns relying on consuming the newline itself can
// behave subtly differently.
func rewriteRegex(regex string) string {
	if !strings.Contains(regex, `\n`) {
		return regex
	}
	r := &regexRewriter{bytes: []byte(regex)}
	return r.rewrite()
}

type regexRewriter struct {
	bytes []byte
	index int
}

func (r *regexRewriter) peek() (byte, bool) {
	if r.index >= len(r.bytes) {
		return 0, false
	}
	return r.bytes[r.index], true
}

func (r *regexRewriter) advance() { r.index++ }

func (r *regexRewriter) rewrite() string {
	var result []byte
	for {
		c, ok := r.peek()
		if !ok {
			break
		}
		switch c {
		case '\\':
			r.advance()
			if c2, ok := r.peek(); ok {
				r.advance()
				if next, hasNext := r.peek(); c2 == 'n' && !(hasNext && next == '?') {
					result = append(result, '$')
				} else {
					result = append(result, '\\', c2)
				}
			} else {
				result = append(result, c)
			}
		case '[':
			content, matchesNewline := r.parseCharacterClass()
			if after, ok := r.peek(); matchesNewline && !(ok && after == '?') {
				result = append(result, "(?:"...)
				result = append(result, content...)
				result = append(result, "|$)"...)
			} else {
				result = append(result, content...)
			}
		default:
			r.advance()
			result = append(result, c)
		}
	}
	return string(result)
}

func (r *regexRewriter) parseCharacterClass() ([]byte, bool) {
	var content []byte
	negated := false
	nesting := 0
	matchesNewline := false

	r.advance()
	content = append(content, '[')
	if c, ok := r.peek(); ok && c == '^' {
		r.advance()
		content = append(content, '^')
		negated = true
	}
	if c, ok := r.peek(); ok && c == ']' {
		r.advance()
		content = append(content, ']')
	}

	for {
		c, ok := r.peek()
		if !ok {
			break
		}
		switch c {
		case '\\':
			r.advance()
			if c2, ok := r.peek(); ok {
				r.advance()
				if c2 == 'n' && !negated && nesting == 0 {
					matchesNewline = true
				}
				content = append(content, c, c2)
			} else {
				content = append(content, c)
			}
		case '[':
			r.advance()
			content = append(content, '[')
			nesting++
		case ']':
			r.advance()
			content = append(content, ']')
			if nesting == 0 {
				return content, matchesNewline
			}
			nesting--
		default:
			r.advance()
			content = append(content, c)
		}
	}
	return content, matchesNewline
}

// LoadSyntaxSetFromDir walks (or, non-recursively, lists) dir for
// `.sublime-syntax` files, loads and links them all into one SyntaxSet, and
// adds the builtin Plain Text fallback. Files that fail to parse are
// skipped; their errors are returned together once loading finishes so a
// single malformed grammar doesn't abort loading the rest of a package
// directory.
func LoadSyntaxSetFromDir(dir string, walk bool) (*SyntaxSet, []error) {
	ss := NewSyntaxSet()
	var errs []error
	for pathname := range sublimeSyntaxPaths(dir, walk) {
		def, err := LoadSyntaxFromFile(pathname)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pathname, err))
			continue
		}
		ss.AddSyntax(def)
	}
	ss.AddPlainTextSyntax()
	ss.Link()
	return ss, errs
}

func sublimeSyntaxPaths(dir string, walk bool) iter.Seq[string] {
	if walk {
		return func(yield func(string) bool) {
			filepath.WalkDir(dir, func(pathname string, d fs.DirEntry, err error) error {
				if err == nil && !d.IsDir() && strings.HasSuffix(pathname, ".sublime-syntax") {
					if !yield(pathname) {
						return filepath.SkipAll
					}
				}
				return nil
			})
		}
	}
	return func(yield func(string) bool) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sublime-syntax") {
				if !yield(path.Join(dir, entry.Name())) {
					return
				}
			}
		}
	}
}

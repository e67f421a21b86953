package syntax

import "strings"

// ScopeSelector is a single scope-stack pattern plus an optional stack to
// exclude from matching.
type ScopeSelector struct {
	path    *ScopeStack
	exclude *ScopeStack
}

// ScopeSelectors is a union of ScopeSelector: it matches anything any one
// of its members matches.
type ScopeSelectors struct {
	Selectors []ScopeSelector
}

// ParseScopeStack parses a whitespace-separated list of scopes into a
// ScopeStack, used as the selector path.
func ParseScopeStack(s string) (*ScopeStack, error) {
	var scopes []Scope
	for _, name := range strings.Fields(s) {
		sc, err := NewScope(name)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, sc)
	}
	return ScopeStackFromScopes(scopes), nil
}

// ParseScopeSelector parses a scope stack optionally followed by " -" and
// another scope stack to exclude.
func ParseScopeSelector(s string) (ScopeSelector, error) {
	if idx := strings.Index(s, " -"); idx >= 0 {
		pathStr, excludeStr := s[:idx], s[idx+2:]
		path, err := ParseScopeStack(pathStr)
		if err != nil {
			return ScopeSelector{}, err
		}
		exclude, err := ParseScopeStack(excludeStr)
		if err != nil {
			return ScopeSelector{}, err
		}
		return ScopeSelector{path: path, exclude: exclude}, nil
	}
	path, err := ParseScopeStack(s)
	if err != nil {
		return ScopeSelector{}, err
	}
	return ScopeSelector{path: path}, nil
}

// ParseScopeSelectors parses a comma- or pipe-separated list of selectors.
func ParseScopeSelectors(s string) (ScopeSelectors, error) {
	var out ScopeSelectors
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' })
	if len(parts) == 0 {
		// An empty selector string is one empty selector, which matches
		// everything.
		parts = []string{s}
	}
	for _, part := range parts {
		sel, err := ParseScopeSelector(part)
		if err != nil {
			return ScopeSelectors{}, err
		}
		out.Selectors = append(out.Selectors, sel)
	}
	return out, nil
}

// DoesMatch reports whether sel matches stack, returning the match score.
// An exclude stack that is empty (present but with zero scopes) or that
// itself matches stack vetoes the whole selector. An empty path matches
// everything with score 1.
func (sel ScopeSelector) DoesMatch(stack []Scope) (MatchPower, bool) {
	if sel.exclude != nil {
		if sel.exclude.Len() == 0 {
			return 0, false
		}
		if _, ok := sel.exclude.DoesMatch(stack); ok {
			return 0, false
		}
	}
	if sel.path.Len() == 0 {
		return MatchPower(1), true
	}
	return sel.path.DoesMatch(stack)
}

// ExtractSingleScope returns the selector's scope when it is exactly one
// scope long with no exclude, the case the highlighter indexes specially
// for O(1) per-push lookups.
func (sel ScopeSelector) ExtractSingleScope() (Scope, bool) {
	if sel.path.Len() != 1 || sel.exclude != nil {
		return Scope{}, false
	}
	return sel.path.AsSlice()[0], true
}

// DoesMatch returns the maximum score across all member selectors, or
// (0, false) if none match.
func (ss ScopeSelectors) DoesMatch(stack []Scope) (MatchPower, bool) {
	var best MatchPower
	matched := false
	for _, sel := range ss.Selectors {
		if score, ok := sel.DoesMatch(stack); ok && (!matched || score > best) {
			best = score
			matched = true
		}
	}
	return best, matched
}

// Package regexp wraps a single regex engine behind the small contract the
// parser needs: lazy compilation, searching within a [begin,end) window of
// a string, and treating search-time errors as "no match" rather than
// propagating them. The engine is dlclark/regexp2, a pure-Go, cgo-free
// engine that (like the fancy_regex backend of the system this module
// mirrors) supports the back-references and look-around Sublime grammars
// rely on.
package regexp

import (
	"sync"

	"github.com/dlclark/regexp2"
)

// Regexp is a lazily compiled pattern. The zero value is not usable; build
// one with New.
type Regexp struct {
	pattern string

	once       sync.Once
	compiled   *regexp2.Regexp
	compileErr error
}

// New stores pattern without compiling it. Compilation happens lazily on
// the first IsMatch/Search/EnsureCompiled call, so a grammar can hold
// patterns with back-references that cannot compile until captures are
// substituted in without failing at load time.
func New(pattern string) *Regexp {
	return &Regexp{pattern: pattern}
}

// Compile eagerly compiles pattern, for callers (the parser recompiling a
// back-reference pattern per match) that need the error immediately rather
// than discovering it later as a silent no-match.
func Compile(pattern string) (*Regexp, error) {
	r := New(pattern)
	if err := r.EnsureCompiled(); err != nil {
		return nil, err
	}
	return r, nil
}

// Pattern returns the original, uncompiled pattern string.
func (r *Regexp) Pattern() string { return r.pattern }

// EnsureCompiled compiles the pattern if it hasn't been already and
// returns the (memoized) compile error, if any.
func (r *Regexp) EnsureCompiled() error {
	r.once.Do(func() {
		re, err := regexp2.Compile(r.pattern, regexp2.None)
		if err != nil {
			r.compileErr = err
			return
		}
		r.compiled = re
	})
	return r.compileErr
}

// Region holds the byte-offset spans of a match's capture groups, indexed
// by group number; group 0 is the whole match. A group that did not
// participate has Start == -1.
type Region struct {
	spans []span
}

type span struct{ start, end int }

// GroupCount returns the number of capture groups recorded (including
// group 0).
func (r *Region) GroupCount() int { return len(r.spans) }

// Pos returns the [start,end) byte span of capture group i, and whether it
// participated in the match.
func (r *Region) Pos(i int) (start, end int, ok bool) {
	if i < 0 || i >= len(r.spans) {
		return 0, 0, false
	}
	sp := r.spans[i]
	if sp.start < 0 {
		return 0, 0, false
	}
	return sp.start, sp.end, true
}

// IsMatch reports whether the pattern matches anywhere in text. A compile
// or search-time error is treated as no-match, per the engine's contract:
// callers must never see a panic or a propagated error from a bad regex
// once grammar loading has succeeded.
func (r *Regexp) IsMatch(text string) bool {
	if err := r.EnsureCompiled(); err != nil {
		return false
	}
	m, err := r.compiled.FindStringMatch(text)
	return err == nil && m != nil
}

// Search looks for the leftmost match starting at or after begin, within
// text[:end]. It mirrors the fancy_regex backend's
// "captures_from_pos(&text[..end], begin)" approach: end truncates the
// haystack so patterns anchored with `$` or lookahead never see bytes past
// end, while begin only constrains where the match may start.
//
// Any compile or runtime search error (e.g. a backtracking blow-up) is
// reported as no match rather than propagated, so a single pathological
// pattern cannot abort parsing.
func (r *Regexp) Search(text string, begin, end int) (*Region, bool) {
	if err := r.EnsureCompiled(); err != nil {
		return nil, false
	}
	if begin < 0 {
		begin = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if begin > end {
		return nil, false
	}
	haystack := text[:end]
	m, err := r.compiled.FindStringMatchStartingAt(haystack, begin)
	if err != nil || m == nil {
		return nil, false
	}
	// regexp2 reports capture positions in runes; byteAt maps a rune
	// index of haystack back to its byte offset.
	byteAt := make([]int, 0, len(haystack)+1)
	for i := range haystack {
		byteAt = append(byteAt, i)
	}
	byteAt = append(byteAt, len(haystack))
	groups := m.Groups()
	spans := make([]span, len(groups))
	for i, g := range groups {
		if len(g.Captures) == 0 {
			spans[i] = span{-1, -1}
			continue
		}
		c := g.Captures[len(g.Captures)-1]
		spans[i] = span{byteAt[c.Index], byteAt[c.Index+c.Length]}
	}
	return &Region{spans: spans}, true
}

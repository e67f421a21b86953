// Package highlight turns a theme and a stream of scope-stack deltas (as
// produced by a parser's ParseLine) into styled spans of text.
package highlight

import (
	"math"
	"sort"

	syntax "github.com/friedelschoen/go-syntax"
	"github.com/friedelschoen/go-syntax/theme"
)

// scored pairs a value with the MatchPower of the selector that last won it,
// so a later, weaker-scoring selector can never clobber an earlier, better
// match. -1 is lower than any real MatchPower (scores are non-negative), so
// the first real match always wins initially.
type scored[T any] struct {
	score syntax.MatchPower
	value T
}

func (s *scored[T]) apply(update *T, score syntax.MatchPower) {
	if update != nil && score > s.score {
		s.score = score
		s.value = *update
	}
}

// ScoredStyle is a Style under construction, where each of the three fields
// independently remembers the MatchPower of the selector that set it, so
// that selectors can be applied in any order and still settle on the
// highest-scoring contribution per field.
type ScoredStyle struct {
	Foreground scored[theme.Color]
	Background scored[theme.Color]
	FontStyle  scored[theme.FontStyle]
}

func scoredStyleFromStyle(s theme.Style) ScoredStyle {
	return ScoredStyle{
		Foreground: scored[theme.Color]{score: -1, value: s.Foreground},
		Background: scored[theme.Color]{score: -1, value: s.Background},
		FontStyle:  scored[theme.FontStyle]{score: -1, value: s.FontStyle},
	}
}

func (ss *ScoredStyle) apply(mod theme.StyleModifier, score syntax.MatchPower) {
	ss.Foreground.apply(mod.Foreground, score)
	ss.Background.apply(mod.Background, score)
	ss.FontStyle.apply(mod.FontStyle, score)
}

func (ss ScoredStyle) toStyle() theme.Style {
	return theme.Style{
		Foreground: ss.Foreground.value,
		Background: ss.Background.value,
		FontStyle:  ss.FontStyle.value,
	}
}

type singleSelector struct {
	scope syntax.Scope
	style theme.StyleModifier
}

type multiSelector struct {
	sel   syntax.ScopeSelector
	style theme.StyleModifier
}

// Highlighter prepares a Theme for repeated use: it splits every selector
// into the common single-scope case (checked with an O(1) prefix test per
// push) and the general multi-scope case (checked against the whole path).
type Highlighter struct {
	theme           *theme.Theme
	singleSelectors []singleSelector
	multiSelectors  []multiSelector
}

// NewHighlighter builds a Highlighter from th. th is not copied; it must
// outlive the Highlighter.
func NewHighlighter(th *theme.Theme) *Highlighter {
	h := &Highlighter{theme: th}
	for _, item := range th.Scopes {
		for _, sel := range item.Scope.Selectors {
			if scope, ok := sel.ExtractSingleScope(); ok {
				h.singleSelectors = append(h.singleSelectors, singleSelector{scope, item.Style})
			} else {
				h.multiSelectors = append(h.multiSelectors, multiSelector{sel, item.Style})
			}
		}
	}
	// Deeper (more specific) single-scope selectors must be tried first so a
	// broad rule like "comment" never masks a later, narrower "comment.line".
	sort.SliceStable(h.singleSelectors, func(i, j int) bool {
		return h.singleSelectors[i].scope.Len() > h.singleSelectors[j].scope.Len()
	})
	return h
}

// GetDefault returns the style used for text with no matching scope: the
// theme's own foreground/background, or black-on-white if unset.
func (h *Highlighter) GetDefault() theme.Style {
	s := theme.DefaultStyle
	if h.theme.Settings.Foreground != nil {
		s.Foreground = *h.theme.Settings.Foreground
	}
	if h.theme.Settings.Background != nil {
		s.Background = *h.theme.Settings.Background
	}
	return s
}

func (h *Highlighter) updateSingleCacheForPush(cur ScoredStyle, path []syntax.Scope) ScoredStyle {
	newStyle := cur
	lastScope := path[len(path)-1]
	depth := len(path) - 1
	for _, ss := range h.singleSelectors {
		if !ss.scope.IsPrefixOf(lastScope) {
			continue
		}
		score := syntax.MatchPower(float64(ss.scope.Len()) * math.Exp2(float64(syntax.ATOM_LEN_BITS*depth)))
		newStyle.apply(ss.style, score)
	}
	return newStyle
}

func (h *Highlighter) finalizeStyleWithMultis(cur ScoredStyle, path []syntax.Scope) theme.Style {
	newStyle := cur
	for _, ms := range h.multiSelectors {
		if score, ok := ms.sel.DoesMatch(path); ok {
			newStyle.apply(ms.style, score)
		}
	}
	return newStyle.toStyle()
}

// StyleForStack returns the fully resolved style for stack. Convenient but
// does a full pass over every selector; callers highlighting many lines
// should drive a HighlightState incrementally instead.
func (h *Highlighter) StyleForStack(stack []syntax.Scope) theme.Style {
	cache := scoredStyleFromStyle(h.GetDefault())
	for i := range stack {
		cache = h.updateSingleCacheForPush(cache, stack[:i+1])
	}
	return h.finalizeStyleWithMultis(cache, stack)
}

// StyleModForStack returns the StyleModifier that, applied to GetDefault(),
// reproduces StyleForStack(path). Useful when composing with style
// information from outside the theme.
func (h *Highlighter) StyleModForStack(path []syntax.Scope) theme.StyleModifier {
	type scoredItem struct {
		score syntax.MatchPower
		style theme.StyleModifier
	}
	var matches []scoredItem
	for _, item := range h.theme.Scopes {
		if score, ok := item.Scope.DoesMatch(path); ok {
			matches = append(matches, scoredItem{score, item.Style})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score < matches[j].score })

	var modifier theme.StyleModifier
	for _, m := range matches {
		modifier = modifier.Apply(m.style)
	}
	return modifier
}

// HighlightState carries the style stack across lines, mirroring path one
// style-or-cache frame per scope so that pushes and pops are O(selectors)
// instead of a full per-line recomputation.
type HighlightState struct {
	styles       []theme.Style
	singleCaches []ScoredStyle
	Path         *syntax.ScopeStack
}

// NewHighlightState builds a HighlightState seeded from initialStack (pass
// an empty stack when starting at the top of a file).
func NewHighlightState(h *Highlighter, initialStack *syntax.ScopeStack) *HighlightState {
	styles := []theme.Style{h.GetDefault()}
	singleCaches := []ScoredStyle{scoredStyleFromStyle(styles[0])}
	for i := 0; i < initialStack.Len(); i++ {
		prefix := initialStack.BottomN(i + 1)
		cache := h.updateSingleCacheForPush(singleCaches[i], prefix)
		styles = append(styles, h.finalizeStyleWithMultis(cache, prefix))
		singleCaches = append(singleCaches, cache)
	}
	return &HighlightState{styles: styles, singleCaches: singleCaches, Path: initialStack}
}

// Span is one run of text rendered with a single Style.
type Span struct {
	Style theme.Style
	Text  string
	Start int
	End   int
}

// Highlight splits text into styled Spans according to changes (as returned
// by a parser's ParseLine), advancing state in place so the next line can
// reuse it. Zero-width spans (consecutive changes at the same offset) are
// dropped, since they carry no text to render.
func Highlight(state *HighlightState, h *Highlighter, changes []syntax.ParseOp, text string) []Span {
	var spans []Span
	pos := 0
	index := 0
	for {
		if pos == len(text) && index >= len(changes) {
			break
		}
		var end int
		var op syntax.StackOp
		if index < len(changes) {
			end = changes[index].Offset
			op = changes[index].Op
		} else {
			end = len(text)
			op = syntax.NoopOp()
		}

		style := state.styles[len(state.styles)-1]
		spanText := text[pos:end]
		start := pos

		err := state.Path.ApplyWithHook(op, func(b syntax.BasicOp) {
			switch b.Kind {
			case syntax.BasicPush:
				var prevCache ScoredStyle
				if len(state.singleCaches) > 0 {
					prevCache = state.singleCaches[len(state.singleCaches)-1]
				} else {
					prevCache = scoredStyleFromStyle(h.GetDefault())
				}
				curStack := state.Path.AsSlice()
				newCache := h.updateSingleCacheForPush(prevCache, curStack)
				state.styles = append(state.styles, h.finalizeStyleWithMultis(newCache, curStack))
				state.singleCaches = append(state.singleCaches, newCache)
			case syntax.BasicPop:
				if len(state.styles) > 1 {
					state.styles = state.styles[:len(state.styles)-1]
				}
				if len(state.singleCaches) > 1 {
					state.singleCaches = state.singleCaches[:len(state.singleCaches)-1]
				}
			}
		})

		if err != nil {
			// A scope-stack error (e.g. a Restore with no cleared frames)
			// discards the current span too, mirroring apply_with_hook(...).ok()?
			// short-circuiting the iterator before it yields anything for
			// this step.
			break
		}

		pos = end
		index++
		if spanText != "" {
			spans = append(spans, Span{Style: style, Text: spanText, Start: start, End: end})
		}
	}
	return spans
}

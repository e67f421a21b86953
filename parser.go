package syntax

import (
	"math"
	stdregexp "regexp"
	"sort"

	"github.com/friedelschoen/go-syntax/regexp"
)

// ParseOp is one entry of the delta stream ParseLine returns: apply Op to
// the incoming scope stack at byte offset Offset. The stream is ordered by
// Offset ascending and, within an offset, by required application order.
type ParseOp struct {
	Offset int
	Op     StackOp
}

// captureState remembers the region and text of the match that pushed a
// context, so patterns inside it that reference \1..\9 can be recompiled
// with the captured text substituted in.
type captureState struct {
	region *regexp.Region
	line   string
}

// stateLevel is one frame of the parser's context stack.
type stateLevel struct {
	context       *Context
	withPrototype *Context // overlay attached by the pattern that pushed this frame, if any
	captures      *captureState
}

// ParseState is per-line-boundary parser state: the context stack plus
// bookkeeping for with_prototype overlay scoping. It does not track the
// resulting scope stack itself -- callers apply the returned ParseOps to
// whatever ScopeStack they are maintaining. ParseState points into the
// grammar's contexts and owns two slices; a plain struct copy shares those
// slices, so use Clone for incremental-resume caching.
type ParseState struct {
	stack       []stateLevel
	firstLine   bool
	protoStarts []int
}

// NewParseState starts a parser at the grammar's synthetic __start
// context, so the grammar's top-level scope is pushed exactly once.
func NewParseState(def *SyntaxDefinition) *ParseState {
	start, ok := def.Contexts[startContextName]
	if !ok {
		panic("syntax: grammar has no __start context; was it added via SyntaxSet.AddSyntax?")
	}
	return &ParseState{
		stack:     []stateLevel{{context: start}},
		firstLine: true,
	}
}

// Clone returns a deep-enough independent copy of ps, the mechanism for
// caching a resumable parse position: save Clone() at line N, and resume
// parsing line N+1 from the clone later.
func (ps *ParseState) Clone() *ParseState {
	cp := &ParseState{
		stack:       append([]stateLevel(nil), ps.stack...),
		firstLine:   ps.firstLine,
		protoStarts: append([]int(nil), ps.protoStarts...),
	}
	return cp
}

type searchCacheEntry struct {
	found  bool
	region *regexp.Region
}

// ParseLine parses one line of text, returning the ops needed to turn the
// incoming scope stack into the line's final stack. line must not include
// a trailing terminator the grammar wasn't built to expect; pass the same
// line text a caller would display.
func (ps *ParseState) ParseLine(line string) []ParseOp {
	if len(ps.stack) == 0 {
		panic("syntax: parser stack is empty; __start was popped")
	}

	var ops []ParseOp
	matchStart := 0
	prevMatchStart := 0

	if ps.firstLine {
		top := ps.stack[len(ps.stack)-1]
		if len(top.context.MetaContentScope) > 0 {
			ops = append(ops, ParseOp{0, PushOp(top.context.MetaContentScope[0])})
		}
		ps.firstLine = false
	}

	searchCache := make(map[*MatchPattern]searchCacheEntry, 128)
	matched := make(map[*MatchPattern]bool, 4)

	for ps.parseNextToken(line, &matchStart, searchCache, matched, &ops) {
		if matchStart != prevMatchStart {
			matched = make(map[*MatchPattern]bool, 4)
		}
		prevMatchStart = matchStart
	}
	return ops
}

type chainEntry struct {
	ctx           *Context
	fromWithProto bool
}

type patOccurrence struct {
	ctx   *Context
	index int
}

// collectMatchPatterns does a DFS over ctx's patterns, expanding resolved
// Include references (Direct/Inline) in order, patterns-first. visited
// prevents infinite recursion on cyclic includes; it is fresh per
// top-level context-chain entry, matching one call to context_iter.
func collectMatchPatterns(ctx *Context, visited map[*Context]bool, out *[]patOccurrence) {
	if visited[ctx] {
		return
	}
	visited[ctx] = true
	for i, pat := range ctx.Patterns {
		switch p := pat.(type) {
		case *MatchPattern:
			*out = append(*out, patOccurrence{ctx, i})
		case *IncludePattern:
			switch p.Ref.Kind {
			case RefDirect:
				collectMatchPatterns(p.Ref.Direct, visited, out)
			case RefInline:
				collectMatchPatterns(p.Ref.Inline, visited, out)
			default:
				// Unresolved reference: skip, mirroring the upstream
				// MatchIter which silently moves on to the next pattern.
			}
		}
	}
}

type matchResult struct {
	ctx    *Context
	index  int
	region *regexp.Region
}

// parseNextToken finds and executes the single leftmost-winning match
// starting at or after *start, advancing *start to its end and appending
// the ops it produces to *ops. Returns false when no pattern matches,
// meaning the line is done.
func (ps *ParseState) parseNextToken(line string, start *int, searchCache map[*MatchPattern]searchCacheEntry, matched map[*MatchPattern]bool, ops *[]ParseOp) bool {
	top := &ps.stack[len(ps.stack)-1]
	curContext := top.context
	curPrototype := curContext.Prototype

	for len(ps.protoStarts) > 0 && ps.protoStarts[len(ps.protoStarts)-1] >= len(ps.stack) {
		ps.protoStarts = ps.protoStarts[:len(ps.protoStarts)-1]
	}
	protoStart := 0
	if len(ps.protoStarts) > 0 {
		protoStart = ps.protoStarts[len(ps.protoStarts)-1]
	}

	var chain []chainEntry
	for i := protoStart; i < len(ps.stack); i++ {
		if ps.stack[i].withPrototype != nil {
			chain = append(chain, chainEntry{ps.stack[i].withPrototype, true})
		}
	}
	if curPrototype != nil {
		chain = append(chain, chainEntry{curPrototype, false})
	}
	chain = append(chain, chainEntry{curContext, false})

	const noMatch = -1
	minStart := noMatch
	matchFromWithProto := false
	var best *matchResult

	for _, ce := range chain {
		visited := make(map[*Context]bool)
		var occ []patOccurrence
		collectMatchPatterns(ce.ctx, visited, &occ)

		for _, o := range occ {
			pat := o.ctx.Patterns[o.index].(*MatchPattern)

			if matched[pat] {
				continue
			}

			if entry, ok := searchCache[pat]; ok {
				if !entry.found {
					continue
				}
				ms, _, _ := entry.region.Pos(0)
				if ms >= *start {
					if minStart == noMatch || ms < minStart {
						minStart = ms
						matchFromWithProto = ce.fromWithProto
						best = &matchResult{ctx: o.ctx, index: o.index, region: entry.region}
					}
					continue
				}
				// stale cache entry (match_start < *start): fall through and recompute.
			}

			usingRefs := false
			var re *regexp.Regexp
			if pat.HasCaptures {
				if top.captures == nil {
					continue
				}
				var err error
				re, err = compileWithBackrefs(pat.RegexStr, top.captures.region, top.captures.line)
				if err != nil {
					continue
				}
				usingRefs = true
			} else {
				re = pat.ensureRegex()
			}

			region, ok := re.Search(line, *start, len(line))
			if !ok {
				if !usingRefs {
					searchCache[pat] = searchCacheEntry{found: false}
				}
				continue
			}
			matchStart, matchEnd, _ := region.Pos(0)
			doesSomething := pat.Operation.Kind != MatchOpNone || matchStart != matchEnd
			if !usingRefs && doesSomething {
				searchCache[pat] = searchCacheEntry{found: true, region: region}
			}
			if doesSomething && (minStart == noMatch || matchStart < minStart) {
				minStart = matchStart
				matchFromWithProto = ce.fromWithProto
				best = &matchResult{ctx: o.ctx, index: o.index, region: region}
			}
		}
	}

	if best == nil {
		return false
	}

	_, matchEnd, _ := best.region.Pos(0)
	*start = matchEnd

	if matchFromWithProto {
		ps.protoStarts = append(ps.protoStarts, len(ps.stack))
	}

	ps.execPattern(line, best, curContext, matched, ops)
	return true
}

func appendOp(ops *[]ParseOp, offset int, op StackOp) {
	*ops = append(*ops, ParseOp{offset, op})
}

// execPattern emits the ops for the winning match and mutates the stack.
func (ps *ParseState) execPattern(line string, m *matchResult, levelContext *Context, matched map[*MatchPattern]bool, ops *[]ParseOp) {
	pat := m.ctx.Patterns[m.index].(*MatchPattern)
	matchStart, matchEnd, _ := m.region.Pos(0)

	if pat.Operation.Kind == MatchOpPush || pat.Operation.Kind == MatchOpSet {
		matched[pat] = true
	}

	pushMetaOps(true, matchStart, levelContext, pat.Operation, ops)

	for _, s := range pat.Scope {
		appendOp(ops, matchStart, PushOp(s))
	}

	if len(pat.Captures) > 0 {
		type sortable struct {
			offset int
			tie    int
			op     StackOp
		}
		var entries []sortable
		for _, cap := range pat.Captures {
			capStart, capEnd, ok := m.region.Pos(cap.Index)
			if !ok || capStart == capEnd {
				continue
			}
			for _, sc := range cap.Scopes {
				entries = append(entries, sortable{capStart, -(capEnd - capStart), PushOp(sc)})
			}
			entries = append(entries, sortable{capEnd, math.MinInt32, PopOp(len(cap.Scopes))})
		}
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].offset != entries[j].offset {
				return entries[i].offset < entries[j].offset
			}
			return entries[i].tie < entries[j].tie
		})
		for _, e := range entries {
			appendOp(ops, e.offset, e.op)
		}
	}

	if len(pat.Scope) > 0 {
		appendOp(ops, matchEnd, PopOp(len(pat.Scope)))
	}

	pushMetaOps(false, matchEnd, levelContext, pat.Operation, ops)

	ps.performOp(line, m.region, pat)
}

func clearOpFrom(ca ClearAmount) StackOp {
	if ca.Kind == ClearAll {
		return ClearAllOp()
	}
	return ClearTopNOp(ca.N)
}

// pushMetaOps implements the meta-scope policy of section 4.4.4: pops and
// pushes around a match so the scope stack always shows every active
// meta_scope from the root down to the innermost context, followed by the
// innermost context's meta_content_scope.
func pushMetaOps(initial bool, index int, curContext *Context, op MatchOperation, ops *[]ParseOp) {
	switch op.Kind {
	case MatchOpPop:
		var v []Scope
		if initial {
			v = curContext.MetaContentScope
		} else {
			v = curContext.MetaScope
		}
		if len(v) > 0 {
			appendOp(ops, index, PopOp(len(v)))
		}
		if !initial && curContext.ClearScopes != nil {
			appendOp(ops, index, RestoreOp())
		}

	case MatchOpPush, MatchOpSet:
		isSet := op.Kind == MatchOpSet
		if initial {
			for i := range op.Contexts {
				ctx := op.Contexts[i].Resolve()
				if !isSet && ctx.ClearScopes != nil {
					appendOp(ops, index, clearOpFrom(*ctx.ClearScopes))
				}
				for _, sc := range ctx.MetaScope {
					appendOp(ops, index, PushOp(sc))
				}
			}
		} else {
			repush := isSet && (len(curContext.MetaScope) > 0 || len(curContext.MetaContentScope) > 0)
			if !repush {
				for i := range op.Contexts {
					ctx := op.Contexts[i].Resolve()
					if len(ctx.MetaContentScope) > 0 || (ctx.ClearScopes != nil && isSet) {
						repush = true
						break
					}
				}
			}
			if repush {
				numToPop := 0
				for i := range op.Contexts {
					numToPop += len(op.Contexts[i].Resolve().MetaScope)
				}
				if isSet {
					numToPop += len(curContext.MetaContentScope) + len(curContext.MetaScope)
				}
				if numToPop > 0 {
					appendOp(ops, index, PopOp(numToPop))
				}
				for i := range op.Contexts {
					ctx := op.Contexts[i].Resolve()
					if isSet && ctx.ClearScopes != nil {
						appendOp(ops, index, clearOpFrom(*ctx.ClearScopes))
					}
					for _, sc := range ctx.MetaScope {
						appendOp(ops, index, PushOp(sc))
					}
					for _, sc := range ctx.MetaContentScope {
						appendOp(ops, index, PushOp(sc))
					}
				}
			}
		}

	case MatchOpNone:
	}
}

// performOp mutates the context stack per pat.Operation, after all its ops
// have already been appended.
func (ps *ParseState) performOp(line string, region *regexp.Region, pat *MatchPattern) {
	var ctxRefs []ContextReference
	switch pat.Operation.Kind {
	case MatchOpPush:
		ctxRefs = pat.Operation.Contexts
	case MatchOpSet:
		ps.stack = ps.stack[:len(ps.stack)-1]
		ctxRefs = pat.Operation.Contexts
	case MatchOpPop:
		ps.stack = ps.stack[:len(ps.stack)-1]
		return
	case MatchOpNone:
		return
	}

	for i := range ctxRefs {
		var proto *Context
		if i == 0 {
			proto = pat.WithPrototype
		}
		ctx := ctxRefs[i].Resolve()
		var caps *captureState
		if ctx.UsesBackrefs {
			caps = &captureState{region: region, line: line}
		}
		ps.stack = append(ps.stack, stateLevel{context: ctx, withPrototype: proto, captures: caps})
	}
}

// ensureRegex lazily wraps pat.RegexStr in our regex engine. Patterns with
// back-references are never compiled this way: they are recompiled from
// scratch per match with substituteBackrefs, since \N refers to a capture
// from the pattern that pushed the current context, not a group within
// this regex itself.
func (pat *MatchPattern) ensureRegex() *regexp.Regexp {
	if pat.regex == nil {
		pat.regex = regexp.New(pat.RegexStr)
	}
	return pat.regex
}

// compileWithBackrefs substitutes \1..\9 in regexStr with the
// (regex-escaped) text captured at the corresponding group of region
// within text, then compiles the result fresh -- matching
// MatchPattern::compile_with_refs.
func compileWithBackrefs(regexStr string, region *regexp.Region, text string) (*regexp.Regexp, error) {
	substituted := substituteBackrefs(regexStr, func(i int) (string, bool) {
		start, end, ok := region.Pos(i)
		if !ok {
			return "", false
		}
		return stdregexp.QuoteMeta(text[start:end]), true
	})
	return regexp.Compile(substituted)
}

// substituteBackrefs walks regexStr and replaces every \N (N a single
// decimal digit) with substituter(N), dropping the escape entirely if
// substituter reports nothing to substitute. Any other backslash escape is
// passed through unchanged.
func substituteBackrefs(regexStr string, substituter func(i int) (string, bool)) string {
	var b []byte
	lastWasEscape := false
	for _, c := range regexStr {
		switch {
		case lastWasEscape && c >= '0' && c <= '9':
			if sub, ok := substituter(int(c - '0')); ok {
				b = append(b, sub...)
			}
		case lastWasEscape:
			b = append(b, '\\')
			b = append(b, string(c)...)
		case c != '\\':
			b = append(b, string(c)...)
		}
		lastWasEscape = c == '\\' && !lastWasEscape
	}
	return string(b)
}

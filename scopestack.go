package syntax

import "math"

// MatchPower is a totally ordered match score: larger means a stronger
// selector match. Scores accumulate len(selector_scope) * 2^(ATOM_LEN_BITS*i)
// per matched position i, so a match at a deeper stack position always
// outweighs any combination of matches confined to shallower positions (up
// to a stack depth of about 17, per the system this module mirrors).
type MatchPower float64

// ClearKind distinguishes the two forms of StackOpClear.
type ClearKind int

const (
	ClearTopN ClearKind = iota
	ClearAll
)

// ClearAmount is the payload of a Clear op: either the top N scopes or all
// of them.
type ClearAmount struct {
	Kind ClearKind
	N    int
}

// StackOpKind tags the variant held by a StackOp.
type StackOpKind int

const (
	OpPush StackOpKind = iota
	OpPop
	OpClear
	OpRestore
	OpNoop
)

// StackOp is one step of the delta stream a parsed line emits. Push carries
// a Scope, Pop carries a count, Clear carries a ClearAmount; Restore and
// Noop carry nothing.
type StackOp struct {
	Kind  StackOpKind
	Scope Scope
	Count int
	Clear ClearAmount
}

func PushOp(s Scope) StackOp  { return StackOp{Kind: OpPush, Scope: s} }
func PopOp(n int) StackOp     { return StackOp{Kind: OpPop, Count: n} }
func ClearTopNOp(n int) StackOp {
	return StackOp{Kind: OpClear, Clear: ClearAmount{Kind: ClearTopN, N: n}}
}
func ClearAllOp() StackOp { return StackOp{Kind: OpClear, Clear: ClearAmount{Kind: ClearAll}} }
func RestoreOp() StackOp  { return StackOp{Kind: OpRestore} }
func NoopOp() StackOp     { return StackOp{Kind: OpNoop} }

// BasicOpKind is the kind carried by a BasicOp, the granular notification
// passed to an ApplyWithHook callback.
type BasicOpKind int

const (
	BasicPush BasicOpKind = iota
	BasicPop
)

// BasicOp is a single Push or Pop notification delivered by
// ScopeStack.ApplyWithHook for every elementary change a StackOp causes
// (a Clear or Restore can fan out into many of these).
type BasicOp struct {
	Kind  BasicOpKind
	Scope Scope
}

// ScopeStack is a mutable stack of scopes plus a side-stack of cleared
// frames (used by clear_scopes/Restore). It doubles as a scope selector:
// DoesMatch treats its own scopes as a selector pattern to test against
// another stack.
type ScopeStack struct {
	scopes     []Scope
	clearStack [][]Scope
}

// NewScopeStack returns an empty stack.
func NewScopeStack() *ScopeStack {
	return &ScopeStack{}
}

// ScopeStackFromScopes builds a stack directly from scopes, with no
// clear-frame history (a stack built this way errors if a Restore op is
// applied to it before any Clear op).
func ScopeStackFromScopes(scopes []Scope) *ScopeStack {
	cp := append([]Scope(nil), scopes...)
	return &ScopeStack{scopes: cp}
}

// Push appends s to the top of the stack.
func (st *ScopeStack) Push(s Scope) { st.scopes = append(st.scopes, s) }

// Pop removes the top scope, if any.
func (st *ScopeStack) Pop() {
	if len(st.scopes) > 0 {
		st.scopes = st.scopes[:len(st.scopes)-1]
	}
}

// Len returns the current stack height.
func (st *ScopeStack) Len() int { return len(st.scopes) }

// AsSlice returns the current stack scopes, bottom first. The returned
// slice aliases internal state and must not be mutated.
func (st *ScopeStack) AsSlice() []Scope { return st.scopes }

// BottomN returns the bottom n scopes of the stack.
func (st *ScopeStack) BottomN(n int) []Scope { return st.scopes[:n] }

// Apply mutates st according to op. Equivalent to
// ApplyWithHook(op, func(BasicOp){}).
func (st *ScopeStack) Apply(op StackOp) error {
	return st.ApplyWithHook(op, func(BasicOp) {})
}

// ApplyWithHook mutates st according to op, invoking hook once per
// elementary Push/Pop the operation causes. Clear and Restore can invoke
// hook multiple times. Returns ErrNoClearedFrames if a Restore op is
// applied with nothing on the clear-frame side-stack.
func (st *ScopeStack) ApplyWithHook(op StackOp, hook func(BasicOp)) error {
	switch op.Kind {
	case OpPush:
		st.scopes = append(st.scopes, op.Scope)
		hook(BasicOp{Kind: BasicPush, Scope: op.Scope})
	case OpPop:
		for i := 0; i < op.Count; i++ {
			st.Pop()
			hook(BasicOp{Kind: BasicPop})
		}
	case OpClear:
		var cleared []Scope
		switch op.Clear.Kind {
		case ClearTopN:
			n := op.Clear.N
			if n > len(st.scopes) {
				n = len(st.scopes)
			}
			toLeave := len(st.scopes) - n
			cleared = append([]Scope(nil), st.scopes[toLeave:]...)
			st.scopes = st.scopes[:toLeave]
		case ClearAll:
			cleared = st.scopes
			st.scopes = nil
		}
		st.clearStack = append(st.clearStack, cleared)
		for range cleared {
			hook(BasicOp{Kind: BasicPop})
		}
	case OpRestore:
		if len(st.clearStack) == 0 {
			return ErrNoClearedFrames
		}
		top := st.clearStack[len(st.clearStack)-1]
		st.clearStack = st.clearStack[:len(st.clearStack)-1]
		for _, s := range top {
			st.scopes = append(st.scopes, s)
			hook(BasicOp{Kind: BasicPush, Scope: s})
		}
	case OpNoop:
	}
	return nil
}

// DoesMatch treats st's own scopes as an ordered selector and tests it
// against stack, walking stack left to right. Each selector position must
// be a prefix of some scope at or after the previous match's position;
// every selector position contributes
// len(selector_scope) * 2^(ATOM_LEN_BITS*i) to the score when it matches at
// stack position i. Returns the accumulated score once every selector
// position has matched, or (0, false) if the selector is never fully
// consumed.
func (st *ScopeStack) DoesMatch(stack []Scope) (MatchPower, bool) {
	if len(st.scopes) == 0 {
		return 0, false
	}
	selIndex := 0
	var score float64
	for i, scope := range stack {
		sel := st.scopes[selIndex]
		if sel.IsPrefixOf(scope) {
			score += float64(sel.Len()) * math.Exp2(float64(ATOM_LEN_BITS*i))
			selIndex++
			if selIndex >= len(st.scopes) {
				return MatchPower(score), true
			}
		}
	}
	return 0, false
}

// Scopes exposes the current scope slice for read-only iteration, mirroring
// the iterator-based accessors used elsewhere in this module.
func (st *ScopeStack) Scopes() []Scope { return st.scopes }

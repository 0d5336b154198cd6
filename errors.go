package rete

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Session operations. Callers should compare
// with errors.Is rather than on message text.
var (
	// ErrAlreadyExists is returned by insert/try_insert when a fact's
	// identity key is already present in working memory.
	ErrAlreadyExists = errors.New("rete: fact already exists")

	// ErrUnknownFact is returned by update/retract (and their try_
	// variants when they choose to report it) when a fact's identity key
	// is not present in working memory.
	ErrUnknownFact = errors.New("rete: unknown fact")

	// ErrNilFact is returned when a nil fact is passed to an operation
	// that requires a concrete value.
	ErrNilFact = errors.New("rete: nil fact")

	// ErrFactNotComparable is returned by DefaultFactKey when a
	// value-typed fact contains a non-comparable field (slice, map, func)
	// and no FactKeyFunc was supplied to the session.
	ErrFactNotComparable = errors.New("rete: fact type is not comparable")

	// ErrSessionHalted is surfaced through events when fire() stops
	// because an action called Halt.
	ErrSessionHalted = errors.New("rete: fire loop halted")
)

// ConditionEvaluationError wraps an error returned by an alpha or beta
// predicate during propagation. It is the error surfaced to the caller of
// insert/update/retract after the engine rolls back to pre-call state (see
// Session.runTopLevel). A predicate that panics is not wrapped.
type ConditionEvaluationError struct {
	NodeID NodeID
	Fact   any
	Err    error
}

func (e *ConditionEvaluationError) Error() string {
	return fmt.Sprintf("rete: condition evaluation failed at node %d: %v", e.NodeID, e.Err)
}

func (e *ConditionEvaluationError) Unwrap() error { return e.Err }

// ActionEvaluationError wraps an error returned by a rule action during
// fire(); an action that panics is not wrapped. The activation that triggered it is considered consumed
// and the fire loop stops.
type ActionEvaluationError struct {
	RuleID RuleID
	Err    error
}

func (e *ActionEvaluationError) Error() string {
	return fmt.Sprintf("rete: action evaluation failed for rule %q: %v", e.RuleID, e.Err)
}

func (e *ActionEvaluationError) Unwrap() error { return e.Err }

// conditionAbort is the internal panic payload used to unwind a
// propagation when a predicate fails. It is always recovered by the
// Session method that started the top-level call; it must never escape
// to a caller as a raw panic.
type conditionAbort struct {
	err *ConditionEvaluationError
}

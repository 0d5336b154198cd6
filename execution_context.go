package rete

// Operation names the top-level Session call currently in flight. Used for
// error context and for the events the aggregator publishes.
type Operation int

const (
	OpNone Operation = iota
	OpInsert
	OpUpdate
	OpRetract
	OpFire
)

func (o Operation) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpRetract:
		return "retract"
	case OpFire:
		return "fire"
	default:
		return "none"
	}
}

// ExecutionContext is per-propagation scratch threaded by reference to
// every node during a single top-level operation. It is not long-lived:
// Session.runTopLevel creates a fresh instance for each top-level call, and
// no instance is reused across calls.
type ExecutionContext struct {
	session *Session
	wm      *WorkingMemory
	agenda  *Agenda
	events  *EventAggregator

	op    Operation
	undo  *undoLog
	seqNo *sequenceCounter

	// halted is set by an action via ActionContext.Halt during fire() to
	// stop the fire loop after the current rule finishes.
	halted     bool
	haltReason string
}

func newExecutionContext(s *Session) *ExecutionContext {
	return &ExecutionContext{
		session: s,
		wm:      s.wm,
		agenda:  s.agenda,
		events:  s.events,
		undo:    &undoLog{},
		seqNo:   s.seqNo,
	}
}

func (c *ExecutionContext) begin(op Operation) {
	c.op = op
	c.undo.reset()
	c.halted = false
	c.haltReason = ""
}

func (c *ExecutionContext) reportConditionFailure(nodeID NodeID, fact any, err error) *ConditionEvaluationError {
	wrapped := &ConditionEvaluationError{NodeID: nodeID, Fact: fact, Err: err}
	c.session.logConditionFailure(wrapped)
	c.events.publish(Event{Kind: EventConditionFailed, Err: wrapped})
	return wrapped
}

func (c *ExecutionContext) reportActionFailure(ruleID RuleID, err error) *ActionEvaluationError {
	wrapped := &ActionEvaluationError{RuleID: ruleID, Err: err}
	c.events.publish(Event{Kind: EventActionFailed, RuleID: ruleID, Err: wrapped})
	return wrapped
}

// sequenceCounter hands out monotonically increasing sequence numbers used
// as the agenda's FIFO tie-breaker.
type sequenceCounter struct {
	next uint64
}

func (c *sequenceCounter) take() uint64 {
	c.next++
	return c.next
}

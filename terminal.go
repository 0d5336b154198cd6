package rete

// Action is the right-hand side of a rule: arbitrary host code run against
// one matched activation. A returned error is treated as an
// action_evaluation failure: it skips the activation's remaining actions,
// stops the fire loop, and Fire rolls back every working-memory and network
// mutation made during that call.
type Action func(ctx *ActionContext) error

// ActionContext is the handle an Action receives. It exposes the matched
// facts and bindings, the mutation surface a production rule typically
// needs (an action may itself insert, update, or retract further facts),
// and the cooperative Halt signal.
type ActionContext struct {
	Activation *Activation
	session    *Session
	ctx        *ExecutionContext
}

// Facts returns the matched fact values in pattern order.
func (a *ActionContext) Facts() []any { return a.Activation.Facts() }

// Binding looks up a value projected by a binding node.
func (a *ActionContext) Binding(name string) (any, bool) { return a.Activation.Binding(name) }

// Insert, Update and Retract let an action mutate working memory as part of
// the rule it belongs to; they reuse the enclosing propagation's execution
// context rather than opening a new top-level call, so their effects are
// covered by the same rollback scope if a later step in the same fire cycle
// fails.
func (a *ActionContext) Insert(fact any) error  { return a.session.insertWithin(a.ctx, fact) }
func (a *ActionContext) Update(fact any) error  { return a.session.updateWithin(a.ctx, fact) }
func (a *ActionContext) Retract(fact any) error { return a.session.retractWithin(a.ctx, fact) }

// Halt requests that the fire loop stop after the current activation
// finishes executing. reason is carried on the supplemental EventFireHalted event
// purely as diagnostic metadata.
func (a *ActionContext) Halt(reason string) {
	a.ctx.halted = true
	a.ctx.haltReason = reason
}

// CompiledRule is a fully wired rule: a name, agenda placement, and the
// ordered actions to run when an activation fires. Conditions
// and joins live in the alpha/beta network upstream of the rule's
// TerminalNode; CompiledRule itself carries only what the agenda and the
// fire loop need.
type CompiledRule struct {
	ID          RuleID
	Priority    int
	AgendaGroup string
	Actions     []Action
}

// TerminalNode is the leaf of a rule's beta path: every tuple it receives
// is a complete match for its rule. It turns BetaAssert/BetaRetract into
// agenda add/remove, and BetaUpdate into an agenda modify.
type TerminalNode struct {
	id   NodeID
	rule *CompiledRule
}

func newTerminalNode(id NodeID, rule *CompiledRule) *TerminalNode {
	return &TerminalNode{id: id, rule: rule}
}

func (n *TerminalNode) ID() NodeID { return n.id }

func (n *TerminalNode) BetaAssert(tuples []*Tuple, ctx *ExecutionContext) {
	for _, t := range tuples {
		a := &Activation{Rule: n.rule, Tuple: t, Seq: ctx.seqNo.take()}
		ctx.agenda.add(a, ctx)
		ctx.events.publish(Event{Kind: EventActivationCreated, Activation: a, RuleID: n.rule.ID})
	}
}

func (n *TerminalNode) BetaRetract(tuples []*Tuple, ctx *ExecutionContext) {
	for _, t := range tuples {
		if a := ctx.agenda.remove(n.rule, t, ctx); a != nil {
			ctx.events.publish(Event{Kind: EventActivationDeleted, Activation: a, RuleID: n.rule.ID})
		}
	}
}

func (n *TerminalNode) BetaUpdate(tuples []*Tuple, ctx *ExecutionContext) {
	for _, t := range tuples {
		if a := ctx.agenda.modify(n.rule, t, ctx); a != nil {
			ctx.events.publish(Event{Kind: EventActivationUpdated, Activation: a, RuleID: n.rule.ID})
		}
	}
}

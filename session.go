package rete

import "go.uber.org/zap"

// TryOutcome reports what happened to one fact in a try_insert_all /
// try_update_all / try_retract_all call: unlike the
// plain _all variants, which abort the whole call and roll back entirely
// on the first failure, the try_ variants keep going and report per-fact
// results, rolling back only the failed fact's own partial propagation.
type TryOutcome struct {
	Fact any
	Err  error
}

// sessionConfig collects SessionOption values. Functional options were
// chosen over a file- or environment-backed config layer (viper, toml)
// because a rule session has no business owning persisted on-disk state or
// environment variables; every knob here is supplied by the embedding host
// at construction time.
type sessionConfig struct {
	keyFn    FactKeyFunc
	logger   *zap.Logger
	resolver DependencyResolver
}

// SessionOption configures a Session at construction.
type SessionOption func(*sessionConfig)

// WithFactKey overrides the default dual-identity fact key function.
func WithFactKey(fn FactKeyFunc) SessionOption {
	return func(c *sessionConfig) { c.keyFn = fn }
}

// WithLogger attaches a zap logger for internal diagnostics. The default
// is a no-op logger.
func WithLogger(l *zap.Logger) SessionOption {
	return func(c *sessionConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDependencyResolver attaches the resolver rule actions/conditions use
// to reach host collaborators by name.
func WithDependencyResolver(r DependencyResolver) SessionOption {
	return func(c *sessionConfig) { c.resolver = r }
}

// Session is the engine facade: insert/update/retract facts, fire matched
// rules, query working memory, and subscribe to lifecycle events. A
// Session owns one compiled Network and one WorkingMemory; both are
// private to the session.
type Session struct {
	net    *Network
	wm     *WorkingMemory
	agenda *Agenda
	events *EventAggregator
	seqNo  *sequenceCounter
	log    *zap.Logger

	resolver DependencyResolver
}

// NewSession creates a session bound to a compiled network.
func NewSession(net *Network, opts ...SessionOption) *Session {
	cfg := sessionConfig{logger: newNopLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Session{
		net:      net,
		wm:       newWorkingMemory(cfg.keyFn),
		agenda:   newAgenda(),
		events:   NewEventAggregator(),
		seqNo:    &sequenceCounter{},
		log:      cfg.logger,
		resolver: cfg.resolver,
	}
}

// Events returns the session's event aggregator for subscribing to
// lifecycle events.
func (s *Session) Events() *EventAggregator { return s.events }

// Resolve looks up a host-provided dependency by name. It returns
// ErrDependencyNotFound if the session has no resolver configured or the
// resolver has no value under name.
func (s *Session) Resolve(name string) (any, error) {
	if s.resolver == nil {
		return nil, ErrDependencyNotFound
	}
	return s.resolver.Resolve(name)
}

// runTopLevel wraps fn in rollback semantics: any returned error, or any
// conditionAbort panic raised deep inside propagation, unwinds every
// mutation fn's call performed before returning the error to the caller
//.
func (s *Session) runTopLevel(op Operation, fn func(ctx *ExecutionContext) error) (err error) {
	ctx := newExecutionContext(s)
	ctx.begin(op)
	defer func() {
		if r := recover(); r != nil {
			if ca, ok := r.(conditionAbort); ok {
				err = ca.err
			} else {
				ctx.undo.unwind()
				panic(r)
			}
		}
		if err != nil {
			ctx.undo.unwind()
		}
	}()
	err = fn(ctx)
	return
}

func (s *Session) doInsert(ctx *ExecutionContext, fact any) (*factEntry, error) {
	if fact == nil {
		return nil, ErrNilFact
	}
	existing, err := s.wm.lookup(fact)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}
	key, err := s.wm.keyFn(fact)
	if err != nil {
		return nil, err
	}
	fe := newFactEntry(newFactID(), key, fact)
	ctx.events.publish(Event{Kind: EventFactInserting, Fact: fact})
	s.wm.put(ctx.undo, fe)
	s.net.alpha.propagateAssert([]*factEntry{fe}, ctx)
	ctx.events.publish(Event{Kind: EventFactInserted, Fact: fact, FactID: fe.id})
	return fe, nil
}

func (s *Session) doUpdate(ctx *ExecutionContext, fact any) (*factEntry, error) {
	if fact == nil {
		return nil, ErrNilFact
	}
	fe, err := s.wm.lookup(fact)
	if err != nil {
		return nil, err
	}
	if fe == nil {
		return nil, ErrUnknownFact
	}
	ctx.events.publish(Event{Kind: EventFactUpdating, Fact: fact, FactID: fe.id})
	prevValue := fe.value
	fe.value = fact
	ctx.undo.push(func() { fe.value = prevValue })
	s.net.alpha.propagateUpdate([]*factEntry{fe}, ctx)
	ctx.events.publish(Event{Kind: EventFactUpdated, Fact: fact, FactID: fe.id})
	return fe, nil
}

func (s *Session) doRetract(ctx *ExecutionContext, fact any) (*factEntry, error) {
	if fact == nil {
		return nil, ErrNilFact
	}
	fe, err := s.wm.lookup(fact)
	if err != nil {
		return nil, err
	}
	if fe == nil {
		return nil, ErrUnknownFact
	}
	ctx.events.publish(Event{Kind: EventFactRetracting, Fact: fact, FactID: fe.id})
	s.wm.remove(ctx.undo, fe)
	s.net.alpha.propagateRetract([]*factEntry{fe}, ctx)
	ctx.events.publish(Event{Kind: EventFactRetracted, Fact: fact, FactID: fe.id})
	return fe, nil
}

// Insert adds a new fact to working memory and propagates it through the
// network.
func (s *Session) Insert(fact any) error {
	return s.runTopLevel(OpInsert, func(ctx *ExecutionContext) error {
		_, err := s.doInsert(ctx, fact)
		return err
	})
}

// InsertAll inserts every fact as a single top-level call: the facts are
// propagated one at a time, depth-first to completion before the next
//, and a single failure rolls back
// every fact inserted earlier in the same call.
func (s *Session) InsertAll(facts []any) error {
	return s.runTopLevel(OpInsert, func(ctx *ExecutionContext) error {
		for _, f := range facts {
			if _, err := s.doInsert(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// TryInsertAll is the lenient counterpart of InsertAll: every fact is
// attempted regardless of earlier failures, and each fact's own partial
// propagation (and only that fact's) is rolled back on failure
//.
func (s *Session) TryInsertAll(facts []any) []TryOutcome {
	out := make([]TryOutcome, len(facts))
	_ = s.runTopLevel(OpInsert, func(ctx *ExecutionContext) error {
		for i, f := range facts {
			out[i] = s.tryOne(ctx, f, s.doInsert)
		}
		return nil
	})
	return out
}

// TryInsert is TryInsertAll for a single fact.
func (s *Session) TryInsert(fact any) error {
	outs := s.TryInsertAll([]any{fact})
	return outs[0].Err
}

// Update propagates an in-place change to fact through the network as an
// update: tuples that contain it keep their identity and are forwarded as
// updates. Alpha predicates are not re-run, so the fact keeps the alpha
// memberships it had before the call; a change that flips an alpha
// predicate does not retract or assert any tuple. The fact is matched to its
// working-memory entry by identity, not by value, so the same pointer (or
// the same value key) must be passed back.
func (s *Session) Update(fact any) error {
	return s.runTopLevel(OpUpdate, func(ctx *ExecutionContext) error {
		_, err := s.doUpdate(ctx, fact)
		return err
	})
}

// UpdateAll is the batch counterpart of Update, sharing one rollback scope.
func (s *Session) UpdateAll(facts []any) error {
	return s.runTopLevel(OpUpdate, func(ctx *ExecutionContext) error {
		for _, f := range facts {
			if _, err := s.doUpdate(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// TryUpdateAll is the lenient counterpart of UpdateAll.
func (s *Session) TryUpdateAll(facts []any) []TryOutcome {
	out := make([]TryOutcome, len(facts))
	_ = s.runTopLevel(OpUpdate, func(ctx *ExecutionContext) error {
		for i, f := range facts {
			out[i] = s.tryOne(ctx, f, s.doUpdate)
		}
		return nil
	})
	return out
}

// TryUpdate is TryUpdateAll for a single fact.
func (s *Session) TryUpdate(fact any) error {
	outs := s.TryUpdateAll([]any{fact})
	return outs[0].Err
}

// Retract removes a fact from working memory and every alpha/beta memory
// it had reached.
func (s *Session) Retract(fact any) error {
	return s.runTopLevel(OpRetract, func(ctx *ExecutionContext) error {
		_, err := s.doRetract(ctx, fact)
		return err
	})
}

// RetractAll is the batch counterpart of Retract, sharing one rollback
// scope.
func (s *Session) RetractAll(facts []any) error {
	return s.runTopLevel(OpRetract, func(ctx *ExecutionContext) error {
		for _, f := range facts {
			if _, err := s.doRetract(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// TryRetractAll is the lenient counterpart of RetractAll.
func (s *Session) TryRetractAll(facts []any) []TryOutcome {
	out := make([]TryOutcome, len(facts))
	_ = s.runTopLevel(OpRetract, func(ctx *ExecutionContext) error {
		for i, f := range facts {
			out[i] = s.tryOne(ctx, f, s.doRetract)
		}
		return nil
	})
	return out
}

// TryRetract is TryRetractAll for a single fact.
func (s *Session) TryRetract(fact any) error {
	outs := s.TryRetractAll([]any{fact})
	return outs[0].Err
}

// tryOne runs one fact through op, catching both a returned error and a
// conditionAbort panic, and unwinding only the undo entries op itself
// pushed (a partial rollback scoped to this one fact, not the whole try_
// call).
func (s *Session) tryOne(ctx *ExecutionContext, fact any, op func(*ExecutionContext, any) (*factEntry, error)) (outcome TryOutcome) {
	outcome.Fact = fact
	mark := ctx.undo.mark()
	defer func() {
		if r := recover(); r != nil {
			ca, ok := r.(conditionAbort)
			if !ok {
				ctx.undo.unwindTo(mark)
				panic(r)
			}
			outcome.Err = ca.err
			ctx.undo.unwindTo(mark)
		}
	}()
	if _, err := op(ctx, fact); err != nil {
		outcome.Err = err
		ctx.undo.unwindTo(mark)
	}
	return outcome
}

// insertWithin, updateWithin and retractWithin let an Action mutate
// working memory using the enclosing fire cycle's own execution context,
// so the mutation is covered by the same rollback scope as the rest of the
// fire() call rather than opening a nested top-level call.
func (s *Session) insertWithin(ctx *ExecutionContext, fact any) error {
	_, err := s.doInsert(ctx, fact)
	return err
}

func (s *Session) updateWithin(ctx *ExecutionContext, fact any) error {
	_, err := s.doUpdate(ctx, fact)
	return err
}

func (s *Session) retractWithin(ctx *ExecutionContext, fact any) error {
	_, err := s.doRetract(ctx, fact)
	return err
}

// Fire runs the match-resolve-act cycle until the agenda is empty or an
// action calls Halt: pop the highest-priority, earliest
// activation, run its rule's actions, and repeat. The whole cycle is one
// top-level call; an action evaluation failure rolls back every fact
// mutation made by every activation fired earlier in this same call, same
// as a failed insert/update/retract.
func (s *Session) Fire() error {
	return s.runTopLevel(OpFire, func(ctx *ExecutionContext) error {
		for {
			if ctx.halted {
				ctx.events.publish(Event{Kind: EventFireHalted, Reason: ctx.haltReason, Err: ErrSessionHalted})
				return nil
			}
			a := ctx.agenda.popNext()
			if a == nil {
				return nil
			}
			ctx.events.publish(Event{Kind: EventRuleFiring, Activation: a, RuleID: a.Rule.ID})
			actx := &ActionContext{Activation: a, session: s, ctx: ctx}
			for _, action := range a.Rule.Actions {
				if err := action(actx); err != nil {
					wrapped := ctx.reportActionFailure(a.Rule.ID, err)
					s.logActionFailure(wrapped)
					return wrapped
				}
			}
			s.logRuleFired(a.Rule.ID)
			ctx.events.publish(Event{Kind: EventRuleFired, Activation: a, RuleID: a.Rule.ID})
		}
	})
}

// HasActiveActivations reports whether any agenda group holds a pending
// activation. Fire drains only the groups on the focus stack, so pending
// activations in a group that is not on the stack make this true without
// giving Fire any work.
func (s *Session) HasActiveActivations() bool { return s.agenda.hasActive() }

// SetFocus pushes an agenda group onto the focus stack, directing the next
// Fire calls to drain it before falling back to groups beneath it
//.
func (s *Session) SetFocus(group string) { s.agenda.setFocus(group) }

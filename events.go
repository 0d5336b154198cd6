package rete

// EventKind enumerates the lifecycle events published by the session's
// EventAggregator.
type EventKind int

const (
	EventFactInserting EventKind = iota
	EventFactInserted
	EventFactUpdating
	EventFactUpdated
	EventFactRetracting
	EventFactRetracted

	EventActivationCreated
	EventActivationUpdated
	EventActivationDeleted

	EventRuleFiring
	EventRuleFired

	EventConditionFailed
	EventActionFailed

	// EventFireHalted carries the optional halt reason an action attaches
	// via ActionContext.Halt, purely as metadata. It does not change
	// fire-loop semantics.
	EventFireHalted
)

// Event is the payload delivered to subscribers. Only the fields relevant
// to Kind are populated.
type Event struct {
	Kind EventKind

	Fact       any
	FactID     FactID
	Activation *Activation
	RuleID     RuleID
	Reason     string
	Err        error
}

// Subscriber receives events synchronously, in registration order. A
// subscriber that panics is not recovered by the aggregator: the panic
// propagates verbatim to whatever Session call triggered the event. The
// engine never swallows a subscriber panic.
type Subscriber func(Event)

// EventAggregator fans lifecycle events to subscribers using a synchronous
// callback idiom, generalized from a single pattern-repeated callback to
// the full lifecycle-event surface a rule session publishes.
type EventAggregator struct {
	subscribers []Subscriber
}

func NewEventAggregator() *EventAggregator {
	return &EventAggregator{}
}

// Subscribe registers a subscriber and returns an unsubscribe function.
func (a *EventAggregator) Subscribe(s Subscriber) (unsubscribe func()) {
	a.subscribers = append(a.subscribers, s)
	idx := len(a.subscribers) - 1
	return func() {
		if idx < len(a.subscribers) {
			a.subscribers[idx] = nil
		}
	}
}

func (a *EventAggregator) publish(e Event) {
	for _, s := range a.subscribers {
		if s == nil {
			continue
		}
		s(e)
	}
}

package rete

// Activation is a rule matched against a specific tuple of facts, pending
// or already executed on the agenda.
type Activation struct {
	Rule   *CompiledRule
	Tuple  *Tuple
	Seq    uint64
	active bool
}

// Facts returns the bound fact values for this activation's match, in
// pattern order.
func (a *Activation) Facts() []any { return a.Tuple.Facts() }

// Binding looks up a value projected by a binding node along this
// activation's match path.
func (a *Activation) Binding(name string) (any, bool) { return a.Tuple.Binding(name) }

// activationKey identifies an activation by its rule and tuple lineage: the
// same rule matched against the same tuple is the same activation,
// regardless of how many times it is recomputed.
type activationKey struct {
	rule  *CompiledRule
	tuple *Tuple
}

func newActivationKey(a *Activation) activationKey {
	return activationKey{rule: a.Rule, tuple: a.Tuple}
}

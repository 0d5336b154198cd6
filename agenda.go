package rete

import "container/heap"

// DefaultAgendaGroup is the group every rule belongs to unless its
// CompiledRule names another.
const DefaultAgendaGroup = "MAIN"

// activationHeap is a container/heap.Interface ordering activations by
// descending priority, then ascending sequence number. No pack
// example or ecosystem library offers an indexed, removable priority queue
// matching this tie-break rule, so this is built directly on
// container/heap (DESIGN.md: ambient stack, stdlib justification).
type activationHeap []*Activation

func (h activationHeap) Len() int { return len(h) }
func (h activationHeap) Less(i, j int) bool {
	if h[i].Rule.Priority != h[j].Rule.Priority {
		return h[i].Rule.Priority > h[j].Rule.Priority
	}
	return h[i].Seq < h[j].Seq
}
func (h activationHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *activationHeap) Push(x any)        { *h = append(*h, x.(*Activation)) }
func (h *activationHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// agendaGroup holds one agenda group's pending activations, indexed by
// activation key so remove/modify don't need a linear scan.
type agendaGroup struct {
	name  string
	queue activationHeap
	index map[activationKey]*Activation
}

func newAgendaGroup(name string) *agendaGroup {
	return &agendaGroup{name: name, index: make(map[activationKey]*Activation)}
}

// Agenda is the priority+FIFO activation queue, extended with an
// agenda-group focus stack. Only the group
// currently on top of the focus stack is eligible for pop_next; an empty
// top group is popped off the stack automatically, falling back to the
// group beneath it, down to DefaultAgendaGroup which is never popped.
type Agenda struct {
	groups     map[string]*agendaGroup
	focusStack []string
}

func newAgenda() *Agenda {
	a := &Agenda{groups: make(map[string]*agendaGroup)}
	a.focusStack = []string{DefaultAgendaGroup}
	a.groups[DefaultAgendaGroup] = newAgendaGroup(DefaultAgendaGroup)
	return a
}

func (ag *Agenda) groupFor(name string) *agendaGroup {
	if name == "" {
		name = DefaultAgendaGroup
	}
	g, ok := ag.groups[name]
	if !ok {
		g = newAgendaGroup(name)
		ag.groups[name] = g
	}
	return g
}

// add inserts a new activation. ctx.undo registers the inverse so a
// rolled-back top-level call leaves the agenda exactly as it found it.
func (ag *Agenda) add(a *Activation, ctx *ExecutionContext) {
	g := ag.groupFor(a.Rule.AgendaGroup)
	key := newActivationKey(a)
	if _, exists := g.index[key]; exists {
		return
	}
	a.active = true
	g.index[key] = a
	heap.Push(&g.queue, a)
	ctx.undo.push(func() { ag.removeExact(g, a) })
}

func (ag *Agenda) removeExact(g *agendaGroup, a *Activation) {
	key := newActivationKey(a)
	if _, ok := g.index[key]; !ok {
		return
	}
	delete(g.index, key)
	a.active = false
	for i, v := range g.queue {
		if v == a {
			heap.Remove(&g.queue, i)
			break
		}
	}
}

// remove deletes the activation for (rule, tuple) if present, returning it
// for event publication, or nil if it was never on the agenda (e.g. the
// rule already fired and was not re-matched).
func (ag *Agenda) remove(rule *CompiledRule, tuple *Tuple, ctx *ExecutionContext) *Activation {
	g := ag.groupFor(rule.AgendaGroup)
	key := activationKey{rule: rule, tuple: tuple}
	a, ok := g.index[key]
	if !ok {
		return nil
	}
	ag.removeExact(g, a)
	ctx.undo.push(func() {
		g.index[key] = a
		a.active = true
		heap.Push(&g.queue, a)
	})
	return a
}

// modify re-evaluates an existing activation in place: it reassigns the
// activation's sequence number to now and reorders the heap, so an
// activation whose match was refreshed by a later update is treated as
// freshly created for FIFO tie-breaking against same-priority activations,
// rather than keeping the stale position of its original match.
func (ag *Agenda) modify(rule *CompiledRule, tuple *Tuple, ctx *ExecutionContext) *Activation {
	g := ag.groupFor(rule.AgendaGroup)
	key := activationKey{rule: rule, tuple: tuple}
	a, ok := g.index[key]
	if !ok {
		return nil
	}
	prevSeq := a.Seq
	a.Seq = ctx.seqNo.take()
	fixHeapPosition(&g.queue, a)
	ctx.undo.push(func() {
		a.Seq = prevSeq
		fixHeapPosition(&g.queue, a)
	})
	return a
}

// fixHeapPosition restores heap order after a's sort key changed in place.
func fixHeapPosition(h *activationHeap, a *Activation) {
	for i, v := range *h {
		if v == a {
			heap.Fix(h, i)
			return
		}
	}
}

// currentGroup returns the topmost non-empty agenda group, popping
// exhausted groups off the focus stack (never popping the default group).
func (ag *Agenda) currentGroup() *agendaGroup {
	for len(ag.focusStack) > 1 {
		top := ag.groupFor(ag.focusStack[len(ag.focusStack)-1])
		if top.queue.Len() > 0 {
			return top
		}
		ag.focusStack = ag.focusStack[:len(ag.focusStack)-1]
	}
	return ag.groupFor(ag.focusStack[0])
}

// setFocus pushes an agenda group onto the focus stack, making it the
// source of the next pop_next call.
func (ag *Agenda) setFocus(group string) {
	ag.focusStack = append(ag.focusStack, group)
}

// hasActive reports whether any activation remains pending, across every
// agenda group.
func (ag *Agenda) hasActive() bool {
	for _, g := range ag.groups {
		if g.queue.Len() > 0 {
			return true
		}
	}
	return false
}

// popNext removes and returns the highest-priority, earliest activation in
// the currently focused agenda group, or nil if nothing is pending there
// and every group above the default is exhausted.
func (ag *Agenda) popNext() *Activation {
	g := ag.currentGroup()
	if g.queue.Len() == 0 {
		return nil
	}
	a := heap.Pop(&g.queue).(*Activation)
	delete(g.index, newActivationKey(a))
	a.active = false
	return a
}

// clear empties every agenda group and resets the focus stack to the
// default group leaves the agenda empty when it
// returns normally).
func (ag *Agenda) clear() {
	ag.groups = map[string]*agendaGroup{DefaultAgendaGroup: newAgendaGroup(DefaultAgendaGroup)}
	ag.focusStack = []string{DefaultAgendaGroup}
}

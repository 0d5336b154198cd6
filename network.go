package rete

import "reflect"

// Network is the compiled rule network: an arena of alpha and beta nodes
// addressed by NodeID, plus the shared intern table that keeps tuple
// lineage memory proportional to match count rather than node count.
// Every node is registered under its NodeID so a snapshot visitor can walk
// every node from the registry alone; the edges between nodes are direct
// references (see NodeID in identity.go).
type Network struct {
	alpha   *AlphaNetwork
	intern  *internTable
	nextID  NodeID
	nodes   map[NodeID]any
	rules   map[RuleID]*CompiledRule
	ordered []RuleID // registration order, for deterministic snapshot output
}

func newNetwork() *Network {
	return &Network{
		alpha:  newAlphaNetwork(),
		intern: newInternTable(),
		nodes:  make(map[NodeID]any),
		rules:  make(map[RuleID]*CompiledRule),
	}
}

func (n *Network) allocID() NodeID {
	n.nextID++
	return n.nextID
}

func (n *Network) register(id NodeID, node any) {
	n.nodes[id] = node
}

// NetworkBuilder is the programmatic construction API a host uses to wire a
// compiled rule: declare the fact types and predicates each pattern needs,
// chain joins/not/exists/aggregate/binding nodes, and terminate into a
// CompiledRule. It exists because a rule-authoring DSL or compiler is out
// of scope: hosts, tests, and examples build networks by calling this API
// directly rather than parsing one from source text.
type NetworkBuilder struct {
	net *Network
}

// NewNetworkBuilder starts a new, empty rule network.
func NewNetworkBuilder() *NetworkBuilder {
	return &NetworkBuilder{net: newNetwork()}
}

// AlphaRoot declares a new type-discriminated entry point for facts
// assignable to declType (a concrete struct/pointer type, or an interface
// type). Every call creates and registers a new root selection node, even
// for a declType already registered; a fact of that type is dispatched to
// every such root.
func (b *NetworkBuilder) AlphaRoot(declType reflect.Type, predicate AlphaPredicate) *AlphaSelectionNode {
	id := b.net.allocID()
	node := &AlphaSelectionNode{id: id, predicate: predicate}
	b.net.register(id, node)
	b.net.alpha.registerSubRoot(declType, node)
	return node
}

// AlphaSelect chains another predicate after an existing alpha node.
func (b *NetworkBuilder) AlphaSelect(parent AlphaConsumer, predicate AlphaPredicate) *AlphaSelectionNode {
	id := b.net.allocID()
	node := &AlphaSelectionNode{id: id, predicate: predicate}
	b.net.register(id, node)
	addAlphaDownstream(parent, node)
	return node
}

// AlphaMemory terminates an alpha selection chain in a memory node — the
// shared destination every rule path filtering on this exact predicate
// prefix reads from.
func (b *NetworkBuilder) AlphaMemory(parent AlphaConsumer) *AlphaMemoryNode {
	id := b.net.allocID()
	node := &AlphaMemoryNode{id: id, facts: make(map[FactID]*factEntry)}
	b.net.register(id, node)
	addAlphaDownstream(parent, node)
	return node
}

// Adapter wires an alpha memory onto the beta network as either a rule's
// first-pattern root or the right channel of a join/not/exists/aggregate.
func (b *NetworkBuilder) Adapter(alpha *AlphaMemoryNode) *AdapterNode {
	id := b.net.allocID()
	node := &AdapterNode{id: id, alpha: alpha, interning: b.net.intern}
	b.net.register(id, node)
	alpha.addDownstream(node)
	return node
}

// Join adds a join node over a left beta source and a right adapter.
func (b *NetworkBuilder) Join(left BetaSource, right *AdapterNode, leftKey JoinKeyFn, rightKey RightKeyFn, extra JoinPredicate) *JoinNode {
	id := b.net.allocID()
	node := &JoinNode{
		id: id, left: left, right: right, leftKey: leftKey, rightKey: rightKey, extra: extra,
		leftIndex: make(map[any][]*Tuple), rightIndex: make(map[any][]*factEntry),
		memory: make(map[*Tuple][]*Tuple), interning: b.net.intern,
	}
	b.net.register(id, node)
	left.addDownstream(node)
	right.addJoinConsumer(node)
	return node
}

// Not adds a negation node: downstream sees the left tuple exactly while
// zero right facts match it.
func (b *NetworkBuilder) Not(left BetaSource, right *AdapterNode, leftKey JoinKeyFn, rightKey RightKeyFn, extra JoinPredicate) *NotNode {
	id := b.net.allocID()
	node := newNotNode(id, left, right, leftKey, rightKey, extra)
	b.net.register(id, node)
	left.addDownstream(node)
	right.addJoinConsumer(node)
	return node
}

// Exists adds the dual of Not: downstream sees the left tuple exactly
// while at least one right fact matches it.
func (b *NetworkBuilder) Exists(left BetaSource, right *AdapterNode, leftKey JoinKeyFn, rightKey RightKeyFn, extra JoinPredicate) *ExistsNode {
	id := b.net.allocID()
	node := newExistsNode(id, left, right, leftKey, rightKey, extra)
	b.net.register(id, node)
	left.addDownstream(node)
	right.addJoinConsumer(node)
	return node
}

// Aggregate adds an aggregate node computing newAcc() over the right facts
// matching each left tuple (optionally sub-grouped by groupKey), projecting
// the result into the tuple under binding.
func (b *NetworkBuilder) Aggregate(left BetaSource, right *AdapterNode, leftKey JoinKeyFn, rightKey RightKeyFn, groupKey GroupKeyFn, newAcc Aggregator, binding string, extra JoinPredicate, emitEmpty bool) *AggregateNode {
	id := b.net.allocID()
	node := newAggregateNode(id, left, right, leftKey, rightKey, groupKey, newAcc, binding, extra, emitEmpty)
	b.net.register(id, node)
	left.addDownstream(node)
	right.addJoinConsumer(node)
	return node
}

// Selection adds a beta-level filter over the full tuple.
func (b *NetworkBuilder) Selection(left BetaSource, predicate BetaPredicate) *BetaSelectionNode {
	id := b.net.allocID()
	node := &BetaSelectionNode{id: id, predicate: predicate, admitted: make(map[*Tuple]struct{})}
	b.net.register(id, node)
	left.addDownstream(node)
	return node
}

// Binding adds a node projecting a computed value into the tuple under
// name, without changing lineage.
func (b *NetworkBuilder) Binding(left BetaSource, name string, fn BindingFn) *BindingNode {
	id := b.net.allocID()
	node := &BindingNode{id: id, name: name, fn: fn, produced: make(map[*Tuple]*Tuple), interning: b.net.intern}
	b.net.register(id, node)
	left.addDownstream(node)
	return node
}

// Rule terminates a beta path into a compiled rule and registers it with
// the network's rule index.
func (b *NetworkBuilder) Rule(id RuleID, priority int, agendaGroup string, left BetaSource, actions ...Action) *CompiledRule {
	rule := &CompiledRule{ID: id, Priority: priority, AgendaGroup: agendaGroup, Actions: actions}
	b.net.rules[id] = rule
	b.net.ordered = append(b.net.ordered, id)
	nodeID := b.net.allocID()
	term := newTerminalNode(nodeID, rule)
	b.net.register(nodeID, term)
	left.addDownstream(term)
	return rule
}

// Build finalizes the network. The builder is single-use afterward.
func (b *NetworkBuilder) Build() *Network { return b.net }

func addAlphaDownstream(parent AlphaConsumer, child AlphaConsumer) {
	switch p := parent.(type) {
	case *AlphaSelectionNode:
		p.addDownstream(child)
	default:
		panic("rete: unsupported alpha parent type")
	}
}

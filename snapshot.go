package rete

import "encoding/json"

// SnapshotVisitor is a visitor-based diagnostics accessor: Session.Snapshot
// walks the node arena and calls back into v for each kind of thing it
// finds, rather than handing back a fixed struct — so a host can render
// straight to a log line, redact fact values, or accumulate whatever shape
// it needs, without the engine depending on a rendering library itself.
type SnapshotVisitor interface {
	// Node is called once per arena node, in NodeID order.
	Node(id NodeID, typeName string)
	// AlphaMemory is called for each AlphaMemoryNode with the facts it
	// currently holds, in insertion order.
	AlphaMemory(id NodeID, facts []FactID)
	// BetaMemory is called for each beta-side node that keeps its own
	// local memory (join, not, exists, aggregate, selection, binding),
	// with the number of entries it currently holds.
	BetaMemory(id NodeID, size int)
	// Agenda is called once, after every node has been visited, with the
	// number of pending activations in each agenda group.
	Agenda(pendingByGroup map[string]int)
}

// Snapshot walks the session's compiled network and working memory,
// driving v.
func (s *Session) Snapshot(v SnapshotVisitor) {
	for id := NodeID(1); id <= s.net.nextID; id++ {
		node, ok := s.net.nodes[id]
		if !ok {
			continue
		}
		v.Node(id, nodeTypeName(node))
		if am, ok := node.(*AlphaMemoryNode); ok {
			v.AlphaMemory(id, append([]FactID(nil), am.order...))
			continue
		}
		if size, ok := nodeMemSize(node); ok {
			v.BetaMemory(id, size)
		}
	}

	pending := make(map[string]int, len(s.agenda.groups))
	for name, g := range s.agenda.groups {
		pending[name] = g.queue.Len()
	}
	v.Agenda(pending)
}

func nodeTypeName(node any) string {
	switch node.(type) {
	case *AlphaSelectionNode:
		return "alpha_selection"
	case *AlphaMemoryNode:
		return "alpha_memory"
	case *AdapterNode:
		return "adapter"
	case *JoinNode:
		return "join"
	case *NotNode:
		return "not"
	case *ExistsNode:
		return "exists"
	case *AggregateNode:
		return "aggregate"
	case *BetaSelectionNode:
		return "beta_selection"
	case *BindingNode:
		return "binding"
	case *TerminalNode:
		return "terminal"
	default:
		return "unknown"
	}
}

// nodeMemSize reports a beta-side node's local memory size, and false for
// node kinds with no memory of their own to report (alpha selection nodes,
// adapters, terminal nodes — pass-throughs or sinks).
func nodeMemSize(node any) (int, bool) {
	switch n := node.(type) {
	case *JoinNode:
		return len(n.memory), true
	case *NotNode:
		return len(n.counts), true
	case *ExistsNode:
		return len(n.counts), true
	case *AggregateNode:
		return len(n.groups), true
	case *BetaSelectionNode:
		return len(n.admitted), true
	case *BindingNode:
		return len(n.produced), true
	default:
		return 0, false
	}
}

// NodeRecord, AlphaMemoryRecord and SessionSnapshot are the structure
// JSONSnapshotVisitor accumulates; SessionSnapshot marshals cleanly via
// encoding/json for logging or golden-file test assertions.
type NodeRecord struct {
	ID      NodeID `json:"id"`
	Type    string `json:"type"`
	MemSize int    `json:"mem_size,omitempty"`
}

type AlphaMemoryRecord struct {
	ID    NodeID   `json:"id"`
	Facts []FactID `json:"facts"`
}

type SessionSnapshot struct {
	Nodes         []NodeRecord        `json:"nodes"`
	AlphaMemories []AlphaMemoryRecord `json:"alpha_memories"`
	PendingAgenda map[string]int      `json:"pending_agenda"`
}

// JSONSnapshotVisitor is the default SnapshotVisitor, using a plain
// json.MarshalIndent idiom for ad hoc debug dumps. It ships for consumers
// to use directly; the engine itself never depends on it.
type JSONSnapshotVisitor struct {
	snap SessionSnapshot
}

func (v *JSONSnapshotVisitor) Node(id NodeID, typeName string) {
	v.snap.Nodes = append(v.snap.Nodes, NodeRecord{ID: id, Type: typeName})
}

func (v *JSONSnapshotVisitor) AlphaMemory(id NodeID, facts []FactID) {
	v.snap.AlphaMemories = append(v.snap.AlphaMemories, AlphaMemoryRecord{ID: id, Facts: facts})
}

func (v *JSONSnapshotVisitor) BetaMemory(id NodeID, size int) {
	for i := range v.snap.Nodes {
		if v.snap.Nodes[i].ID == id {
			v.snap.Nodes[i].MemSize = size
			return
		}
	}
}

func (v *JSONSnapshotVisitor) Agenda(pendingByGroup map[string]int) {
	v.snap.PendingAgenda = pendingByGroup
}

// JSON returns the accumulated snapshot as indented JSON.
func (v *JSONSnapshotVisitor) JSON() ([]byte, error) {
	return json.MarshalIndent(v.snap, "", "  ")
}

// Snapshot returns the accumulated snapshot struct directly.
func (v *JSONSnapshotVisitor) Snapshot() SessionSnapshot { return v.snap }

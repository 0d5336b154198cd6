package rete

import "github.com/google/uuid"

// FactID uniquely and stably identifies a fact wrapper for the lifetime of
// its membership in working memory.
type FactID = uuid.UUID

// NodeID is the arena index of a node in the compiled network, assigned by
// Network.allocID and used to address every node for diagnostics and
// snapshotting (see network.go). Downstream
// edges between nodes are plain Go interface references rather than a
// second NodeID-keyed lookup, since the network is a DAG built strictly
// forward (a node is always constructed after everything upstream of it,
// and nothing ever reaches back upstream), so there is no retain cycle to
// avoid by indirecting through the arena.
type NodeID int

// RuleID identifies a compiled rule. It is caller-supplied (the rule
// compiler, out of scope here, is expected to assign stable, unique IDs).
type RuleID = string

func newFactID() FactID { return uuid.New() }

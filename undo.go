package rete

// undoLog accumulates inverse operations for a single top-level session
// call (one insert/update/retract, including the *_all variants). If a
// predicate raises a condition_evaluation error partway through
// propagation, Session unwinds the log to restore every map and memory
// touched so far, so a failed call leaves the network exactly as it was
// before the call started.
//
// Every mutation to working memory, alpha/beta node memories, the
// lineage intern table, and the agenda is required to push its own
// inverse closure here. This keeps rollback mechanical instead of
// requiring a deep snapshot of the whole network on every call.
type undoLog struct {
	ops []func()
}

func (u *undoLog) push(inverse func()) {
	if u == nil {
		return
	}
	u.ops = append(u.ops, inverse)
}

func (u *undoLog) unwind() {
	if u == nil {
		return
	}
	for i := len(u.ops) - 1; i >= 0; i-- {
		u.ops[i]()
	}
	u.ops = nil
}

// mark returns the current log length, for a later unwindTo — used by the
// try_* session operations, which roll back only the one fact whose
// propagation failed rather than the whole batch.
func (u *undoLog) mark() int { return len(u.ops) }

// unwindTo reverses every op pushed since mark, leaving the ops pushed
// before it intact.
func (u *undoLog) unwindTo(mark int) {
	for i := len(u.ops) - 1; i >= mark; i-- {
		u.ops[i]()
	}
	u.ops = u.ops[:mark]
}

func (u *undoLog) reset() {
	u.ops = u.ops[:0]
}

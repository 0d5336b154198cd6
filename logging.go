package rete

import "go.uber.org/zap"

// newNopLogger is the Session default: a rule engine is an in-process
// library, not a service, so it stays silent unless a host opts in with
// WithLogger, never forcing a logger on its caller.
func newNopLogger() *zap.Logger { return zap.NewNop() }

// logConditionFailure and logActionFailure are the two internal diagnostic
// call sites; both log at Debug because the engine already reports these
// failures to the caller as errors and to subscribers as events — the log
// line exists for operators running with -v, not as the primary signal.
func (s *Session) logConditionFailure(err *ConditionEvaluationError) {
	s.log.Debug("condition evaluation failed",
		zap.Int("node_id", int(err.NodeID)),
		zap.Error(err.Err),
	)
}

func (s *Session) logActionFailure(err *ActionEvaluationError) {
	s.log.Debug("action evaluation failed",
		zap.String("rule_id", err.RuleID),
		zap.Error(err.Err),
	)
}

func (s *Session) logRuleFired(ruleID RuleID) {
	s.log.Debug("rule fired", zap.String("rule_id", ruleID))
}

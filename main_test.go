package rete

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain guards against leaked goroutines from AggregateNode's
// errgroup-bounded fan-out (beta_aggregate.go), the one concurrency
// primitive in an otherwise single-threaded engine.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Package metrics exposes ledger counters. The default implementation is a
// no-op; NewPrometheus backs the same interface with a private registry.
package metrics

import (
	"net/http"
	"time"
)

// Event outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeNoStaked  = "no_staked"
	OutcomeFailed    = "failed"
)

// Metrics receives ledger and replay measurements.
type Metrics interface {
	// ObserveEvent counts one applied event by kind and outcome.
	ObserveEvent(kind, outcome string)
	// SetLastBlock records the highest block committed so far.
	SetLastBlock(block uint64)
	// ObserveBatch records the duration and size of one replay batch.
	ObserveBatch(elapsed time.Duration, events int)
	// Handler serves the collected metrics, or nil when nothing is collected.
	Handler() http.Handler
}

// Noop returns a Metrics that drops everything.
func Noop() Metrics { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) ObserveEvent(string, string)     {}
func (noopMetrics) SetLastBlock(uint64)             {}
func (noopMetrics) ObserveBatch(time.Duration, int) {}
func (noopMetrics) Handler() http.Handler           { return nil }

// Package telemetry holds the metrics sinks for tool invocations.
package telemetry

import "time"

// Metrics records tool invocation outcomes.
type Metrics interface {
	ObserveInvocation(tool, outcome string, duration time.Duration)
}

// NoopMetrics discards every observation. NewDispatcher falls back to it when no sink is given.
type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

// ObserveInvocation does nothing.
func (n *NoopMetrics) ObserveInvocation(_ string, _ string, _ time.Duration) {}

var _ Metrics = (*NoopMetrics)(nil)

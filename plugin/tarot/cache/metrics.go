package cache

import "sync/atomic"

// InvalidationMetrics holds process-lifetime invalidation counters. Counters
// only increase and reset on process restart. In a multi-instance deployment
// these would need to move into the durable store; they are kept in-process
// to match the single-writer deployment model.
type InvalidationMetrics struct {
	total       atomic.Int64
	byTarotista atomic.Int64
	byMeanings  atomic.Int64
}

// InvalidationMetricsSnapshot is a point-in-time view of the counters.
type InvalidationMetricsSnapshot struct {
	Total       int64 `json:"total"`
	ByTarotista int64 `json:"byTarotista"`
	ByMeanings  int64 `json:"byMeanings"`
}

func (m *InvalidationMetrics) recordByTarotista() {
	m.total.Add(1)
	m.byTarotista.Add(1)
}

func (m *InvalidationMetrics) recordByMeanings() {
	m.total.Add(1)
	m.byMeanings.Add(1)
}

// Snapshot returns the current counter values.
func (m *InvalidationMetrics) Snapshot() InvalidationMetricsSnapshot {
	return InvalidationMetricsSnapshot{
		Total:       m.total.Load(),
		ByTarotista: m.byTarotista.Load(),
		ByMeanings:  m.byMeanings.Load(),
	}
}

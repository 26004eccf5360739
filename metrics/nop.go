package metrics

import "github.com/blockberries/blockvault/blockstore"

// NopMetrics is a no-op implementation of blockstore.Metrics. Use this
// when metrics collection is disabled.
type NopMetrics struct{}

// NewNopMetrics creates a new NopMetrics instance.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

func (m *NopMetrics) WriteOK(blockstore.PayloadType, int)     {}
func (m *NopMetrics) WriteDedup(blockstore.PayloadType)       {}
func (m *NopMetrics) WriteConflict(blockstore.PayloadType)    {}
func (m *NopMetrics) WriteError(blockstore.PayloadType)       {}
func (m *NopMetrics) ReadOK(blockstore.PayloadType, int)      {}
func (m *NopMetrics) ReadError(blockstore.PayloadType)        {}
func (m *NopMetrics) PruneOK(blockstore.PayloadType)          {}
func (m *NopMetrics) SegmentReclaimed(blockstore.PayloadType) {}
func (m *NopMetrics) RecoveryRun(blockstore.RecoveryStats)    {}
func (m *NopMetrics) SetOpenSegments(int)                     {}

// Handler returns nil since there's nothing to serve.
func (m *NopMetrics) Handler() any {
	return nil
}

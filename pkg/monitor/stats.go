// Package monitor holds the counters exposed by containers and query cursors.
package monitor

import (
	"sync/atomic"
)

// ContainerStats counts the operations a container served.
type ContainerStats struct {
	ReserveCount uint64
	GetCount     uint64
	UpdateCount  uint64
	RemoveCount  uint64
	HitCount     uint64
	EvictCount   uint64
}

func NewContainerStats() *ContainerStats {
	return &ContainerStats{}
}

func (cs *ContainerStats) RecordReserve() {
	atomic.AddUint64(&cs.ReserveCount, 1)
}

func (cs *ContainerStats) RecordGet() {
	atomic.AddUint64(&cs.GetCount, 1)
}

func (cs *ContainerStats) RecordUpdate() {
	atomic.AddUint64(&cs.UpdateCount, 1)
}

func (cs *ContainerStats) RecordRemove() {
	atomic.AddUint64(&cs.RemoveCount, 1)
}

func (cs *ContainerStats) RecordHit() {
	atomic.AddUint64(&cs.HitCount, 1)
}

func (cs *ContainerStats) RecordEvict() {
	atomic.AddUint64(&cs.EvictCount, 1)
}

// GetReadWriteRatio returns gets per write (reserve, update or remove).
func (cs *ContainerStats) GetReadWriteRatio() float64 {
	reads := atomic.LoadUint64(&cs.GetCount)
	writes := atomic.LoadUint64(&cs.ReserveCount) +
		atomic.LoadUint64(&cs.UpdateCount) +
		atomic.LoadUint64(&cs.RemoveCount)

	if writes == 0 {
		if reads > 0 {
			return 100.0
		}
		return 0.0
	}
	return float64(reads) / float64(writes)
}

// Snapshot returns the counters as a map, for printing.
func (cs *ContainerStats) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"reserves": atomic.LoadUint64(&cs.ReserveCount),
		"gets":     atomic.LoadUint64(&cs.GetCount),
		"updates":  atomic.LoadUint64(&cs.UpdateCount),
		"removes":  atomic.LoadUint64(&cs.RemoveCount),
		"hits":     atomic.LoadUint64(&cs.HitCount),
		"evicts":   atomic.LoadUint64(&cs.EvictCount),
		"rw_ratio": cs.GetReadWriteRatio(),
	}
}

// QueryCounters instrument a single query. The caller owns the value and
// passes it to the query; nothing is shared between queries.
type QueryCounters struct {
	IndexNodesVisited int
	LeavesTouched     int
	EntriesReturned   int
}

// Reset zeroes the counters.
func (qc *QueryCounters) Reset() {
	*qc = QueryCounters{}
}

// The Add methods accept a nil receiver so uninstrumented queries can call them.

func (qc *QueryCounters) AddIndexNode() {
	if qc != nil {
		qc.IndexNodesVisited++
	}
}

func (qc *QueryCounters) AddLeaf() {
	if qc != nil {
		qc.LeavesTouched++
	}
}

func (qc *QueryCounters) AddEntry() {
	if qc != nil {
		qc.EntriesReturned++
	}
}

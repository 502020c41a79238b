package scpi

import "sync/atomic"

// SessionMetrics contains atomic counters of a measurement session.
type SessionMetrics struct {
	// QueryCount indicates the number of query round trips.
	QueryCount atomic.Uint64
	// CycleCount indicates the number of measurement cycles started.
	CycleCount atomic.Uint64
	// MeasurementCount indicates the number of values fetched.
	MeasurementCount atomic.Uint64
	// InstrumentErrorCount indicates the number of drained instrument errors.
	InstrumentErrorCount atomic.Uint64
	// ConditionCount indicates the number of questionable condition notes.
	ConditionCount atomic.Uint64
}

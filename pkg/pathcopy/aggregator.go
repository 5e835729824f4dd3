package pathcopy

import (
	"sync"
	"sync/atomic"
)

// Snapshot is a point-in-time view of the run's counters. Snapshots taken at
// increasing times are component-wise non-decreasing.
type Snapshot struct {
	Copied  int64
	Skipped int64
	Total   int64
}

// SkipDetail records one skipped file with its human-readable reason.
type SkipDetail struct {
	RelPathKey string
	Reason     string
}

// WorkerFault records a worker that halted before exhausting its chunk.
type WorkerFault struct {
	Chunk     int
	Remaining int
	Reason    string
}

// Aggregator consumes outcome events from all workers and maintains the
// run's monotonic counters. It is purely observational bookkeeping: it never
// retries or alters outcomes. Counters are atomics so an external observer
// (a progress bar, a logging ticker) can snapshot them at any time without
// blocking the consumption loop; the detail logs are guarded by a mutex and
// only read after the run, or copied on demand.
//
// The Aggregator is owned by the Runner — there is no package-level state.
type Aggregator struct {
	copied  atomic.Int64
	skipped atomic.Int64
	total   atomic.Int64

	mu             sync.Mutex
	skippedDetails []SkipDetail
	workerFaults   []WorkerFault
}

// NewAggregator creates an Aggregator with all counters at zero.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// setTotal publishes the work set size. It is called once, after enumeration
// and before any worker starts.
func (a *Aggregator) setTotal(n int64) {
	a.total.Store(n)
}

// Snapshot returns the current counters. It never blocks the writer side.
func (a *Aggregator) Snapshot() Snapshot {
	return Snapshot{
		Copied:  a.copied.Load(),
		Skipped: a.skipped.Load(),
		Total:   a.total.Load(),
	}
}

// consume is the single-consumer event loop. It returns when the events
// channel is closed, which the Runner does only after every worker has
// terminated — so returning from consume is the run's join barrier.
func (a *Aggregator) consume(events <-chan Event) {
	for ev := range events {
		a.apply(ev)
	}
}

func (a *Aggregator) apply(ev Event) {
	switch ev.Kind {
	case EventCopied:
		a.copied.Add(1)
	case EventSkipped:
		// Order matters: the detail entry is appended before the counter
		// moves, so a reader that sees skipped==n can always find n details.
		a.mu.Lock()
		a.skippedDetails = append(a.skippedDetails, SkipDetail{
			RelPathKey: ev.RelPathKey,
			Reason:     ev.Reason.Error(),
		})
		a.mu.Unlock()
		a.skipped.Add(1)
	case EventWorkerFailed:
		a.mu.Lock()
		a.workerFaults = append(a.workerFaults, WorkerFault{
			Chunk:     ev.Chunk,
			Remaining: ev.Remaining,
			Reason:    ev.Reason.Error(),
		})
		a.mu.Unlock()
	case EventWorkerDone:
		// Termination signal only; nothing to count.
	}
}

// SkippedDetails returns a copy of the ordered skip log.
func (a *Aggregator) SkippedDetails() []SkipDetail {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]SkipDetail, len(a.skippedDetails))
	copy(out, a.skippedDetails)
	return out
}

// WorkerFaults returns a copy of the recorded worker faults.
func (a *Aggregator) WorkerFaults() []WorkerFault {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]WorkerFault, len(a.workerFaults))
	copy(out, a.workerFaults)
	return out
}

package pathcopy

// --- ARCHITECTURAL OVERVIEW ---
// The engine copies a directory tree in four strictly ordered phases:
//
// 1. Counting: a single-threaded walk of the source tree produces the frozen
//    work set (enumerate.go). The total is published to the Aggregator
//    before any worker exists, so observers can render meaningful progress
//    from the first event on.
//
// 2. Partitioning: the work set is sliced into contiguous chunks, one per
//    worker slot (partition.go). There is no work-stealing and no dynamic
//    rebalancing; a chunk belongs to exactly one worker for the whole run.
//
// 3. Copying: one goroutine per chunk copies its files and reports per-file
//    outcomes over a single buffered event channel (worker.go). The only
//    cross-worker state is the idempotent created-directory cache and the
//    destination filesystem itself.
//
// 4. Finalizing: the Runner joins on all workers (the event channel closes
//    only after the last one terminates), then produces the one RunSummary
//    of the run from the Aggregator's final counters.

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/paulschiretz/pgl-copy/pkg/plog"
	"github.com/paulschiretz/pgl-copy/pkg/pool"
	"github.com/paulschiretz/pgl-copy/pkg/sharded"
	"github.com/paulschiretz/pgl-copy/pkg/util"
)

// State is the Runner's lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateCounting
	StateCopying
	StateFinalizing
	StateDone
	StateFailed
)

var stateToString = map[State]string{
	StateIdle:       "idle",
	StateCounting:   "counting",
	StateCopying:    "copying",
	StateFinalizing: "finalizing",
	StateDone:       "done",
	StateFailed:     "failed",
}

func (s State) String() string {
	if str, ok := stateToString[s]; ok {
		return str
	}
	return fmt.Sprintf("unknown_state(%d)", int32(s))
}

// Summary is the final immutable record of a run, produced exactly once
// after all workers have terminated.
type Summary struct {
	TotalFiles   int64
	CopiedCount  int64
	SkippedCount int64
	Elapsed      time.Duration

	// SkippedDetails is the ordered log of skipped files with reasons.
	SkippedDetails []SkipDetail

	// WorkerFaults is non-empty when a worker halted before exhausting its
	// chunk; in that case CopiedCount+SkippedCount < TotalFiles.
	WorkerFaults []WorkerFault
}

// Complete reports whether every file in the work set was accounted for.
func (s *Summary) Complete() bool {
	return len(s.WorkerFaults) == 0 && s.CopiedCount+s.SkippedCount == s.TotalFiles
}

// Degraded reports whether the caller should treat the run as less than a
// full success. The exit-code policy itself is the caller's decision.
func (s *Summary) Degraded() bool {
	return s.SkippedCount > 0 || len(s.WorkerFaults) > 0
}

// eventBufferPerWorker bounds how far a worker can run ahead of the
// aggregator before a send blocks.
const eventBufferPerWorker = 64

// Runner coordinates one copy run: validate, enumerate, partition, spawn
// workers, aggregate, summarize. It owns the Plan and the Aggregator; a
// Runner is single-use.
type Runner struct {
	plan  Plan
	state atomic.Int32
	agg   *Aggregator
}

// NewRunner validates the plan and prepares a run in the Idle state.
func NewRunner(plan Plan) (*Runner, error) {
	normalized, err := plan.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Runner{plan: normalized, agg: NewAggregator()}, nil
}

// State returns the current lifecycle phase.
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}

// Progress returns the Aggregator handle for external observers. Snapshots
// are safe at any time and never block the workers.
func (r *Runner) Progress() *Aggregator {
	return r.agg
}

// Run executes the copy. It returns an error only for run-level failures
// (source root missing or not a directory, target root not creatable); a
// degraded run — skipped files, a halted worker — still returns a Summary
// and nil error, with the damage recorded in the Summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	r.setState(StateCounting)

	info, err := os.Stat(r.plan.AbsSourcePath)
	if err != nil {
		r.setState(StateFailed)
		return nil, fmt.Errorf("source root is not accessible: %w", err)
	}
	if !info.IsDir() {
		r.setState(StateFailed)
		return nil, fmt.Errorf("source root %s is not a directory", r.plan.AbsSourcePath)
	}

	workSet := enumerate(r.plan.AbsSourcePath, r.plan.ShouldIgnore)
	r.agg.setTotal(int64(len(workSet)))
	plog.Info("Counted source files", "total", len(workSet), "source", r.plan.AbsSourcePath)

	if len(workSet) == 0 {
		// A run with zero eligible files is legitimate: no workers are
		// spawned and the destination is left untouched.
		r.setState(StateDone)
		return r.summarize(start), nil
	}

	if err := os.MkdirAll(util.ExtendedLengthPath(r.plan.AbsTargetPath), util.UserWritableDirPerms); err != nil {
		r.setState(StateFailed)
		return nil, fmt.Errorf("failed to create target root %s: %w", r.plan.AbsTargetPath, err)
	}

	chunks := partition(workSet, r.plan.Workers)
	r.setState(StateCopying)
	plog.Info("Copying", "files", len(workSet), "workers", len(chunks), "target", r.plan.AbsTargetPath)

	events := make(chan Event, len(chunks)*eventBufferPerWorker)
	createdDirs := sharded.NewShardedSet()
	ioBufferPool := pool.NewFixedBuffer(r.plan.BufferSize)
	var dirGroup singleflight.Group

	var workerWg sync.WaitGroup
	for i, chunk := range chunks {
		w := &copyWorker{
			id:                 i,
			chunk:              chunk,
			src:                r.plan.AbsSourcePath,
			trg:                r.plan.AbsTargetPath,
			largeFileThreshold: r.plan.LargeFileThreshold,
			retryCount:         r.plan.RetryCount,
			retryWait:          r.plan.RetryWait,
			events:             events,
			createdDirs:        createdDirs,
			dirGroup:           &dirGroup,
			ioBufferPool:       ioBufferPool,
		}
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			w.run(ctx)
		}()
	}

	// Close the event channel once every worker has signaled Done or
	// Failed and returned. The aggregator loop below therefore doubles as
	// the join barrier: when consume returns, no worker is outstanding.
	go func() {
		workerWg.Wait()
		close(events)
	}()

	r.agg.consume(events)

	r.setState(StateFinalizing)
	summary := r.summarize(start)
	for _, fault := range summary.WorkerFaults {
		plog.Warn("Worker halted before finishing its chunk",
			"chunk", fault.Chunk, "unprocessed", fault.Remaining, "reason", fault.Reason)
	}
	r.setState(StateDone)
	return summary, nil
}

// summarize builds the Summary from the Aggregator's final snapshot. It is
// only called once all workers have terminated (or before any started).
func (r *Runner) summarize(start time.Time) *Summary {
	snap := r.agg.Snapshot()
	return &Summary{
		TotalFiles:     snap.Total,
		CopiedCount:    snap.Copied,
		SkippedCount:   snap.Skipped,
		Elapsed:        time.Since(start),
		SkippedDetails: r.agg.SkippedDetails(),
		WorkerFaults:   r.agg.WorkerFaults(),
	}
}

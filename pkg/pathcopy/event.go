package pathcopy

import "fmt"

// EventKind tags the variants a worker can emit.
type EventKind int

const (
	// EventCopied reports one file copied successfully.
	EventCopied EventKind = iota
	// EventSkipped reports one file that could not be copied; the worker
	// continues with the rest of its chunk.
	EventSkipped
	// EventWorkerDone signals that a worker has exhausted its chunk. It is
	// a termination signal, not a per-file outcome.
	EventWorkerDone
	// EventWorkerFailed signals that a worker halted with files left in its
	// chunk. The run still finishes, but the summary reflects the gap.
	EventWorkerFailed
)

var eventKindToString = map[EventKind]string{
	EventCopied:       "copied",
	EventSkipped:      "skipped",
	EventWorkerDone:   "worker_done",
	EventWorkerFailed: "worker_failed",
}

func (k EventKind) String() string {
	if s, ok := eventKindToString[k]; ok {
		return s
	}
	return fmt.Sprintf("unknown_event_kind(%d)", int(k))
}

// Event is the only channel through which workers communicate with the
// aggregator. Within one worker, events arrive in the chunk's file order;
// across workers no ordering is guaranteed.
type Event struct {
	Kind  EventKind
	Chunk int

	// RelPathKey is set for per-file outcomes.
	RelPathKey string

	// Reason is set for EventSkipped and EventWorkerFailed.
	Reason error

	// Remaining is the number of unprocessed files in the chunk, set for
	// EventWorkerFailed.
	Remaining int
}

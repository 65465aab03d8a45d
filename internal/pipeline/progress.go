package pipeline

import "fmt"

// Phase is one step of an indexing run.
type Phase string

const (
	PhaseFiles Phase = "files"
	PhaseLink  Phase = "link"
	PhaseDirs  Phase = "dirs"
)

// ProgressStatus is the state of a unit of work within a phase.
type ProgressStatus string

const (
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressSkipped  ProgressStatus = "skipped"
	ProgressFailed   ProgressStatus = "failed"
)

// ProgressEvent is emitted to the user during a run.
type ProgressEvent struct {
	Phase   Phase
	Section string // file, batch or directory
	Status  ProgressStatus
	Message string
}

// ProgressReporter emits progress events through a buffered channel.
type ProgressReporter struct {
	ch chan ProgressEvent
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan ProgressEvent, 64),
	}
}

// Emit sends a progress event in a non-blocking fashion.
// If the channel is full, the event is silently dropped. A nil reporter
// discards everything.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	if pr == nil {
		return
	}
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the progress event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case ProgressWorking:
		return fmt.Sprintf("  ● [%s] %s...", event.Phase, event.Section)
	case ProgressComplete:
		if event.Message != "" {
			return fmt.Sprintf("  ✓ [%s] %s: %s", event.Phase, event.Section, event.Message)
		}
		return fmt.Sprintf("  ✓ [%s] %s", event.Phase, event.Section)
	case ProgressSkipped:
		return fmt.Sprintf("  ○ [%s] %s skipped: %s", event.Phase, event.Section, event.Message)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ [%s] %s failed: %s", event.Phase, event.Section, event.Message)
	default:
		return fmt.Sprintf("  ? [%s] %s (unknown status)", event.Phase, event.Section)
	}
}

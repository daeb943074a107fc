// Package profiler drives a language server through the LSP cold-start
// handshake and records when each milestone happens.
package profiler

import "time"

// Milestone labels recorded during a run.
const (
	MilestoneSpawn              = "process spawned"
	MilestoneInitializeResponse = "initialize response"
	MilestoneInitializedSent    = "initialized sent"
	MilestoneFirstDiagnostic    = "first diagnostic"
	MilestoneAllDiagnosed       = "all files diagnosed"
)

// Event is one recorded milestone: how long after the run started it
// happened, and what it was.
type Event struct {
	Elapsed time.Duration
	Label   string
}

// Timeline is an append-only sequence of milestones anchored at a start
// instant. It is owned by the session goroutine; no locking.
type Timeline struct {
	start  time.Time
	events []Event
}

// NewTimeline anchors a timeline at the current instant.
func NewTimeline() *Timeline {
	return NewTimelineAt(time.Now())
}

// NewTimelineAt anchors a timeline at an explicit instant.
func NewTimelineAt(start time.Time) *Timeline {
	return &Timeline{start: start}
}

// Start returns the anchor instant.
func (t *Timeline) Start() time.Time {
	return t.start
}

// Since returns the time elapsed since the anchor.
func (t *Timeline) Since() time.Duration {
	return time.Since(t.start)
}

// Mark appends a milestone and returns its elapsed offset.
func (t *Timeline) Mark(label string) time.Duration {
	elapsed := time.Since(t.start)
	t.events = append(t.events, Event{Elapsed: elapsed, Label: label})
	return elapsed
}

// Events returns the recorded milestones in order of occurrence.
func (t *Timeline) Events() []Event {
	return t.events
}

// Elapsed returns the offset of the first milestone with the given label.
func (t *Timeline) Elapsed(label string) (time.Duration, bool) {
	for _, ev := range t.events {
		if ev.Label == label {
			return ev.Elapsed, true
		}
	}
	return 0, false
}

// Millis renders a duration as fractional milliseconds for report output.
func Millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

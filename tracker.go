package gmos

import (
	"github.com/google/uuid"
)

// IndexTracker counts the atoms and steps that have been recorded
// against a sequence and detects atom boundaries. It is a small two
// state machine; Reset means no atom is in progress, Recording means one
// is. Values are immutable; every transition returns a new tracker.
type IndexTracker struct {
	recording bool
	atomCount int
	atomID    uuid.UUID
	stepCount int
	stepID    uuid.UUID
}

// AtomCount is the number of atom boundaries crossed so far. While
// recording, the atom in progress has index AtomCount; once reset, the
// next atom to start will take index AtomCount.
func (t IndexTracker) AtomCount() int {
	return t.atomCount
}

// StepCount is the number of steps recorded in the atom in progress.
func (t IndexTracker) StepCount() int {
	if !t.recording {
		return 0
	}
	return t.stepCount
}

// Recording reports whether an atom is in progress.
func (t IndexTracker) Recording() bool {
	return t.recording
}

// CurrentAtom is the id of the atom in progress; the zero UUID when
// reset.
func (t IndexTracker) CurrentAtom() uuid.UUID {
	if !t.recording {
		return uuid.UUID{}
	}
	return t.atomID
}

// RecordStep feeds one executed step through the tracker.
// Re-delivery of the current step id is idempotent; a step from the
// current atom increments the step count; a step from any other atom
// crosses an atom boundary.
func (t IndexTracker) RecordStep(s StepRecord) IndexTracker {
	if !t.recording {
		return IndexTracker{
			recording: true,
			atomCount: t.atomCount,
			atomID:    s.AtomId,
			stepCount: 1,
			stepID:    s.Id,
		}
	}

	if s.Id == t.stepID {
		return t
	}

	if s.AtomId == t.atomID {
		t.stepCount++
		t.stepID = s.Id
		return t
	}

	return IndexTracker{
		recording: true,
		atomCount: t.atomCount + 1,
		atomID:    s.AtomId,
		stepCount: 1,
		stepID:    s.Id,
	}
}

// RecordAtom marks an atom boundary ahead of its steps. Repeating the
// boundary for the atom in progress is a no-op; a boundary for a
// different atom closes the current one and resets.
func (t IndexTracker) RecordAtom(atomID uuid.UUID) IndexTracker {
	if !t.recording {
		return t
	}

	if atomID == t.atomID {
		return t
	}

	return IndexTracker{recording: false, atomCount: t.atomCount + 1}
}

// NextAtomIndex is the cycle index the next emitted atom should carry:
// the atom after the one in progress while recording, otherwise the next
// unstarted index.
func (t IndexTracker) NextAtomIndex() int {
	if t.recording {
		return t.atomCount + 1
	}
	return t.atomCount
}

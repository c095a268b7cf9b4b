package gmos

import (
	"testing"

	"github.com/google/uuid"
)

func trackerStep(atom, step uuid.UUID) StepRecord {
	return StepRecord{Id: step, AtomId: atom, Completed: true, Qa: QaPass}
}

func TestTrackerFirstStep(t *testing.T) {
	atom := uuid.New()
	step := uuid.New()

	tr := IndexTracker{}.RecordStep(trackerStep(atom, step))

	if !tr.Recording() {
		t.Fatal("expected recording state")
	}
	if tr.AtomCount() != 0 || tr.StepCount() != 1 {
		t.Errorf("got atoms=%d steps=%d, want 0/1", tr.AtomCount(), tr.StepCount())
	}
	if tr.CurrentAtom() != atom {
		t.Error("current atom not tracked")
	}
}

func TestTrackerIdempotentRedelivery(t *testing.T) {
	atom := uuid.New()
	step := trackerStep(atom, uuid.New())

	once := IndexTracker{}.RecordStep(step)
	twice := once.RecordStep(step)

	if once != twice {
		t.Error("re-delivery of the current step must be a no-op")
	}
}

func TestTrackerSameAtomAdvance(t *testing.T) {
	atom := uuid.New()

	tr := IndexTracker{}.
		RecordStep(trackerStep(atom, uuid.New())).
		RecordStep(trackerStep(atom, uuid.New()))

	if tr.AtomCount() != 0 || tr.StepCount() != 2 {
		t.Errorf("got atoms=%d steps=%d, want 0/2", tr.AtomCount(), tr.StepCount())
	}
}

func TestTrackerAtomBoundary(t *testing.T) {
	tr := IndexTracker{}.
		RecordStep(trackerStep(uuid.New(), uuid.New())).
		RecordStep(trackerStep(uuid.New(), uuid.New()))

	if tr.AtomCount() != 1 || tr.StepCount() != 1 {
		t.Errorf("got atoms=%d steps=%d, want 1/1", tr.AtomCount(), tr.StepCount())
	}
}

func TestTrackerRecordAtom(t *testing.T) {
	atom := uuid.New()
	tr := IndexTracker{}.RecordStep(trackerStep(atom, uuid.New()))

	// repeating the in-progress atom is a no-op
	if same := tr.RecordAtom(atom); same != tr {
		t.Error("boundary for the current atom must be a no-op")
	}

	// a different atom closes the current one
	reset := tr.RecordAtom(uuid.New())
	if reset.Recording() {
		t.Error("expected reset state")
	}
	if reset.AtomCount() != 1 {
		t.Errorf("got atoms=%d, want 1", reset.AtomCount())
	}

	// the next step opens the announced atom without another increment
	next := reset.RecordStep(trackerStep(uuid.New(), uuid.New()))
	if next.AtomCount() != 1 || next.StepCount() != 1 {
		t.Errorf("got atoms=%d steps=%d, want 1/1", next.AtomCount(), next.StepCount())
	}
}

func TestTrackerNextAtomIndex(t *testing.T) {
	tr := IndexTracker{}
	if tr.NextAtomIndex() != 0 {
		t.Error("fresh tracker should plan atom 0 next")
	}

	tr = tr.RecordStep(trackerStep(uuid.New(), uuid.New()))
	if tr.NextAtomIndex() != 1 {
		t.Error("while recording atom 0 the next planned atom is 1")
	}
}

package gmos

import (
	"testing"
	"time"
)

func testAcquisition(lastReset time.Time) SequenceGenerator {
	ns := DeriveNamespace(testCommit, testObs, nil)
	return newAcquisition(ns, testConfig(), 10*time.Second, lastReset)
}

func TestAcquisitionInitialEmission(t *testing.T) {
	acq := testAcquisition(time.Time{})

	atoms := acq.Generate(t0).Take(3)

	if len(atoms[0].Steps) != 3 {
		t.Fatalf("initial atom has %d steps, want 3", len(atoms[0].Steps))
	}

	ccd2 := atoms[0].Steps[0].Proto
	if ccd2.Dynamic.XBin != BinTwo || ccd2.Dynamic.Roi != RoiCcd2 || ccd2.Dynamic.Fpu != "" {
		t.Error("first step must be the no-FPU CCD2 image at 2x2")
	}
	if ccd2.Dynamic.Exposure != 10*time.Second {
		t.Errorf("ccd2 exposure = %s, want the caller supplied 10s", ccd2.Dynamic.Exposure)
	}

	p10 := atoms[0].Steps[1].Proto
	if p10.Offset != OffsetFromArcsec(10, 0) {
		t.Errorf("p10 offset = %s, want (10, 0)", p10.Offset)
	}
	if p10.Dynamic.Exposure != 20*time.Second || p10.Dynamic.XBin != BinOne {
		t.Error("p10 must be a 20s unbinned stamp")
	}
	if p10.Dynamic.Roi != RoiCentralStamp || p10.Dynamic.Fpu == "" {
		t.Error("p10 must image the central stamp through the FPU")
	}

	slit := atoms[0].Steps[2].Proto
	if !slit.Breakpoint {
		t.Error("the through-slit step of the initial atom carries a breakpoint")
	}
	if slit.Dynamic.Exposure != 30*time.Second {
		t.Errorf("slit exposure = %s, want 3x the ccd2 exposure", slit.Dynamic.Exposure)
	}

	// fine adjustments follow indefinitely
	for i, a := range atoms[1:] {
		if len(a.Steps) != 1 || a.Steps[0].Proto.Breakpoint {
			t.Errorf("fine adjustment %d must be a single plain slit image", i)
		}
	}
}

func TestAcquisitionSlitExposureCeiling(t *testing.T) {
	ns := DeriveNamespace(testCommit, testObs, nil)
	acq := newAcquisition(ns, testConfig(), 200*time.Second, time.Time{})

	atoms := acq.Generate(t0).Take(1)
	slit := atoms[0].Steps[2].Proto
	if slit.Dynamic.Exposure != 360*time.Second {
		t.Errorf("slit exposure = %s, want the 360s ceiling", slit.Dynamic.Exposure)
	}
}

func TestAcquisitionAdvance(t *testing.T) {
	acq := testAcquisition(time.Time{})
	initial := acq.Generate(t0).Take(1)[0]

	// after the ccd2 image the plan opens at the p10 step
	acq = acq.RecordStep(acqRecordOf(initial, 0, t0))
	atoms := acq.Generate(t0).Take(1)
	if len(atoms[0].Steps) != 2 {
		t.Fatalf("after ccd2 the opening atom has %d steps, want 2", len(atoms[0].Steps))
	}

	// after p10 only the through-slit confirmation remains
	acq = acq.RecordStep(acqRecordOf(initial, 1, t0.Add(time.Minute)))
	atoms = acq.Generate(t0).Take(1)
	if len(atoms[0].Steps) != 1 || !atoms[0].Steps[0].Proto.Breakpoint {
		t.Fatal("after p10 the opening atom is the breakpointed slit image")
	}

	// a completed slit image leaves only fine adjustments
	acq = acq.RecordStep(acqRecordOf(initial, 2, t0.Add(2*time.Minute)))
	atoms = acq.Generate(t0).Take(4)
	seen := map[string]bool{}
	for i, a := range atoms {
		if len(a.Steps) != 1 || a.Steps[0].Proto.Breakpoint {
			t.Errorf("atom %d is not a plain fine adjustment", i)
		}
		if seen[a.Id.String()] {
			t.Errorf("atom id %s repeated; indices must keep increasing", a.Id)
		}
		seen[a.Id.String()] = true
	}
}

func TestAcquisitionFailedStepDoesNotAdvance(t *testing.T) {
	acq := testAcquisition(time.Time{})
	initial := acq.Generate(t0).Take(1)[0]

	failed := acqRecordOf(initial, 0, t0)
	failed.Completed = false
	acq = acq.RecordStep(failed)

	atoms := acq.Generate(t0).Take(1)
	if len(atoms[0].Steps) != 3 {
		t.Error("a failed ccd2 image must leave the full initial atom planned")
	}
}

// A fresh reset timestamp discards prior progress: old recordings feed
// the tracker but the sequence starts over.
func TestAcquisitionReset(t *testing.T) {
	acq := testAcquisition(time.Time{})
	initial := acq.Generate(t0).Take(1)[0]

	// run a complete acquisition
	done := acq.
		RecordStep(acqRecordOf(initial, 0, t0)).
		RecordStep(acqRecordOf(initial, 1, t0.Add(time.Minute))).
		RecordStep(acqRecordOf(initial, 2, t0.Add(2*time.Minute)))
	if got := done.Generate(t0).Take(1)[0]; len(got.Steps) != 1 {
		t.Fatal("precondition: completed acquisition is down to fine adjustments")
	}

	// fresh instantiation with a reset post-dating the recordings
	fresh := testAcquisition(t0.Add(time.Hour)).
		RecordStep(acqRecordOf(initial, 0, t0)).
		RecordStep(acqRecordOf(initial, 1, t0.Add(time.Minute))).
		RecordStep(acqRecordOf(initial, 2, t0.Add(2*time.Minute)))

	atoms := fresh.Generate(t0.Add(time.Hour)).Take(2)
	if len(atoms[0].Steps) != 3 {
		t.Fatalf("after a reset the opening atom has %d steps, want 3", len(atoms[0].Steps))
	}
	if !atoms[0].Steps[2].Proto.Breakpoint {
		t.Error("the reset opening atom ends in the breakpointed slit image")
	}
	if len(atoms[1].Steps) != 1 {
		t.Error("fine adjustments follow the reset opening atom")
	}

	// the tracker still counted the pre-reset atoms, so indices moved on
	if atoms[0].Id == initial.Id {
		t.Error("post-reset atoms must take fresh indices")
	}
}

// A post-reset recording advances the machine normally.
func TestAcquisitionResumeAfterReset(t *testing.T) {
	reset := t0.Add(time.Hour)
	acq := testAcquisition(reset)

	initial := acq.Generate(reset).Take(1)[0]
	acq = acq.RecordStep(acqRecordOf(initial, 0, reset.Add(time.Minute)))

	atoms := acq.Generate(reset).Take(1)
	if len(atoms[0].Steps) != 2 {
		t.Errorf("after a post-reset ccd2 the opening atom has %d steps, want 2", len(atoms[0].Steps))
	}
}

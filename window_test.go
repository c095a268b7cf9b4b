package gmos

import (
	"testing"
	"time"
)

// testDefinition builds the first dither's step definition through the
// real expander.
func testDefinition(t *testing.T) StepDefinition {
	t.Helper()

	g, err := testGenerator(IntegrationTime{Exposure: 60 * time.Second, Count: 4})
	if err != nil {
		t.Fatal(err)
	}

	atoms := g.Science.Generate(t0).Collect()
	first := atoms[0]

	def := StepDefinition{}
	for _, s := range first.Steps {
		switch s.Proto.Type {
		case StepGcal:
			if s.Proto.Gcal.Lamp == "CuAr" {
				def.Arcs = append(def.Arcs, s.Proto.Template())
			} else {
				def.Flats = append(def.Flats, s.Proto.Template())
			}
		case StepScience:
			if def.Science.Dynamic.Exposure == 0 {
				def.Science = s.Proto.Template()
			}
		}
	}
	return def
}

func defRecords(def StepDefinition, base time.Time) []StepRecord {
	steps := append(def.Cals(), def.Science)
	records := make([]StepRecord, len(steps))
	for i, p := range steps {
		records[i] = StepRecord{
			Id:        AtomID(idSpace, SequenceScience, int32(i), 99), // distinct ids, any derivation works
			Created:   base.Add(time.Duration(i) * time.Minute),
			Proto:     p,
			Completed: true,
			Qa:        QaPass,
			Sequence:  SequenceScience,
		}
	}
	return records
}

func TestWindowCalibratedScience(t *testing.T) {
	def := testDefinition(t)
	records := defRecords(def, t0)

	w := NewRecordWindow(t0.Add(-CalValidityPeriod), t0.Add(time.Hour), def, records)

	if cals := w.MissingCals(); len(cals) != 0 {
		t.Fatalf("expected no missing cals, got %d", len(cals))
	}
	if sci := w.CalibratedScience(); len(sci) != 1 {
		t.Fatalf("expected one calibrated science step, got %d", len(sci))
	}
}

func TestWindowExpiredCalibrations(t *testing.T) {
	def := testDefinition(t)
	records := defRecords(def, t0)

	// window opens after the cals and science have expired out of it
	late := t0.Add(95 * time.Minute)
	w := NewRecordWindow(late.Add(-CalValidityPeriod), late.Add(time.Hour), def, records)

	if cals := w.MissingCals(); len(cals) != len(def.Cals()) {
		t.Fatalf("expected every cal missing, got %d of %d", len(cals), len(def.Cals()))
	}
	if sci := w.CalibratedScience(); len(sci) != 0 {
		t.Fatal("science outside the window cannot be calibrated")
	}
}

func TestWindowFailedCalDoesNotCount(t *testing.T) {
	def := testDefinition(t)
	records := defRecords(def, t0)
	records[0].Qa = QaFail // fail the arc

	w := NewRecordWindow(t0.Add(-CalValidityPeriod), t0.Add(time.Hour), def, records)

	if cals := w.MissingCals(); len(cals) != 1 {
		t.Fatalf("expected the failed arc re-listed, got %d missing", len(cals))
	}
	if sci := w.CalibratedScience(); len(sci) != 0 {
		t.Fatal("science is uncalibrated while a required cal is missing")
	}
	if pend := w.PendingScience(); len(pend) != 1 {
		t.Fatal("the science step itself is still pending")
	}
}

// A science step counted as calibrated has every required calibration
// inside the sliding validity window around it.
func TestBlockCalibratedUnion(t *testing.T) {
	def := testDefinition(t)
	records := defRecords(def, t0)

	blockEnd := records[len(records)-1].Created
	calibrated := blockCalibrated(def, records, blockEnd.Add(time.Minute))

	if len(calibrated) != 1 {
		t.Fatalf("expected one calibrated science step, got %d", len(calibrated))
	}

	// push the science step outside every cal's validity period
	records[len(records)-1].Created = t0.Add(CalValidityPeriod + 30*time.Minute)
	calibrated = blockCalibrated(def, records, records[len(records)-1].Created.Add(time.Minute))
	if len(calibrated) != 0 {
		t.Fatal("science beyond the validity period must not be calibrated")
	}
}

func TestDefinitionMatchesStep(t *testing.T) {
	def := testDefinition(t)

	sci := def.Science.WithOffset(OffsetFromArcsec(0, 15))
	if !def.MatchesStep(sci) {
		t.Error("science matching must ignore the offset")
	}

	arc := def.Arcs[0].WithOffset(OffsetFromArcsec(0, 15))
	if !def.MatchesStep(arc) {
		t.Error("cal matching must ignore the offset")
	}

	other := def.Science
	other.Dynamic.Wavelength += 5_000
	if def.MatchesStep(other) {
		t.Error("a different wavelength is a different template")
	}
}

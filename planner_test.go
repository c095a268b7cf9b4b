package gmos

import (
	"time"
)

// Shared fixtures for the planner tests: a representative long slit
// config, the smart gcal rows its calibrations expand through, and
// helpers for replaying emitted steps back into the planner.

var testCommit = []byte{0xde, 0xad, 0xbe, 0xef}

const testObs = "GN-2024B-Q-101-33"

var t0 = time.Date(2024, time.August, 17, 6, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Grating:           "R831_G5302",
		Filter:            "GG455",
		Fpu:               "LongSlit_0.50",
		CentralWavelength: 500_000,
		XBin:              BinOne,
		YBin:              BinOne,
		AmpCount:          AmpTwelve,
		AmpGain:           GainLow,
		AmpReadMode:       ReadSlow,
		Roi:               RoiFullFrame,
		Dithers:           []WavelengthDither{0, 5_000},
	}
}

func testExpander() TableExpander {
	cfg := testConfig()
	table := TableExpander{}

	for _, smart := range []SmartGcalType{SmartArc, SmartFlat} {
		key := SmartGcalKey{
			Grating: cfg.Grating,
			Filter:  cfg.Filter,
			Fpu:     cfg.Fpu,
			XBin:    cfg.XBin,
			YBin:    cfg.YBin,
			Gain:    cfg.AmpGain,
			Smart:   smart,
		}
		entry := SmartGcalEntry{
			Gcal:     GcalConfig{Lamp: "CuAr", Diffuser: "visible", Shutter: "closed"},
			Exposure: 1 * time.Second,
			Class:    ClassNightCal,
		}
		if smart == SmartFlat {
			entry.Gcal = GcalConfig{Lamp: "QH", Diffuser: "visible", Shutter: "open"}
			entry.Exposure = 2 * time.Second
		}
		table[key] = []SmartGcalEntry{entry}
	}

	return table
}

func testGenerator(t IntegrationTime) (ExecutionConfigGenerator, error) {
	return NewLongSlit(testCommit, testObs, testConfig(), t, 10*time.Second, RoleScience, testExpander())
}

// recordOf replays the i-th step of an emitted atom as a successfully
// executed science sequence step.
func recordOf(a Atom, i int, created time.Time) StepRecord {
	s := a.Steps[i]
	return StepRecord{
		Id:        s.Id,
		AtomId:    a.Id,
		Created:   created,
		Proto:     s.Proto,
		Completed: true,
		Qa:        QaPass,
		Sequence:  SequenceScience,
	}
}

// acqRecordOf replays an acquisition step.
func acqRecordOf(a Atom, i int, created time.Time) StepRecord {
	r := recordOf(a, i, created)
	r.Sequence = SequenceAcquisition
	return r
}

// stepTypes flattens an atom to its step types.
func stepTypes(a Atom) []StepType {
	types := make([]StepType, len(a.Steps))
	for i, s := range a.Steps {
		types[i] = s.Proto.Type
	}
	return types
}

// scienceStepCount counts the science steps across a plan.
func scienceStepCount(atoms []Atom) int {
	n := 0
	for _, a := range atoms {
		for _, s := range a.Steps {
			if s.Proto.Type == StepScience {
				n++
			}
		}
	}
	return n
}

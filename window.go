package gmos

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// StepDefinition is the step vocabulary of one wavelength block: the
// concrete arcs and flats produced by the smart gcal expander, and the
// science template. The science template carries a zero offset; offsets
// are stamped per emission.
type StepDefinition struct {
	Arcs    []ProtoStep
	Flats   []ProtoStep
	Science ProtoStep
}

// Cals returns the ordered arcs-then-flats calibration list.
func (d StepDefinition) Cals() []ProtoStep {
	cals := make([]ProtoStep, 0, len(d.Arcs)+len(d.Flats))
	cals = append(cals, d.Arcs...)
	cals = append(cals, d.Flats...)
	return cals
}

// MatchesStep reports whether a recorded step instantiates this block's
// definition. The step's offset is irrelevant for matching; the step
// type decides which side of the definition is consulted.
func (d StepDefinition) MatchesStep(p ProtoStep) bool {
	tmpl := p.Template()
	switch p.Type {
	case StepScience:
		return tmpl == d.Science.Template()
	case StepGcal:
		return lo.ContainsBy(d.Cals(), func(c ProtoStep) bool {
			return tmpl == c.Template()
		})
	default:
		return false
	}
}

// RecordWindow is one calibration validity window over a block's
// recorded steps: the science steps inside it are calibrated when every
// required calibration template is also present inside it.
type RecordWindow struct {
	Start time.Time
	End   time.Time

	def   StepDefinition
	steps []StepRecord
}

// NewRecordWindow bounds a window over the block's recorded steps; the
// steps are assumed sorted by created time and only those inside
// [start, end] participate.
func NewRecordWindow(start, end time.Time, def StepDefinition, steps []StepRecord) RecordWindow {
	inside := lo.Filter(steps, func(s StepRecord, _ int) bool {
		return !s.Created.Before(start) && !s.Created.After(end)
	})
	return RecordWindow{Start: start, End: end, def: def, steps: inside}
}

// MissingCalCounts counts, per calibration template, how many
// calibrations the window still needs after crediting the ones present.
// The match is offset agnostic.
func (w RecordWindow) MissingCalCounts() map[ProtoStep]int {
	required := lo.CountValuesBy(w.def.Cals(), func(c ProtoStep) ProtoStep {
		return c.Template()
	})

	for _, s := range w.steps {
		if !s.IsGcal() || !s.Successful() {
			continue
		}
		tmpl := s.Proto.Template()
		if n, ok := required[tmpl]; ok && n > 0 {
			required[tmpl] = n - 1
		}
	}

	return required
}

// MissingCals filters the ordered arcs-then-flats list down to the
// calibrations the window still needs.
func (w RecordWindow) MissingCals() []ProtoStep {
	missing := w.MissingCalCounts()

	out := make([]ProtoStep, 0)
	for _, c := range w.def.Cals() {
		tmpl := c.Template()
		if missing[tmpl] > 0 {
			out = append(out, c)
			missing[tmpl]--
		}
	}

	return out
}

// PendingScience maps the ids of successfully completed science steps in
// the window to their offsets.
func (w RecordWindow) PendingScience() map[uuid.UUID]Offset {
	pending := make(map[uuid.UUID]Offset)
	for _, s := range w.steps {
		if s.IsScience() && s.Successful() && w.def.MatchesStep(s.Proto) {
			pending[s.Id] = s.Proto.Offset
		}
	}
	return pending
}

// CalibratedScience is PendingScience when the window wants for no
// calibration, empty otherwise.
func (w RecordWindow) CalibratedScience() map[uuid.UUID]Offset {
	missing := w.MissingCalCounts()
	for _, n := range missing {
		if n > 0 {
			return map[uuid.UUID]Offset{}
		}
	}
	return w.PendingScience()
}

// blockCalibrated is the union of CalibratedScience across every window
// applicable to the block: each recorded step's timestamp anchors a
// window ending at min(t+CalValidityPeriod, blockEnd).
func blockCalibrated(def StepDefinition, steps []StepRecord, blockEnd time.Time) map[uuid.UUID]Offset {
	calibrated := make(map[uuid.UUID]Offset)

	for _, s := range steps {
		end := s.Created.Add(CalValidityPeriod)
		if end.After(blockEnd) {
			end = blockEnd
		}
		w := NewRecordWindow(s.Created, end, def, steps)
		for id, q := range w.CalibratedScience() {
			calibrated[id] = q
		}
	}

	return calibrated
}

package gmos

import (
	"errors"
	"fmt"
	"time"
)

// GcalStep is one concrete calibration produced by expanding a smart
// calibration placeholder: the materialised dynamic config, the lamp
// configuration and the class the step is charged under.
type GcalStep struct {
	Dynamic DynamicConfig `json:"dynamic"`
	Gcal    GcalConfig    `json:"gcal"`
	Class   ObserveClass  `json:"class"`
}

// SmartGcalExpander resolves a symbolic calibration placeholder into one
// or more concrete calibration steps. The lookup is keyed by the
// surrounding dynamic configuration. Implementations may perform I/O;
// the planner treats a failure as fatal for the science sequence.
type SmartGcalExpander interface {
	ExpandStep(dynamic DynamicConfig, smart SmartGcalType) ([]GcalStep, error)
}

// SmartGcalKey is the dynamic config signature a lookup table row is
// filed under.
type SmartGcalKey struct {
	Grating Grating       `json:"grating"`
	Filter  Filter        `json:"filter"`
	Fpu     Fpu           `json:"fpu"`
	XBin    Binning       `json:"xbin"`
	YBin    Binning       `json:"ybin"`
	Gain    AmpGain       `json:"gain"`
	Smart   SmartGcalType `json:"smart"`
}

// SmartGcalEntry is one prescribed calibration row: the lamp
// configuration, the exposure time that overrides the placeholder's and
// the observe class to charge.
type SmartGcalEntry struct {
	Gcal     GcalConfig    `json:"gcal"`
	Exposure time.Duration `json:"exposure"`
	Class    ObserveClass  `json:"class"`
}

// keyFor files a dynamic config under its lookup signature.
func keyFor(d DynamicConfig, smart SmartGcalType) SmartGcalKey {
	return SmartGcalKey{
		Grating: d.Grating,
		Filter:  d.Filter,
		Fpu:     d.Fpu,
		XBin:    d.XBin,
		YBin:    d.YBin,
		Gain:    d.AmpGain,
		Smart:   smart,
	}
}

// TableExpander is an in-memory smart gcal lookup table. The production
// service backs the same interface with the calibration database; this
// implementation serves the CLI (rows shipped in the observation request
// document) and the tests.
type TableExpander map[SmartGcalKey][]SmartGcalEntry

// ExpandStep resolves the placeholder against the table. A missing row
// is a MissingSmartGcal error carrying the signature.
func (t TableExpander) ExpandStep(dynamic DynamicConfig, smart SmartGcalType) ([]GcalStep, error) {
	key := keyFor(dynamic, smart)
	rows, ok := t[key]
	if !ok || len(rows) == 0 {
		return nil, errors.Join(
			ErrMissingSmartGcal,
			fmt.Errorf("no mapping for %s %s %s %dx%d %s %s",
				key.Grating, key.Filter, key.Fpu, key.XBin, key.YBin, key.Gain, key.Smart),
		)
	}

	steps := make([]GcalStep, len(rows))
	for i, row := range rows {
		materialised := dynamic
		materialised.Exposure = row.Exposure
		steps[i] = GcalStep{Dynamic: materialised, Gcal: row.Gcal, Class: row.Class}
	}

	return steps, nil
}

// expandProto runs a proto step through the expander. Smart calibration
// placeholders become concrete gcal steps at the placeholder's offset;
// anything else passes through unchanged as a singleton.
func expandProto(expander SmartGcalExpander, p ProtoStep) ([]ProtoStep, error) {
	if p.Type != StepSmartGcal {
		return []ProtoStep{p}, nil
	}

	expanded, err := expander.ExpandStep(p.Dynamic, p.Smart)
	if err != nil {
		return nil, err
	}

	out := make([]ProtoStep, len(expanded))
	for i, g := range expanded {
		out[i] = ProtoStep{
			Dynamic: g.Dynamic,
			Type:    StepGcal,
			Gcal:    g.Gcal,
			Class:   g.Class,
			Offset:  p.Offset,
		}
	}

	return out, nil
}

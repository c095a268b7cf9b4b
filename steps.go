package gmos

import (
	"time"

	"github.com/google/uuid"
)

// StepType classifies a step by what the instrument is asked to do.
type StepType uint8

const (
	StepBias StepType = iota
	StepDark
	StepGcal
	StepScience
	StepSmartGcal
)

func (t StepType) String() string {
	switch t {
	case StepBias:
		return "bias"
	case StepDark:
		return "dark"
	case StepGcal:
		return "gcal"
	case StepScience:
		return "science"
	default:
		return "smartgcal"
	}
}

// SmartGcalType is the symbolic calibration kind that the smart-gcal
// expander resolves into concrete lamp configurations.
type SmartGcalType uint8

const (
	SmartArc SmartGcalType = iota
	SmartFlat
)

func (t SmartGcalType) String() string {
	if t == SmartFlat {
		return "flat"
	}
	return "arc"
}

// ObserveClass determines which time account a step is charged to.
type ObserveClass uint8

const (
	ClassScience ObserveClass = iota
	ClassAcquisition
	ClassNightCal
	ClassDayCal
	ClassPartnerCal
	ClassProgramCal
)

func (c ObserveClass) String() string {
	switch c {
	case ClassAcquisition:
		return "acquisition"
	case ClassNightCal:
		return "nightcal"
	case ClassDayCal:
		return "daycal"
	case ClassPartnerCal:
		return "partnercal"
	case ClassProgramCal:
		return "programcal"
	default:
		return "science"
	}
}

// GcalConfig is the concrete calibration unit configuration produced by
// the smart-gcal lookup. The tags are opaque identifiers from the
// calibration unit's own enumerations.
type GcalConfig struct {
	Lamp     string `json:"lamp"`
	GcalFilt string `json:"filter"`
	Diffuser string `json:"diffuser"`
	Shutter  string `json:"shutter"`
}

// DynamicConfig is the per-step instrument configuration.
// A zero Wavelength together with an empty Grating means the mirror is in
// the beam (imaging).
type DynamicConfig struct {
	Exposure    time.Duration `json:"exposure"`
	Grating     Grating       `json:"grating"`
	Wavelength  Wavelength    `json:"wavelength_pm"`
	Filter      Filter        `json:"filter"`
	Fpu         Fpu           `json:"fpu"`
	XBin        Binning       `json:"xbin"`
	YBin        Binning       `json:"ybin"`
	AmpCount    AmpCount      `json:"amp_count"`
	AmpGain     AmpGain       `json:"amp_gain"`
	AmpReadMode AmpReadMode   `json:"amp_read_mode"`
	Roi         Roi           `json:"roi"`
}

// ProtoStep is a step before finalisation; it carries the full dynamic
// config plus the planner level annotations. ProtoStep is a comparable
// value; template matching is done by structural equality after
// canonicalising the match-irrelevant fields (see Template).
type ProtoStep struct {
	Dynamic    DynamicConfig `json:"dynamic"`
	Type       StepType      `json:"type"`
	Smart      SmartGcalType `json:"smart,omitempty"`
	Gcal       GcalConfig    `json:"gcal,omitempty"`
	Class      ObserveClass  `json:"class"`
	Offset     Offset        `json:"offset"`
	Guiding    bool          `json:"guiding"`
	Breakpoint bool          `json:"breakpoint"`
}

// WithOffset stamps a copy of the step at the given offset.
func (p ProtoStep) WithOffset(o Offset) ProtoStep {
	p.Offset = o
	return p
}

// WithBreakpoint marks a copy of the step as a breakpoint.
func (p ProtoStep) WithBreakpoint() ProtoStep {
	p.Breakpoint = true
	return p
}

// Template canonicalises a step for matching purposes: the offset is
// zeroed (calibrations are offset agnostic, and for science the question
// is whether the template applies at all), and the breakpoint marker and
// the guiding flag are cleared.
func (p ProtoStep) Template() ProtoStep {
	p.Offset = Offset{}
	p.Breakpoint = false
	p.Guiding = false
	return p
}

// QaState is the quality assessment recorded against an executed dataset.
type QaState uint8

const (
	QaUndefined QaState = iota
	QaPass
	QaUsable
	QaFail
)

func (q QaState) String() string {
	switch q {
	case QaPass:
		return "pass"
	case QaUsable:
		return "usable"
	case QaFail:
		return "fail"
	default:
		return "undefined"
	}
}

// StepRecord is a previously executed step fed back into the planner.
type StepRecord struct {
	Id        uuid.UUID    `json:"id"`
	AtomId    uuid.UUID    `json:"atom_id"`
	Created   time.Time    `json:"created"`
	Proto     ProtoStep    `json:"proto"`
	Completed bool         `json:"completed"`
	Qa        QaState      `json:"qa"`
	Sequence  SequenceType `json:"sequence"`
}

// Successful reports whether the step completed and its dataset has not
// been failed by QA.
func (s StepRecord) Successful() bool {
	return s.Completed && s.Qa != QaFail
}

func (s StepRecord) IsScience() bool {
	return s.Proto.Type == StepScience
}

func (s StepRecord) IsGcal() bool {
	return s.Proto.Type == StepGcal
}

func (s StepRecord) IsAcquisitionSequence() bool {
	return s.Sequence == SequenceAcquisition
}

func (s StepRecord) IsScienceSequence() bool {
	return s.Sequence == SequenceScience
}

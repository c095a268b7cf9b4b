package gmos

import (
	"time"

	"github.com/google/uuid"
)

const (
	acqP10Exposure  = 20 * time.Second
	acqSlitExposure = 360 * time.Second // ceiling; otherwise 3x the ccd2 exposure

	descInitialAcq      = "Initial Acquisition"
	descFineAdjustments = "Fine Adjustments"
)

// acqState tracks which of the three acquisition steps is expected next.
type acqState uint8

const (
	acqInit acqState = iota
	acqExpectCcd2
	acqExpectP10
	acqExpectSlit
)

// acquisitionGenerator plans the target centering sequence: a full frame
// image on CCD2, a stamp at +10 arcsec in p, then through-slit images
// repeated until the observer is satisfied. Failure at any step simply
// leaves the expectation unchanged, so the sequence resumes where it
// stalled.
type acquisitionGenerator struct {
	builder AtomBuilder

	ccd2 ProtoStep
	p10  ProtoStep
	slit ProtoStep

	state       acqState
	initialSlit bool
	lastReset   time.Time
	tracker     IndexTracker
}

// newAcquisition builds the acquisition generator for a long slit
// config. A non-zero lastReset that post-dates already recorded steps
// starts a fresh acquisition: the old steps feed the tracker without
// advancing the expectation.
func newAcquisition(namespace uuid.UUID, cfg Config, acqExposure time.Duration, lastReset time.Time) SequenceGenerator {
	imaging := DynamicConfig{
		Exposure:    acqExposure,
		Filter:      cfg.Filter,
		XBin:        BinTwo,
		YBin:        BinTwo,
		AmpCount:    cfg.AmpCount,
		AmpGain:     cfg.AmpGain,
		AmpReadMode: cfg.AmpReadMode,
		Roi:         RoiCcd2,
	}

	p10Dyn := imaging
	p10Dyn.Exposure = acqP10Exposure
	p10Dyn.XBin = BinOne
	p10Dyn.YBin = BinOne
	p10Dyn.Fpu = cfg.Fpu
	p10Dyn.Roi = RoiCentralStamp

	slitExposure := 3 * acqExposure
	if slitExposure > acqSlitExposure {
		slitExposure = acqSlitExposure
	}
	slitDyn := imaging
	slitDyn.Exposure = slitExposure
	slitDyn.XBin = BinOne
	slitDyn.YBin = BinOne
	slitDyn.Fpu = cfg.Fpu

	return acquisitionGenerator{
		builder: AtomBuilder{Namespace: namespace, Sequence: SequenceAcquisition},
		ccd2: ProtoStep{
			Dynamic: imaging,
			Type:    StepScience,
			Class:   ClassAcquisition,
			Guiding: true,
		},
		p10: ProtoStep{
			Dynamic: p10Dyn,
			Type:    StepScience,
			Class:   ClassAcquisition,
			Offset:  OffsetFromArcsec(10, 0),
			Guiding: true,
		},
		slit: ProtoStep{
			Dynamic: slitDyn,
			Type:    StepScience,
			Class:   ClassAcquisition,
			Guiding: true,
		},
		state:       acqInit,
		initialSlit: true,
		lastReset:   lastReset,
	}
}

// firstAtom is the state dependent opening atom of the next attempt; nil
// when the sequence is already down to fine adjustments.
func (g acquisitionGenerator) firstAtom() []ProtoStep {
	switch g.state {
	case acqInit, acqExpectCcd2:
		return []ProtoStep{g.ccd2, g.p10, g.slit.WithBreakpoint()}
	case acqExpectP10:
		return []ProtoStep{g.p10, g.slit.WithBreakpoint()}
	default:
		if g.initialSlit {
			return []ProtoStep{g.slit.WithBreakpoint()}
		}
		return nil
	}
}

// Generate emits the opening atom for the current expectation followed
// by an unbounded run of single step fine adjustment atoms. The iterator
// is infinite; callers pull only the atoms they intend to execute.
func (g acquisitionGenerator) Generate(time.Time) *AtomIter {
	first := g.firstAtom()
	atomIndex := g.tracker.NextAtomIndex()
	last := Last{}
	emittedFirst := false

	return NewAtomIter(func() (Atom, bool) {
		var atom Atom

		if !emittedFirst && first != nil {
			atom, last = g.builder.Build(descInitialAcq, atomIndex, 0, last, first)
			emittedFirst = true
			atomIndex++
			return atom, true
		}
		emittedFirst = true

		atom, last = g.builder.Build(descFineAdjustments, atomIndex, 0, last, []ProtoStep{g.slit})
		atomIndex++
		return atom, true
	})
}

// matches reports whether the recorded step instantiates the expected
// proto step, offsets and breakpoints aside.
func matches(expected ProtoStep, s StepRecord) bool {
	return s.Successful() && s.Proto.Template() == expected.Template()
}

// RecordStep advances the expectation when the recorded step is the one
// awaited; anything else feeds the tracker and leaves the expectation
// unchanged.
func (g acquisitionGenerator) RecordStep(s StepRecord) SequenceGenerator {
	if !s.IsAcquisitionSequence() {
		return g
	}

	g.tracker = g.tracker.RecordStep(s)

	if g.state == acqInit {
		if s.Created.Before(g.lastReset) {
			// pre-reset history; counted but ignored
			return g
		}
		g.state = acqExpectCcd2
	}

	switch g.state {
	case acqExpectCcd2:
		if matches(g.ccd2, s) {
			g.state = acqExpectP10
		}
	case acqExpectP10:
		if matches(g.p10, s) {
			g.state = acqExpectSlit
			g.initialSlit = true
		}
	case acqExpectSlit:
		if matches(g.slit, s) {
			g.initialSlit = false
		}
	}

	return g
}

// RecordAtom feeds an atom boundary through the tracker.
func (g acquisitionGenerator) RecordAtom(atomID uuid.UUID) SequenceGenerator {
	g.tracker = g.tracker.RecordAtom(atomID)
	return g
}

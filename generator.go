package gmos

import (
	"time"

	"github.com/google/uuid"
)

// AtomIter is a pull based iterator over planned atoms. Atoms are
// produced on demand; abandoning the iterator mid-stream costs nothing
// and leaves no observable state behind, because the pull function only
// ever captures copies of the generator's immutable state.
type AtomIter struct {
	pull func() (Atom, bool)
}

// NewAtomIter wraps a pull function. The function returns the next atom
// and true, or the zero atom and false once exhausted.
func NewAtomIter(pull func() (Atom, bool)) *AtomIter {
	return &AtomIter{pull: pull}
}

// Next produces the next atom.
func (it *AtomIter) Next() (Atom, bool) {
	return it.pull()
}

// Take drains up to n atoms. Mostly a convenience for digests and tests;
// execution hosts pull one atom at a time.
func (it *AtomIter) Take(n int) []Atom {
	atoms := make([]Atom, 0, n)
	for len(atoms) < n {
		a, ok := it.Next()
		if !ok {
			break
		}
		atoms = append(atoms, a)
	}
	return atoms
}

// Collect drains the iterator. Only safe on finite sequences; the
// acquisition sequence is unbounded by design.
func (it *AtomIter) Collect() []Atom {
	atoms := make([]Atom, 0)
	for {
		a, ok := it.Next()
		if !ok {
			return atoms
		}
		atoms = append(atoms, a)
	}
}

func emptyIter() *AtomIter {
	return NewAtomIter(func() (Atom, bool) { return Atom{}, false })
}

// SequenceGenerator plans the remaining atoms of one sequence. Values
// are immutable; recording a step or an atom boundary returns a new
// generator, and Generate is referentially transparent for a fixed
// generator value and timestamp.
type SequenceGenerator interface {
	// Generate emits the ordered remaining atoms as of the given
	// timestamp, lazily.
	Generate(timestamp time.Time) *AtomIter

	// RecordStep folds one executed step into the planning state.
	// Step deliveries must arrive in non-decreasing created order;
	// duplicate deliveries of the same step id are idempotent.
	RecordStep(step StepRecord) SequenceGenerator

	// RecordAtom marks an atom boundary ahead of the atom's steps.
	RecordAtom(atomID uuid.UUID) SequenceGenerator
}

// emptyGenerator yields nothing and ignores recording.
type emptyGenerator struct{}

// EmptyGenerator is a generator that yields nothing.
func EmptyGenerator() SequenceGenerator {
	return emptyGenerator{}
}

func (emptyGenerator) Generate(time.Time) *AtomIter              { return emptyIter() }
func (g emptyGenerator) RecordStep(StepRecord) SequenceGenerator { return g }
func (g emptyGenerator) RecordAtom(uuid.UUID) SequenceGenerator  { return g }

// StaticConfig carries the observation lifetime instrument settings.
type StaticConfig struct {
	StageMode     string `json:"stage_mode"`
	Detector      string `json:"detector"`
	MosPreImaging bool   `json:"mos_pre_imaging"`
}

// ExecutionConfigGenerator pairs the static configuration with the
// acquisition and science sequence generators for one observation.
type ExecutionConfigGenerator struct {
	ObservationID string
	Namespace     uuid.UUID
	Static        StaticConfig
	Acquisition   SequenceGenerator
	Science       SequenceGenerator
	Hash          ConfigHash
}

// RecordStep routes an executed step to the sequence it belongs to.
// The science planner additionally sees acquisition steps so it can pass
// them through untouched. The observation's entry in the process wide
// digest cache is dropped, since the recorded step changes the plan.
func (g ExecutionConfigGenerator) RecordStep(step StepRecord) ExecutionConfigGenerator {
	if step.Sequence == SequenceAcquisition {
		g.Acquisition = g.Acquisition.RecordStep(step)
	}
	g.Science = g.Science.RecordStep(step)
	InvalidateDigest(g)
	return g
}

// RecordAtom routes an atom boundary to one sequence.
func (g ExecutionConfigGenerator) RecordAtom(seq SequenceType, atomID uuid.UUID) ExecutionConfigGenerator {
	switch seq {
	case SequenceAcquisition:
		g.Acquisition = g.Acquisition.RecordAtom(atomID)
	default:
		g.Science = g.Science.RecordAtom(atomID)
	}
	return g
}

// NewLongSlit builds the execution config generator for a long slit
// observation: a three step acquisition and the wavelength dither block
// science sequence. The smart gcal expander is consulted once, up
// front, for every dither's calibrations; an expansion failure fails the
// whole science plan.
func NewLongSlit(
	commitHash []byte,
	observationID string,
	cfg Config,
	itc IntegrationTime,
	acqExposure time.Duration,
	role Role,
	expander SmartGcalExpander,
) (ExecutionConfigGenerator, error) {

	if err := cfg.Validate(); err != nil {
		return ExecutionConfigGenerator{}, err
	}
	if err := itc.Validate(); err != nil {
		return ExecutionConfigGenerator{}, SequenceUnavailable(observationID, err)
	}
	if itc.Exposure > SciencePeriod {
		return ExecutionConfigGenerator{}, SequenceUnavailable(observationID, ErrExposureTooLong)
	}
	if role == RoleTwilight {
		return ExecutionConfigGenerator{}, SequenceUnavailable(observationID, ErrUnsupportedRole)
	}
	if acqExposure <= 0 {
		return ExecutionConfigGenerator{}, SequenceUnavailable(observationID, ErrInvalidIntegrationTime)
	}

	params := generatorParams(cfg, itc, acqExposure, role)
	namespace := DeriveNamespace(commitHash, observationID, params)

	acq := newAcquisition(namespace, cfg, acqExposure, time.Time{})
	sci, err := newScience(namespace, observationID, cfg, itc, expander)
	if err != nil {
		return ExecutionConfigGenerator{}, err
	}

	return ExecutionConfigGenerator{
		ObservationID: observationID,
		Namespace:     namespace,
		Static:        StaticConfig{StageMode: "followxy", Detector: "hamamatsu"},
		Acquisition:   acq,
		Science:       sci,
		Hash:          LongSlitHash(cfg, itc, acqExposure, role),
	}, nil
}

// NewImaging builds the execution config generator for an imaging
// observation. Imaging needs no slit acquisition; the acquisition
// generator is empty.
func NewImaging(
	commitHash []byte,
	observationID string,
	cfg ImagingConfig,
	role Role,
) (ExecutionConfigGenerator, error) {

	if err := cfg.Validate(); err != nil {
		return ExecutionConfigGenerator{}, err
	}
	if role == RoleTwilight {
		return ExecutionConfigGenerator{}, SequenceUnavailable(observationID, ErrUnsupportedRole)
	}

	params := cfg.hashBytes()
	namespace := DeriveNamespace(commitHash, observationID, params)

	sci, err := newImaging(namespace, observationID, cfg)
	if err != nil {
		return ExecutionConfigGenerator{}, err
	}

	return ExecutionConfigGenerator{
		ObservationID: observationID,
		Namespace:     namespace,
		Static: StaticConfig{
			StageMode:     "followxy",
			Detector:      "hamamatsu",
			MosPreImaging: cfg.Variant == ImagingPreImaging,
		},
		Acquisition: EmptyGenerator(),
		Science:     sci,
		Hash:        ImagingHash(cfg, role),
	}, nil
}

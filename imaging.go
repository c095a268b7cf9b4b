package gmos

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// preImagingOffsets are the four fixed offsets of a MOS pre-imaging
// raster.
var preImagingOffsets = []Offset{
	OffsetFromArcsec(-5, -5),
	OffsetFromArcsec(-5, 5),
	OffsetFromArcsec(5, 5),
	OffsetFromArcsec(5, -5),
}

// imagingGenerator plans the imaging science sequence. The atom list is
// finite and computed up front from the variant; recording walks a
// cursor over it, re-emitting the in-progress atom whole until every
// one of its steps has been executed, since atoms are the executor's
// unit of repetition.
type imagingGenerator struct {
	builder    AtomBuilder
	protoAtoms []protoAtom
	cursor     int
	progress   int
	tracker    IndexTracker
}

// orderedFilters returns the filter bands by ascending effective
// wavelength, or descending when the config asks for it.
func orderedFilters(cfg ImagingConfig) []FilterBand {
	bands := append([]FilterBand(nil), cfg.Filters...)
	sort.SliceStable(bands, func(i, j int) bool {
		if cfg.Descending {
			return bands[i].Wavelength > bands[j].Wavelength
		}
		return bands[i].Wavelength < bands[j].Wavelength
	})
	return bands
}

func imagingScience(cfg ImagingConfig, f FilterBand, exposure time.Duration) ProtoStep {
	return ProtoStep{
		Dynamic: DynamicConfig{
			Exposure:    exposure,
			Filter:      f.Name,
			XBin:        cfg.XBin,
			YBin:        cfg.YBin,
			AmpCount:    cfg.AmpCount,
			AmpGain:     cfg.AmpGain,
			AmpReadMode: cfg.AmpReadMode,
			Roi:         cfg.Roi,
		},
		Type:    StepScience,
		Class:   ClassScience,
		Guiding: true,
	}
}

// skySteps are science exposures taken at the supplied sky offsets with
// guiding disabled.
func skySteps(science ProtoStep, offsets []Offset) []ProtoStep {
	steps := make([]ProtoStep, len(offsets))
	for i, o := range offsets {
		s := science.WithOffset(o)
		s.Guiding = false
		steps[i] = s
	}
	return steps
}

// groupedAtoms emits one sky-science-sky atom per filter when sky
// offsets exist, otherwise one atom per science exposure.
func groupedAtoms(cfg ImagingConfig) []protoAtom {
	atoms := make([]protoAtom, 0)

	for _, f := range orderedFilters(cfg) {
		itc := cfg.Times[f.Name]
		science := imagingScience(cfg, f, itc.Exposure)

		if len(cfg.SkyOffsets) > 0 {
			steps := make([]ProtoStep, 0, 2*len(cfg.SkyOffsets)+itc.Count)
			steps = append(steps, skySteps(science, cfg.SkyOffsets)...)
			for i := 0; i < itc.Count; i++ {
				steps = append(steps, science)
			}
			steps = append(steps, skySteps(science, cfg.SkyOffsets)...)
			atoms = append(atoms, protoAtom{description: string(f.Name), steps: steps})
			continue
		}

		for i := 0; i < itc.Count; i++ {
			atoms = append(atoms, protoAtom{
				description: string(f.Name),
				steps:       []ProtoStep{science},
			})
		}
	}

	return atoms
}

// interleavedAtoms emits a single atom cycling the filters in groups.
// The group count is the smallest per filter exposure count; each
// filter's total is spread over the groups, early groups taking the
// remainder.
func interleavedAtoms(cfg ImagingConfig) []protoAtom {
	bands := orderedFilters(cfg)

	groups := lo.Min(lo.Map(bands, func(f FilterBand, _ int) int {
		return cfg.Times[f.Name].Count
	}))
	if groups < 1 {
		groups = 1
	}

	perGroup := make(map[Filter][]int, len(bands))
	for _, f := range bands {
		count := cfg.Times[f.Name].Count
		base := count / groups
		extra := count % groups
		counts := make([]int, groups)
		for g := 0; g < groups; g++ {
			counts[g] = base
			if g < extra {
				counts[g]++
			}
		}
		perGroup[f.Name] = counts
	}

	sky := make([]ProtoStep, 0)
	if len(cfg.SkyOffsets) > 0 && len(bands) > 0 {
		first := imagingScience(cfg, bands[0], cfg.Times[bands[0].Name].Exposure)
		sky = skySteps(first, cfg.SkyOffsets)
	}

	steps := make([]ProtoStep, 0)
	steps = append(steps, sky...)
	for g := 0; g < groups; g++ {
		for _, f := range bands {
			science := imagingScience(cfg, f, cfg.Times[f.Name].Exposure)
			for i := 0; i < perGroup[f.Name][g]; i++ {
				steps = append(steps, science)
			}
		}
	}
	steps = append(steps, lo.Reverse(append([]ProtoStep(nil), sky...))...)

	return []protoAtom{{description: "interleaved", steps: steps}}
}

// preImagingAtoms emits one atom per filter, the exposures cycling the
// four fixed raster offsets with guiding enabled throughout.
func preImagingAtoms(cfg ImagingConfig) []protoAtom {
	atoms := make([]protoAtom, 0, len(cfg.Filters))

	for _, f := range orderedFilters(cfg) {
		itc := cfg.Times[f.Name]
		science := imagingScience(cfg, f, itc.Exposure)

		steps := make([]ProtoStep, itc.Count)
		for i := 0; i < itc.Count; i++ {
			steps[i] = science.WithOffset(preImagingOffsets[i%len(preImagingOffsets)])
		}
		atoms = append(atoms, protoAtom{description: string(f.Name), steps: steps})
	}

	return atoms
}

// newImaging builds the imaging science generator for the configured
// variant.
func newImaging(namespace uuid.UUID, observationID string, cfg ImagingConfig) (SequenceGenerator, error) {
	var atoms []protoAtom
	switch cfg.Variant {
	case ImagingInterleaved:
		atoms = interleavedAtoms(cfg)
	case ImagingPreImaging:
		atoms = preImagingAtoms(cfg)
	default:
		atoms = groupedAtoms(cfg)
	}

	return imagingGenerator{
		builder:    AtomBuilder{Namespace: namespace, Sequence: SequenceScience},
		protoAtoms: atoms,
	}, nil
}

// Generate emits the atoms not yet fully executed.
func (g imagingGenerator) Generate(time.Time) *AtomIter {
	idx := g.cursor
	atomIndex := g.tracker.NextAtomIndex()
	last := Last{}

	return NewAtomIter(func() (Atom, bool) {
		if idx >= len(g.protoAtoms) {
			return Atom{}, false
		}

		var atom Atom
		atom, last = g.builder.Build(g.protoAtoms[idx].description, atomIndex, 0, last, g.protoAtoms[idx].steps)
		idx++
		atomIndex++
		return atom, true
	})
}

// RecordStep advances the cursor as the current atom's steps complete
// in order. A partially executed atom abandoned at an atom boundary is
// re-emitted whole.
func (g imagingGenerator) RecordStep(s StepRecord) SequenceGenerator {
	if !s.IsScienceSequence() || g.cursor >= len(g.protoAtoms) {
		return g
	}

	prev := g.tracker
	g.tracker = g.tracker.RecordStep(s)

	if (!prev.Recording() || g.tracker.AtomCount() > prev.AtomCount()) && g.progress > 0 {
		// abandoned mid-atom; the whole atom runs again
		g.progress = 0
	}

	expected := g.protoAtoms[g.cursor].steps[g.progress]
	e := expected
	e.Breakpoint = false
	r := s.Proto
	r.Breakpoint = false

	if s.Successful() && r == e {
		g.progress++
		if g.progress >= len(g.protoAtoms[g.cursor].steps) {
			g.cursor++
			g.progress = 0
		}
	}

	return g
}

// RecordAtom feeds an atom boundary through the tracker.
func (g imagingGenerator) RecordAtom(atomID uuid.UUID) SequenceGenerator {
	g.tracker = g.tracker.RecordAtom(atomID)
	return g
}

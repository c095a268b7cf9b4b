package gmos

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Remaining is the ordered multiset of pending science exposures for one
// dither, one element per exposure carrying the offset it should be
// taken at. Values are immutable; Take and Decrement return fresh
// multisets.
type Remaining struct {
	items []Offset
}

// Total is the number of pending exposures.
func (r Remaining) Total() int {
	return len(r.items)
}

// Take draws up to n offsets from the front, returning the drawn
// offsets and the remainder.
func (r Remaining) Take(n int) ([]Offset, Remaining) {
	if n > len(r.items) {
		n = len(r.items)
	}
	if n < 0 {
		n = 0
	}
	taken := append([]Offset(nil), r.items[:n]...)
	rest := append([]Offset(nil), r.items[n:]...)
	return taken, Remaining{items: rest}
}

// Decrement removes the first pending exposure at the given offset, if
// any.
func (r Remaining) Decrement(o Offset) Remaining {
	for i, item := range r.items {
		if item == o {
			rest := make([]Offset, 0, len(r.items)-1)
			rest = append(rest, r.items[:i]...)
			rest = append(rest, r.items[i+1:]...)
			return Remaining{items: rest}
		}
	}
	return r
}

// Dither is one wavelength block: its step definition and the pending
// exposure multiset.
type Dither struct {
	Description string
	Definition  StepDefinition
	Remaining   Remaining
}

// DitherRecord pairs a dither with the steps recorded against its
// current atom, ordered by created time.
type DitherRecord struct {
	Dither
	Steps []StepRecord
}

// record appends a step; duplicate deliveries of the same step id are
// dropped, keeping replay idempotent.
func (d DitherRecord) record(s StepRecord) DitherRecord {
	if lo.ContainsBy(d.Steps, func(r StepRecord) bool { return r.Id == s.Id }) {
		return d
	}
	steps := make([]StepRecord, 0, len(d.Steps)+1)
	steps = append(steps, d.Steps...)
	steps = append(steps, s)
	d.Steps = steps
	return d
}

// settle folds the block's calibrated science into the pending multiset
// and empties the recorded step map. Only calibrated science counts;
// anything whose calibrations expired uncredited stays pending and will
// be re-planned.
func (d DitherRecord) settle(blockEnd time.Time) DitherRecord {
	if len(d.Steps) == 0 {
		return d
	}

	for _, q := range blockCalibrated(d.Definition, d.Steps, blockEnd) {
		d.Remaining = d.Remaining.Decrement(q)
	}
	d.Steps = nil
	return d
}

// protoAtom is an atom before finalisation.
type protoAtom struct {
	description string
	steps       []ProtoStep
}

// scienceGenerator plans the long slit science sequence: science and
// calibration atoms per wavelength dither, sized against the science
// period budget and the calibration validity window.
type scienceGenerator struct {
	namespace     uuid.UUID
	observationID string
	builder       AtomBuilder
	blocks        []DitherRecord
	pos           int
	tracker       IndexTracker
	maxPerBlock   int
}

// newScience builds the science generator: per dither goals, smart gcal
// expansion of each dither's calibrations, and the pending exposure
// multisets. Expansion failures fail the whole plan.
func newScience(
	namespace uuid.UUID,
	observationID string,
	cfg Config,
	itc IntegrationTime,
	expander SmartGcalExpander,
) (SequenceGenerator, error) {

	goals := ComputeGoals(cfg.Dithers, cfg.SpatialOffsets(), itc)

	blocks := make([]DitherRecord, len(goals))
	for i, goal := range goals {
		science := ProtoStep{
			Dynamic: DynamicConfig{
				Exposure:    itc.Exposure,
				Grating:     cfg.Grating,
				Wavelength:  cfg.CentralWavelength + Wavelength(goal.Dither),
				Filter:      cfg.Filter,
				Fpu:         cfg.Fpu,
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

		arcs, err := expandProto(expander, ProtoStep{
			Dynamic: science.Dynamic,
			Type:    StepSmartGcal,
			Smart:   SmartArc,
			Class:   ClassNightCal,
		})
		if err != nil {
			return nil, SequenceUnavailable(observationID, err)
		}

		flats, err := expandProto(expander, ProtoStep{
			Dynamic: science.Dynamic,
			Type:    StepSmartGcal,
			Smart:   SmartFlat,
			Class:   ClassNightCal,
		})
		if err != nil {
			return nil, SequenceUnavailable(observationID, err)
		}

		blocks[i] = DitherRecord{
			Dither: Dither{
				Description: fmt.Sprintf("%.3f nm", science.Dynamic.Wavelength.Nanometers()),
				Definition:  StepDefinition{Arcs: arcs, Flats: flats, Science: science},
				Remaining:   remainingFor(goal),
			},
		}
	}

	return scienceGenerator{
		namespace:     namespace,
		observationID: observationID,
		builder:       AtomBuilder{Namespace: namespace, Sequence: SequenceScience},
		blocks:        blocks,
		maxPerBlock:   MaxPerBlock(itc.Exposure),
	}, nil
}

func (g scienceGenerator) cloneBlocks() []DitherRecord {
	return append([]DitherRecord(nil), g.blocks...)
}

// fullBlock draws up to a science period's worth of exposures for one
// dither. Emission order is arcs, flats, then the science steps; the
// calibrations are stamped at the first drawn offset.
func fullBlock(d DitherRecord, maxPerBlock int) (protoAtom, DitherRecord) {
	offs, rest := d.Remaining.Take(maxPerBlock)
	if len(offs) == 0 {
		return protoAtom{}, d
	}
	d.Remaining = rest

	steps := make([]ProtoStep, 0, len(d.Definition.Cals())+len(offs))
	for _, c := range d.Definition.Cals() {
		steps = append(steps, c.WithOffset(offs[0]))
	}
	for _, q := range offs {
		steps = append(steps, d.Definition.Science.WithOffset(q))
	}

	return protoAtom{description: d.Description, steps: steps}, d
}

// reorderTaken moves the drawn offsets equal to the most recent offset
// to the front, avoiding a pointless telescope move at the top of the
// remainder.
func reorderTaken(offs []Offset, recent Offset, haveRecent bool) []Offset {
	if !haveRecent {
		return offs
	}
	front := lo.Filter(offs, func(o Offset, _ int) bool { return o == recent })
	back := lo.Filter(offs, func(o Offset, _ int) bool { return o != recent })
	return append(front, back...)
}

// blockRemainder completes the block in progress as of the given
// timestamp: whatever science still fits inside the open calibration
// window, together with any calibrations the window is missing.
//
// The ordering decision keys off the science currently sitting in the
// live window (calibrated or not): when the window holds none the
// calibrations lead as in a full block, otherwise they trail so that
// they also cover the science already exposed. The count arithmetic, by
// contrast, credits everything the block has calibrated so far, whether
// or not its window is still open.
func blockRemainder(d DitherRecord, maxPerBlock int, ts time.Time) (protoAtom, DitherRecord) {
	def := d.Definition

	calibrated := blockCalibrated(def, d.Steps, ts)

	window := NewRecordWindow(ts.Add(-CalValidityPeriod), ts, def, d.Steps)
	pending := window.PendingScience()
	missing := window.MissingCals()
	windowCal := window.CalibratedScience()

	uncalibrated := lo.OmitByKeys(pending, lo.Keys(calibrated))

	liveCount := len(lo.Assign(windowCal, uncalibrated))
	blockCount := len(lo.Assign(calibrated, uncalibrated))

	// retire the calibrated exposures from the pending multiset before
	// drawing more
	remaining := d.Remaining
	for _, q := range calibrated {
		remaining = remaining.Decrement(q)
	}

	maxRemaining := remaining.Total()
	if limit := maxPerBlock - blockCount; limit < maxRemaining {
		maxRemaining = limit
	}
	if maxRemaining < 0 {
		maxRemaining = 0
	}

	// most recent offset, for cal stamping and reordering
	var recent Offset
	haveRecent := false
	if n := len(d.Steps); n > 0 {
		recent = d.Steps[n-1].Proto.Offset
		haveRecent = true
	}

	// time budget: the open window expires a validity period after its
	// earliest step; the missing calibrations eat into what is left
	expiry := ts.Add(CalValidityPeriod)
	if len(window.steps) > 0 {
		earliest := lo.MinBy(window.steps, func(a, b StepRecord) bool {
			return a.Created.Before(b.Created)
		})
		expiry = earliest.Created.Add(CalValidityPeriod)
	}

	calTime := EstimateTotal(missing).Total()
	remainingTime := expiry.Sub(ts) - calTime

	firstOff := Offset{}
	if first, _ := remaining.Take(1); len(first) > 0 {
		firstOff = first[0]
	}

	last := Last{}
	for _, c := range missing {
		last, _ = EstimateStep(last, c)
	}
	lastAfterFirst, firstCost := EstimateStep(last, def.Science.WithOffset(firstOff))
	_, otherCost := EstimateStep(lastAfterFirst, def.Science.WithOffset(firstOff))
	firstStepTime := firstCost.Total()
	otherStepTime := otherCost.Total()

	newCount := 0
	if remainingTime < firstStepTime {
		// no room for more science; re-emit the missing calibrations
		// when uncalibrated datasets would otherwise be lost
		if len(uncalibrated) == 0 {
			d.Remaining = remaining
			d.Steps = nil
			return protoAtom{}, d
		}
	} else {
		otherCount := 0
		if otherStepTime > 0 {
			otherCount = int((remainingTime - firstStepTime) / otherStepTime)
		}
		newCount = 1 + otherCount
		if newCount > maxRemaining {
			newCount = maxRemaining
		}
	}

	offs, rest := remaining.Take(newCount)
	offs = reorderTaken(offs, recent, haveRecent)

	steps := make([]ProtoStep, 0, len(missing)+len(offs))
	if liveCount == 0 {
		calOff := firstOff
		if len(offs) > 0 {
			calOff = offs[0]
		} else if haveRecent {
			calOff = recent
		}
		for _, c := range missing {
			steps = append(steps, c.WithOffset(calOff))
		}
		for _, q := range offs {
			steps = append(steps, def.Science.WithOffset(q))
		}
	} else {
		for _, q := range offs {
			steps = append(steps, def.Science.WithOffset(q))
		}
		calOff := recent
		if len(offs) > 0 {
			calOff = offs[len(offs)-1]
		}
		for _, c := range missing {
			steps = append(steps, c.WithOffset(calOff))
		}
	}

	d.Remaining = rest
	d.Steps = nil

	return protoAtom{description: d.Description, steps: steps}, d
}

// Generate lazily emits the remaining science atoms as of the given
// timestamp: the in-progress block's remainder first, then full blocks
// round-robin across the dithers until every pending multiset is empty.
func (g scienceGenerator) Generate(timestamp time.Time) *AtomIter {
	blocks := g.cloneBlocks()
	n := len(blocks)
	if n == 0 {
		return emptyIter()
	}

	atomIndex := g.tracker.NextAtomIndex()
	last := Last{}
	idx := g.pos
	firstVisit := true

	return NewAtomIter(func() (Atom, bool) {
		for {
			total := 0
			for _, b := range blocks {
				total += b.Remaining.Total()
				total += len(b.Steps) // an unsettled block may still owe cals
			}
			if total == 0 {
				return Atom{}, false
			}

			var proto protoAtom
			if firstVisit && len(blocks[idx].Steps) > 0 {
				proto, blocks[idx] = blockRemainder(blocks[idx], g.maxPerBlock, timestamp)
			} else {
				proto, blocks[idx] = fullBlock(blocks[idx], g.maxPerBlock)
			}
			firstVisit = false

			if len(proto.steps) == 0 {
				// nothing owed by this dither right now; move on, but
				// bail out once every dither is drained
				exhausted := lo.EveryBy(blocks, func(b DitherRecord) bool {
					return b.Remaining.Total() == 0 && len(b.Steps) == 0
				})
				if exhausted {
					return Atom{}, false
				}
				idx = (idx + 1) % n
				continue
			}

			var atom Atom
			atom, last = g.builder.Build(proto.description, atomIndex, 0, last, proto.steps)
			atomIndex++
			idx = (idx + 1) % n

			return atom, true
		}
	})
}

// RecordStep folds one executed step into the planner. Bias, dark and
// unexpanded smart gcal steps play no part in long slit planning;
// acquisition steps pass through untouched.
func (g scienceGenerator) RecordStep(s StepRecord) SequenceGenerator {
	if s.IsAcquisitionSequence() {
		return g
	}
	switch s.Proto.Type {
	case StepBias, StepDark, StepSmartGcal:
		return g
	}

	newTracker := g.tracker.RecordStep(s)
	newAtom := !g.tracker.Recording() || newTracker.AtomCount() > g.tracker.AtomCount()

	blocks := g.cloneBlocks()

	if newAtom {
		// close out every block, then advance to the first block whose
		// definition matches the incoming step
		for i := range blocks {
			blocks[i] = blocks[i].settle(s.Created)
		}

		pos := g.pos
		for k := 1; k <= len(blocks); k++ {
			i := (g.pos + k) % len(blocks)
			if blocks[i].Definition.MatchesStep(s.Proto) {
				pos = i
				break
			}
		}
		blocks[pos] = blocks[pos].record(s)

		g.pos = pos
	} else {
		// mid-atom: only the current block receives the step; the rest
		// have nothing in flight and settling them is a no-op
		for i := range blocks {
			if i == g.pos {
				blocks[i] = blocks[i].record(s)
			} else {
				blocks[i] = blocks[i].settle(s.Created)
			}
		}
	}

	g.blocks = blocks
	g.tracker = newTracker

	return g
}

// RecordAtom marks an atom boundary; the tracker resets and the next
// recorded step settles the blocks.
func (g scienceGenerator) RecordAtom(atomID uuid.UUID) SequenceGenerator {
	g.tracker = g.tracker.RecordAtom(atomID)
	return g
}

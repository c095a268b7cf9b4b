package gmos

import (
	"time"

	"github.com/samber/lo"
)

const (
	// SciencePeriod is the nominal dwell per dither and offset
	// combination; one block of science steps is sized against it.
	SciencePeriod = 60 * time.Minute

	// CalValidityPeriod is how long an arc or flat remains usable.
	CalValidityPeriod = 90 * time.Minute
)

// Adjustment pairs one wavelength dither with one spatial offset.
type Adjustment struct {
	Dither WavelengthDither `json:"dither_pm"`
	Offset Offset           `json:"offset"`
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	return a / gcd(a, b) * b
}

// ScheduledAdjustments produces the adjustment schedule: the dither and
// offset lists cycle independently, and the schedule runs for the least
// common multiple of the two lengths so that every pairing appears
// before the pattern repeats. Empty lists behave as a single zero
// element.
func ScheduledAdjustments(dithers []WavelengthDither, offsets []Offset) []Adjustment {
	if len(dithers) == 0 {
		dithers = []WavelengthDither{0}
	}
	if len(offsets) == 0 {
		offsets = []Offset{{}}
	}

	n := lcm(len(dithers), len(offsets))
	schedule := make([]Adjustment, n)
	for i := 0; i < n; i++ {
		schedule[i] = Adjustment{
			Dither: dithers[i%len(dithers)],
			Offset: offsets[i%len(offsets)],
		}
	}

	return schedule
}

// Goal is the per dither exposure plan: the dither, its position in the
// dither list and the exposure quota at each offset. The quotas sum to
// the dither's exposure count.
type Goal struct {
	Dither WavelengthDither
	Index  int
	Counts []int    // parallel to Offs
	Offs   []Offset // the offset cycle for this goal
}

// Total sums the offset quotas.
func (g Goal) Total() int {
	return lo.Sum(g.Counts)
}

// MaxPerBlock is the exposure capacity of one science period block.
// An exposure at or beyond the full period still yields one exposure per
// block; exposures longer than the period are rejected upstream.
func MaxPerBlock(exposure time.Duration) int {
	capped := exposure
	if capped > SciencePeriod {
		capped = SciencePeriod
	}
	if capped <= 0 {
		return 1
	}
	return int(SciencePeriod / capped)
}

// ComputeGoals distributes the recommended exposure count over the
// wavelength dithers and, within each dither, over the spatial offsets.
//
// When everything fits in one block per dither the count spreads evenly,
// first dithers taking the remainder. Otherwise whole blocks are dealt
// round-robin so early dithers complete full science periods before any
// dither starts a partial one.
//
// Within a dither, offsets receive count/len each; the extras rotate by
// the running extra total so that consecutive dithers do not pile their
// extras on the same offset.
func ComputeGoals(dithers []WavelengthDither, offsets []Offset, itc IntegrationTime) []Goal {
	if len(dithers) == 0 {
		dithers = []WavelengthDither{0}
	}
	if len(offsets) == 0 {
		offsets = []Offset{{}}
	}

	nd := len(dithers)
	nq := len(offsets)
	maxPerBlock := MaxPerBlock(itc.Exposure)

	perDither := make([]int, nd)
	if itc.Count <= nd*maxPerBlock {
		base := itc.Count / nd
		rem := itc.Count % nd
		for i := range perDither {
			perDither[i] = base
			if i < rem {
				perDither[i]++
			}
		}
	} else {
		fullBlocks := itc.Count / maxPerBlock
		leftover := itc.Count % maxPerBlock
		baseBlocks := fullBlocks / nd
		rem := fullBlocks % nd
		for i := range perDither {
			perDither[i] = baseBlocks * maxPerBlock
			switch {
			case i < rem:
				perDither[i] += maxPerBlock
			case i == rem:
				perDither[i] += leftover
			}
		}
	}

	goals := make([]Goal, nd)
	running := 0
	for i, d := range dithers {
		n := perDither[i]
		base := n / nq
		extra := n % nq

		counts := make([]int, nq)
		for j := range counts {
			counts[j] = base
		}
		for j := 0; j < extra; j++ {
			counts[(j+running)%nq]++
		}
		running += extra

		goals[i] = Goal{
			Dither: d,
			Index:  i,
			Counts: counts,
			Offs:   append([]Offset(nil), offsets...),
		}
	}

	return goals
}

// remainingFor expands a goal into the ordered multiset of pending
// exposures: the offsets cycle in configured order, each drawn until its
// quota is spent, so a block's Take walks the same offset rotation the
// adjustment schedule does.
func remainingFor(g Goal) Remaining {
	counts := append([]int(nil), g.Counts...)
	items := make([]Offset, 0, g.Total())

	for lo.Sum(counts) > 0 {
		for j, o := range g.Offs {
			if counts[j] > 0 {
				items = append(items, o)
				counts[j]--
			}
		}
	}

	return Remaining{items: items}
}

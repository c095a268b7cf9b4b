package gmos

import (
	"math"
	"time"
)

// Time cost policy constants. The readout values come from the same
// instrument vendor configuration the observatory sequence executor uses;
// the remaining tariffs are the fixed observatory policy numbers.
const (
	// offset move: constant plus a linear term per arcsecond of distance
	offsetConstCost    = 7 * time.Second
	offsetPerArcsecond = 62500 * time.Microsecond

	scienceFoldCost = 5 * time.Second
	filterMoveCost  = 20 * time.Second
	fpuMoveCost     = 60 * time.Second
	gratingMoveCost = 90 * time.Second

	writeCost = 10 * time.Second
)

// CategorizedTime splits a duration across the time accounting
// categories used for program charging.
type CategorizedTime struct {
	Program    time.Duration `json:"program"`
	Partner    time.Duration `json:"partner"`
	NonCharged time.Duration `json:"non_charged"`
}

// Total sums the categories.
func (c CategorizedTime) Total() time.Duration {
	return c.Program + c.Partner + c.NonCharged
}

// Add combines two categorised times component wise.
func (c CategorizedTime) Add(other CategorizedTime) CategorizedTime {
	return CategorizedTime{
		Program:    c.Program + other.Program,
		Partner:    c.Partner + other.Partner,
		NonCharged: c.NonCharged + other.NonCharged,
	}
}

// charge buckets a duration into the account the observe class bills to.
func charge(class ObserveClass, d time.Duration) CategorizedTime {
	switch class {
	case ClassPartnerCal, ClassDayCal:
		return CategorizedTime{Partner: d}
	default:
		// science, program cals, night cals and acquisition are all
		// charged against the program
		return CategorizedTime{Program: d}
	}
}

// Last is the previous steps memory threaded through estimation. It
// carries the last telescope offset, the last instrument configuration
// and whether the science fold was left in the beam.
type Last struct {
	HasOffset bool
	Offset    Offset

	HasConfig bool
	Fpu       Fpu
	Grating   Grating
	Filter    Filter

	ScienceFold bool
}

// foldInBeam reports whether the step needs the science fold in the
// beam; calibration unit steps do, on-sky steps do not.
func foldInBeam(p ProtoStep) bool {
	return p.Type == StepGcal || p.Type == StepSmartGcal
}

// readoutTime returns the detector readout duration for the step's
// binning, amplifier configuration and region of interest.
func readoutTime(d DynamicConfig) time.Duration {
	// full frame, 1x1 binning base values in seconds
	var base float64
	switch d.AmpReadMode {
	case ReadFast:
		switch d.AmpCount {
		case AmpThree:
			base = 16.8
		case AmpSix:
			base = 10.1
		default:
			base = 6.9
		}
	default:
		switch d.AmpCount {
		case AmpThree:
			base = 67.1
		case AmpSix:
			base = 38.9
		default:
			base = 25.6
		}
	}

	var roiFactor float64
	switch d.Roi {
	case RoiCcd2:
		roiFactor = 1.0 / 3.0
	case RoiCentralSpectrum:
		roiFactor = 1.0 / 4.0
	case RoiCentralStamp:
		roiFactor = 1.0 / 16.0
	default:
		roiFactor = 1.0
	}

	xbin := float64(d.XBin)
	ybin := float64(d.YBin)
	if xbin == 0 {
		xbin = 1
	}
	if ybin == 0 {
		ybin = 1
	}

	seconds := base * roiFactor / (xbin * ybin)
	return time.Duration(math.Round(seconds * float64(time.Second)))
}

// EstimateStep computes the cost of executing one step given the memory
// of previous steps, returning the updated memory alongside the
// categorised cost. The planner threads this through a block when sizing
// it against the science period budget.
func EstimateStep(last Last, step ProtoStep) (Last, CategorizedTime) {
	cost := time.Duration(0)

	// telescope offset move; calibrations execute wherever the telescope
	// happens to be, so only on-sky steps pay for moves
	if !foldInBeam(step) {
		if !last.HasOffset {
			if !step.Offset.IsZero() {
				distance := step.Offset.Distance(Offset{})
				cost += offsetConstCost + time.Duration(distance*float64(offsetPerArcsecond))
			}
		} else if last.Offset != step.Offset {
			distance := step.Offset.Distance(last.Offset)
			cost += offsetConstCost + time.Duration(distance*float64(offsetPerArcsecond))
		}
		last.HasOffset = true
		last.Offset = step.Offset
	}

	// science fold in/out of the beam
	if foldInBeam(step) != last.ScienceFold {
		cost += scienceFoldCost
		last.ScienceFold = foldInBeam(step)
	}

	// instrument configuration changes
	if last.HasConfig {
		if step.Dynamic.Filter != last.Filter {
			cost += filterMoveCost
		}
		if step.Dynamic.Fpu != last.Fpu {
			cost += fpuMoveCost
		}
		if step.Dynamic.Grating != last.Grating {
			cost += gratingMoveCost
		}
	}
	last.HasConfig = true
	last.Filter = step.Dynamic.Filter
	last.Fpu = step.Dynamic.Fpu
	last.Grating = step.Dynamic.Grating

	// exposure, readout, write
	cost += step.Dynamic.Exposure
	cost += readoutTime(step.Dynamic)
	cost += writeCost

	return last, charge(step.Class, cost)
}

// EstimateOne estimates a step with no previous step memory.
func EstimateOne(step ProtoStep) CategorizedTime {
	_, cost := EstimateStep(Last{}, step)
	return cost
}

// EstimateTotal estimates a list of steps executed in order, threading
// the memory from an empty start.
func EstimateTotal(steps []ProtoStep) CategorizedTime {
	total := CategorizedTime{}
	last := Last{}

	var cost CategorizedTime
	for _, s := range steps {
		last, cost = EstimateStep(last, s)
		total = total.Add(cost)
	}

	return total
}

package gmos

import (
	"testing"
	"time"
)

func scienceStep(exposure time.Duration, offset Offset) ProtoStep {
	cfg := testConfig()
	return ProtoStep{
		Dynamic: DynamicConfig{
			Exposure:    exposure,
			Grating:     cfg.Grating,
			Wavelength:  cfg.CentralWavelength,
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
	}.WithOffset(offset)
}

func TestEstimateBaseCost(t *testing.T) {
	step := scienceStep(60*time.Second, Offset{})

	got := EstimateOne(step).Total()

	// exposure + slow 12-amp full frame readout + write
	want := 60*time.Second + 25600*time.Millisecond + 10*time.Second
	if got != want {
		t.Errorf("base cost = %s, want %s", got, want)
	}
}

func TestEstimateOffsetMove(t *testing.T) {
	near := scienceStep(60*time.Second, Offset{})
	far := scienceStep(60*time.Second, OffsetFromArcsec(0, 16))

	last, first := EstimateStep(Last{}, near)
	_, second := EstimateStep(last, far)

	// 7 s constant plus 62.5 ms per arcsecond over 16 arcsec
	moveCost := 7*time.Second + 16*62500*time.Microsecond
	if got := second.Total() - first.Total(); got != moveCost {
		t.Errorf("offset move cost = %s, want %s", got, moveCost)
	}

	// staying put is free
	last, _ = EstimateStep(Last{}, near)
	_, again := EstimateStep(last, near)
	if again.Total() != first.Total() {
		t.Error("repeating an offset must not charge a move")
	}
}

func TestEstimateScienceFold(t *testing.T) {
	science := scienceStep(60*time.Second, Offset{})
	gcal := science
	gcal.Type = StepGcal
	gcal.Class = ClassNightCal
	gcal.Dynamic.Exposure = 1 * time.Second

	// science then gcal pays one fold move; gcal then gcal does not
	last, _ := EstimateStep(Last{}, science)
	afterScience, a := EstimateStep(last, gcal)
	_, b := EstimateStep(afterScience, gcal)

	if got := a.Total() - b.Total(); got != scienceFoldCost {
		t.Errorf("fold cost = %s, want %s", got, scienceFoldCost)
	}
}

func TestEstimateChargeClasses(t *testing.T) {
	science := scienceStep(60*time.Second, Offset{})

	partnerCal := science
	partnerCal.Type = StepGcal
	partnerCal.Class = ClassPartnerCal

	sci := EstimateOne(science)
	if sci.Partner != 0 || sci.Program == 0 {
		t.Error("science must charge the program account")
	}

	cal := EstimateOne(partnerCal)
	if cal.Program != 0 || cal.Partner == 0 {
		t.Error("partner cals must charge the partner account")
	}
}

func TestEstimateTotalThreadsMemory(t *testing.T) {
	a := scienceStep(60*time.Second, Offset{})
	b := scienceStep(60*time.Second, OffsetFromArcsec(0, 15))

	total := EstimateTotal([]ProtoStep{a, b, b}).Total()

	last, ca := EstimateStep(Last{}, a)
	last, cb := EstimateStep(last, b)
	_, cc := EstimateStep(last, b)

	if want := ca.Total() + cb.Total() + cc.Total(); total != want {
		t.Errorf("total = %s, want %s", total, want)
	}
	if cb.Total() <= cc.Total() {
		t.Error("second step pays the offset move, third does not")
	}
}

func TestReadoutScaling(t *testing.T) {
	full := scienceStep(60*time.Second, Offset{})

	binned := full
	binned.Dynamic.XBin = BinTwo
	binned.Dynamic.YBin = BinTwo

	fast := full
	fast.Dynamic.AmpReadMode = ReadFast

	if EstimateOne(binned).Total() >= EstimateOne(full).Total() {
		t.Error("binning must reduce readout time")
	}
	if EstimateOne(fast).Total() >= EstimateOne(full).Total() {
		t.Error("fast read mode must reduce readout time")
	}
}

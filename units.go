package gmos

import (
	"fmt"
	"math"
)

// Wavelength is expressed in picometres. The picometre base unit gives
// integral values for every optical wavelength the instrument deals with,
// whether quoted in angstroms, nanometres or microns.
type Wavelength int32

// Nanometers converts the wavelength to nanometres.
func (w Wavelength) Nanometers() float64 {
	return float64(w) / 1000.0
}

// WavelengthFromNm builds a Wavelength from a value in nanometres.
// Sub-picometre precision is discarded.
func WavelengthFromNm(nm float64) Wavelength {
	return Wavelength(math.Round(nm * 1000.0))
}

// WavelengthDither is a signed wavelength delta in picometres, applied to
// the grating central wavelength to shift spectral features across the
// detector chip gaps.
type WavelengthDither int32

func (d WavelengthDither) Nanometers() float64 {
	return float64(d) / 1000.0
}

func (d WavelengthDither) String() string {
	return fmt.Sprintf("%.3f nm", d.Nanometers())
}

const (
	// MicroarcsecPerArcsec is the scale between the stored offset unit
	// and the arcsecond values quoted in proposals and logs.
	MicroarcsecPerArcsec = int64(1_000_000)
)

// Offset is the telescope displacement from the base position.
// Both axes are stored in microarcseconds.
type Offset struct {
	P int64 `json:"p"`
	Q int64 `json:"q"`
}

// OffsetFromArcsec builds an Offset from arcsecond axis values.
func OffsetFromArcsec(p, q float64) Offset {
	return Offset{
		P: int64(math.Round(p * float64(MicroarcsecPerArcsec))),
		Q: int64(math.Round(q * float64(MicroarcsecPerArcsec))),
	}
}

// IsZero reports whether the offset is the base position.
func (o Offset) IsZero() bool {
	return o.P == 0 && o.Q == 0
}

// Arcsec returns the axis values in arcseconds.
func (o Offset) Arcsec() (p, q float64) {
	p = float64(o.P) / float64(MicroarcsecPerArcsec)
	q = float64(o.Q) / float64(MicroarcsecPerArcsec)
	return p, q
}

// Distance computes the angular separation between two offsets in
// arcseconds. Used when charging the constant+linear tariff for telescope
// offset moves.
func (o Offset) Distance(other Offset) float64 {
	dp := float64(o.P-other.P) / float64(MicroarcsecPerArcsec)
	dq := float64(o.Q-other.Q) / float64(MicroarcsecPerArcsec)
	return math.Hypot(dp, dq)
}

func (o Offset) String() string {
	p, q := o.Arcsec()
	return fmt.Sprintf("(%.3f, %.3f)", p, q)
}

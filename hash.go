package gmos

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// The config hash gates the execution digest cache; it is a byte exact
// contract. The string-tagged enumerations (grating, filter, FPU and the
// imaging filter names) are serialised by their canonical tag as a
// sequence of 16 bit chars. Binning, amp count, amp gain, read mode, ROI
// and the imaging variant are written as a single byte of their numeric
// value, not as tags. Offsets are written as two int64 big endian
// microarcsecond values, wavelengths as int32 big endian picometres and
// durations as int64 big endian microseconds. Any change to the encoding
// makes previously cached digests unreachable, which is safe, and makes
// ids derived from the generator params unstable, which is not; treat the
// layout as frozen.

// ConfigHash is the 128 bit digest of a canonical config serialisation.
type ConfigHash [md5.Size]byte

func (h ConfigHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// writeTag serialises an enumerated field's canonical tag as 16 bit
// big endian chars.
func writeTag(buf *bytes.Buffer, tag string) {
	for _, r := range tag {
		_ = binary.Write(buf, binary.BigEndian, uint16(r))
	}
	// terminator keeps adjacent tags from running together
	_ = binary.Write(buf, binary.BigEndian, uint16(0))
}

func writeWavelength(buf *bytes.Buffer, w Wavelength) {
	_ = binary.Write(buf, binary.BigEndian, int32(w))
}

func writeOffset(buf *bytes.Buffer, o Offset) {
	_ = binary.Write(buf, binary.BigEndian, o.P)
	_ = binary.Write(buf, binary.BigEndian, o.Q)
}

func writeDuration(buf *bytes.Buffer, d time.Duration) {
	_ = binary.Write(buf, binary.BigEndian, d.Microseconds())
}

// hashBytes is the canonical serialisation of the long slit config.
func (c Config) hashBytes() []byte {
	buf := bytes.Buffer{}

	writeTag(&buf, string(c.Grating))
	writeTag(&buf, string(c.Filter))
	writeTag(&buf, string(c.Fpu))
	writeWavelength(&buf, c.CentralWavelength)
	buf.WriteByte(byte(c.XBin))
	buf.WriteByte(byte(c.YBin))
	buf.WriteByte(byte(c.AmpCount))
	buf.WriteByte(byte(c.AmpGain))
	buf.WriteByte(byte(c.AmpReadMode))
	buf.WriteByte(byte(c.Roi))

	_ = binary.Write(&buf, binary.BigEndian, int32(len(c.Dithers)))
	for _, d := range c.Dithers {
		_ = binary.Write(&buf, binary.BigEndian, int32(d))
	}

	offsets := c.SpatialOffsets()
	_ = binary.Write(&buf, binary.BigEndian, int32(len(offsets)))
	for _, o := range offsets {
		writeOffset(&buf, o)
	}

	return buf.Bytes()
}

// hashBytes is the canonical serialisation of the imaging config.
// Filters are serialised in declaration order together with their
// integration times so that a change to either is visible in the hash.
func (c ImagingConfig) hashBytes() []byte {
	buf := bytes.Buffer{}

	buf.WriteByte(byte(c.Variant))
	buf.WriteByte(byte(c.XBin))
	buf.WriteByte(byte(c.YBin))
	buf.WriteByte(byte(c.AmpCount))
	buf.WriteByte(byte(c.AmpGain))
	buf.WriteByte(byte(c.AmpReadMode))
	buf.WriteByte(byte(c.Roi))
	if c.Descending {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	_ = binary.Write(&buf, binary.BigEndian, int32(len(c.Filters)))
	for _, f := range c.Filters {
		writeTag(&buf, string(f.Name))
		writeWavelength(&buf, f.Wavelength)
		t := c.Times[f.Name]
		writeDuration(&buf, t.Exposure)
		_ = binary.Write(&buf, binary.BigEndian, int32(t.Count))
	}

	_ = binary.Write(&buf, binary.BigEndian, int32(len(c.SkyOffsets)))
	for _, o := range c.SkyOffsets {
		writeOffset(&buf, o)
	}

	return buf.Bytes()
}

// generatorParams is the canonical serialisation of everything that
// parameterises a long slit planner: the config, the integration time
// inputs, the acquisition exposure and the calibration role. It feeds
// both the namespace derivation and the config hash.
func generatorParams(c Config, t IntegrationTime, acq time.Duration, role Role) []byte {
	buf := bytes.Buffer{}
	buf.Write(c.hashBytes())
	writeDuration(&buf, t.Exposure)
	_ = binary.Write(&buf, binary.BigEndian, int32(t.Count))
	writeDuration(&buf, acq)
	buf.WriteByte(byte(role))

	return buf.Bytes()
}

// LongSlitHash is the digest cache key for a long slit observation.
func LongSlitHash(c Config, t IntegrationTime, acq time.Duration, role Role) ConfigHash {
	return md5.Sum(generatorParams(c, t, acq, role))
}

// ImagingHash is the digest cache key for an imaging observation.
func ImagingHash(c ImagingConfig, role Role) ConfigHash {
	buf := bytes.Buffer{}
	buf.Write(c.hashBytes())
	buf.WriteByte(byte(role))

	return md5.Sum(buf.Bytes())
}

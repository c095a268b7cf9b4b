package gmos

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
)

// SequenceType partitions planning into the acquisition and science
// sequences; it participates in id derivation so the two sequences can
// never collide.
type SequenceType uint8

const (
	SequenceAcquisition SequenceType = iota
	SequenceScience
)

func (t SequenceType) String() string {
	if t == SequenceAcquisition {
		return "acquisition"
	}
	return "science"
}

// tag is the single byte mixed into the id payloads. The values are
// fixed for the lifetime of the system; changing one changes every id.
func (t SequenceType) tag() byte {
	if t == SequenceAcquisition {
		return 'a'
	}
	return 's'
}

// idSpace is the root namespace every observation namespace is derived
// under. Fixed forever; ids are only stable across processes and versions
// while this value and the MD5 name-based scheme are held constant.
var idSpace = uuid.MustParse("8f380ca2-93e7-4d1a-b8a7-5e11a1a4bd52")

// DeriveNamespace produces the namespace UUID for one planner
// instantiation. A change to the commit hash, the observation id or the
// generator parameters yields a fresh namespace and therefore fresh atom
// and step ids.
// The name-based scheme is v3 (MD5): the digest covers the space UUID's
// bytes followed by the payload, which is exactly the
// commit || observation || params layout the id contract requires.
func DeriveNamespace(commitHash []byte, observationID string, params []byte) uuid.UUID {
	buf := bytes.Buffer{}
	buf.Write(commitHash)
	buf.WriteString(observationID)
	buf.Write(params)

	return uuid.NewMD5(idSpace, buf.Bytes())
}

// AtomID derives the id of the atom at the given cycle within a sequence.
// Payload layout: 'A', sequence tag, cycle as int32 big endian, index as
// int64 big endian.
func AtomID(namespace uuid.UUID, seq SequenceType, cycle int32, index int64) uuid.UUID {
	buf := bytes.Buffer{}
	buf.WriteByte('A')
	buf.WriteByte(seq.tag())
	_ = binary.Write(&buf, binary.BigEndian, cycle)
	_ = binary.Write(&buf, binary.BigEndian, index)

	return uuid.NewMD5(namespace, buf.Bytes())
}

// StepID derives the id of a step from its atom id and intra-atom index.
// Payload layout: 'S', sequence tag, atom most significant int64 big
// endian, atom least significant int64 big endian, index as int32 big
// endian.
func StepID(namespace uuid.UUID, seq SequenceType, atom uuid.UUID, index int32) uuid.UUID {
	msb := binary.BigEndian.Uint64(atom[0:8])
	lsb := binary.BigEndian.Uint64(atom[8:16])

	buf := bytes.Buffer{}
	buf.WriteByte('S')
	buf.WriteByte(seq.tag())
	_ = binary.Write(&buf, binary.BigEndian, msb)
	_ = binary.Write(&buf, binary.BigEndian, lsb)
	_ = binary.Write(&buf, binary.BigEndian, index)

	return uuid.NewMD5(namespace, buf.Bytes())
}

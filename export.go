package gmos

import (
	"encoding/binary"
	"errors"
	"time"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/soniakeys/meeus/v3/julian"
)

var ErrCreateSeqTdb = errors.New("Error Creating Sequence TileDB Array")
var ErrWriteSeqTdb = errors.New("Error Writing Sequence TileDB Array")

// SequenceRows is the column oriented form of a planned sequence, ready
// for serialisation. UUIDs are split into their most and least
// significant halves to keep every attribute fixed width.
type SequenceRows struct {
	StepId       []uint64 `tiledb:"dtype=uint64,ftype=dim"`
	AtomIndex    []uint64 `tiledb:"dtype=uint64,ftype=attr" filters:"zstd(level=16)"`
	StepIndex    []uint64 `tiledb:"dtype=uint64,ftype=attr" filters:"zstd(level=16)"`
	AtomIdMsb    []uint64 `tiledb:"dtype=uint64,ftype=attr" filters:"zstd(level=16)"`
	AtomIdLsb    []uint64 `tiledb:"dtype=uint64,ftype=attr" filters:"zstd(level=16)"`
	StepIdMsb    []uint64 `tiledb:"dtype=uint64,ftype=attr" filters:"zstd(level=16)"`
	StepIdLsb    []uint64 `tiledb:"dtype=uint64,ftype=attr" filters:"zstd(level=16)"`
	StepType     []uint8  `tiledb:"dtype=uint8,ftype=attr" filters:"zstd(level=16)"`
	Class        []uint8  `tiledb:"dtype=uint8,ftype=attr" filters:"zstd(level=16)"`
	ExposureUs   []int64  `tiledb:"dtype=int64,ftype=attr" filters:"zstd(level=16)"`
	WavelengthPm []int32  `tiledb:"dtype=int32,ftype=attr" filters:"zstd(level=16)"`
	OffsetP      []int64  `tiledb:"dtype=int64,ftype=attr" filters:"zstd(level=16)"`
	OffsetQ      []int64  `tiledb:"dtype=int64,ftype=attr" filters:"zstd(level=16)"`
	ProgramUs    []int64  `tiledb:"dtype=int64,ftype=attr" filters:"zstd(level=16)"`
	PartnerUs    []int64  `tiledb:"dtype=int64,ftype=attr" filters:"zstd(level=16)"`
	Breakpoint   []uint8  `tiledb:"dtype=uint8,ftype=attr" filters:"zstd(level=16)"`
}

// BuildSequenceRows flattens a list of atoms into sequence rows.
func BuildSequenceRows(atoms []Atom) SequenceRows {
	rows := SequenceRows{}

	step_id := uint64(0)
	for ai, atom := range atoms {
		amsb := binary.BigEndian.Uint64(atom.Id[0:8])
		alsb := binary.BigEndian.Uint64(atom.Id[8:16])

		for si, step := range atom.Steps {
			rows.StepId = append(rows.StepId, step_id)
			rows.AtomIndex = append(rows.AtomIndex, uint64(ai))
			rows.StepIndex = append(rows.StepIndex, uint64(si))
			rows.AtomIdMsb = append(rows.AtomIdMsb, amsb)
			rows.AtomIdLsb = append(rows.AtomIdLsb, alsb)
			rows.StepIdMsb = append(rows.StepIdMsb, binary.BigEndian.Uint64(step.Id[0:8]))
			rows.StepIdLsb = append(rows.StepIdLsb, binary.BigEndian.Uint64(step.Id[8:16]))
			rows.StepType = append(rows.StepType, uint8(step.Proto.Type))
			rows.Class = append(rows.Class, uint8(step.Proto.Class))
			rows.ExposureUs = append(rows.ExposureUs, step.Proto.Dynamic.Exposure.Microseconds())
			rows.WavelengthPm = append(rows.WavelengthPm, int32(step.Proto.Dynamic.Wavelength))
			rows.OffsetP = append(rows.OffsetP, step.Proto.Offset.P)
			rows.OffsetQ = append(rows.OffsetQ, step.Proto.Offset.Q)
			rows.ProgramUs = append(rows.ProgramUs, step.Estimate.Program.Microseconds())
			rows.PartnerUs = append(rows.PartnerUs, step.Estimate.Partner.Microseconds())
			if step.Proto.Breakpoint {
				rows.Breakpoint = append(rows.Breakpoint, 1)
			} else {
				rows.Breakpoint = append(rows.Breakpoint, 0)
			}

			step_id++
		}
	}

	return rows
}

// PlanMetadata is attached to the exported array so downstream tooling
// can tie the rows back to the observation and the planner inputs.
// The planning timestamp is stamped as a julian date alongside the
// civil time.
type PlanMetadata struct {
	ObservationID string  `json:"observation_id"`
	Namespace     string  `json:"namespace"`
	ConfigHash    string  `json:"config_hash"`
	PlannedAt     string  `json:"planned_at"`
	JulianDate    float64 `json:"julian_date"`
	AtomCount     int     `json:"atom_count"`
}

// NewPlanMetadata builds the exported plan metadata for a generator.
func NewPlanMetadata(g ExecutionConfigGenerator, atoms []Atom, planned_at time.Time) PlanMetadata {
	return PlanMetadata{
		ObservationID: g.ObservationID,
		Namespace:     g.Namespace.String(),
		ConfigHash:    g.Hash.Hex(),
		PlannedAt:     planned_at.UTC().Format(time.RFC3339),
		JulianDate:    julian.TimeToJD(planned_at.UTC()),
		AtomCount:     len(atoms),
	}
}

// WriteSequence serialises a planned sequence to a dense TileDB array
// and attaches the plan metadata.
func WriteSequence(uri string, config_uri string, atoms []Atom, md PlanMetadata) error {
	rows := BuildSequenceRows(atoms)
	nsteps := uint64(len(rows.StepId))
	if nsteps == 0 {
		return errors.Join(ErrCreateSeqTdb, errors.New("nothing to write; sequence is complete"))
	}

	session, err := newVfsSession(config_uri)
	if err != nil {
		return errors.Join(ErrCreateSeqTdb, err)
	}
	defer session.Free()

	schema, err := sequenceSchema(session.ctx, nsteps)
	if err != nil {
		return err
	}
	defer schema.Free()

	array, err := tiledb.NewArray(session.ctx, uri)
	if err != nil {
		return errors.Join(ErrCreateSeqTdb, err)
	}
	defer array.Free()

	err = array.Create(schema)
	if err != nil {
		return errors.Join(ErrCreateSeqTdb, err)
	}

	err = array.Open(tiledb.TILEDB_WRITE)
	if err != nil {
		return errors.Join(ErrWriteSeqTdb, err)
	}
	defer array.Close()

	query, err := tiledb.NewQuery(session.ctx, array)
	if err != nil {
		return errors.Join(ErrWriteSeqTdb, err)
	}
	defer query.Free()

	err = query.SetLayout(tiledb.TILEDB_ROW_MAJOR)
	if err != nil {
		return errors.Join(ErrWriteSeqTdb, err)
	}

	// define the subarray (dim coordinates that we'll write into)
	subarr, err := array.NewSubarray()
	if err != nil {
		return errors.Join(ErrWriteSeqTdb, err)
	}
	defer subarr.Free()

	rng := tiledb.MakeRange(uint64(0), nsteps-uint64(1))
	err = subarr.AddRangeByName("STEP_ID", rng)
	if err != nil {
		return errors.Join(ErrWriteSeqTdb, err)
	}
	err = query.SetSubarray(subarr)
	if err != nil {
		return errors.Join(ErrWriteSeqTdb, err)
	}

	// explicit buffer wiring; one planned sequence is a single small
	// struct so reflection buys nothing here
	buffers := []struct {
		name string
		data interface{}
	}{
		{"AtomIndex", rows.AtomIndex},
		{"StepIndex", rows.StepIndex},
		{"AtomIdMsb", rows.AtomIdMsb},
		{"AtomIdLsb", rows.AtomIdLsb},
		{"StepIdMsb", rows.StepIdMsb},
		{"StepIdLsb", rows.StepIdLsb},
		{"StepType", rows.StepType},
		{"Class", rows.Class},
		{"ExposureUs", rows.ExposureUs},
		{"WavelengthPm", rows.WavelengthPm},
		{"OffsetP", rows.OffsetP},
		{"OffsetQ", rows.OffsetQ},
		{"ProgramUs", rows.ProgramUs},
		{"PartnerUs", rows.PartnerUs},
		{"Breakpoint", rows.Breakpoint},
	}
	for _, b := range buffers {
		_, err = query.SetDataBuffer(b.name, b.data)
		if err != nil {
			return errors.Join(ErrSetBuff, err, errors.New(b.name))
		}
	}

	err = query.Submit()
	if err != nil {
		return errors.Join(ErrWriteSeqTdb, err)
	}

	err = query.Finalize()
	if err != nil {
		return errors.Join(ErrWriteSeqTdb, err)
	}

	jsn, err := JsonDumps(md)
	if err != nil {
		return errors.Join(ErrWriteSeqTdb, err)
	}
	err = array.PutMetadata("Plan-Information", jsn)
	if err != nil {
		return errors.Join(ErrWriteSeqTdb, err)
	}

	return nil
}

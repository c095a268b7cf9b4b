package gmos

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"time"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

var ErrOpenObs = errors.New("Error Opening Observation Request")
var ErrReadObs = errors.New("Error Reading Observation Request")

// vfsSession bundles the TileDB config, context and virtual filesystem
// the IO helpers share. A config URI is only needed when reaching object
// stores with permission constraints; an empty string yields a generic
// config.
type vfsSession struct {
	config *tiledb.Config
	ctx    *tiledb.Context
	vfs    *tiledb.VFS
}

func newVfsSession(config_uri string) (*vfsSession, error) {
	var (
		config *tiledb.Config
		err    error
	)

	if config_uri == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(config_uri)
	}
	if err != nil {
		return nil, err
	}

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		config.Free()
		return nil, err
	}

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		ctx.Free()
		config.Free()
		return nil, err
	}

	return &vfsSession{config: config, ctx: ctx, vfs: vfs}, nil
}

func (s *vfsSession) Free() {
	s.vfs.Free()
	s.ctx.Free()
	s.config.Free()
}

// SmartGcalRow is one lookup table row shipped inside an observation
// request document.
type SmartGcalRow struct {
	Key     SmartGcalKey     `json:"key"`
	Entries []SmartGcalEntry `json:"entries"`
}

// ObsRequest is the observation request document: everything needed to
// instantiate a planner for one observation.
type ObsRequest struct {
	ObservationID string         `json:"observation_id"`
	CommitHash    string         `json:"commit_hash"` // hex
	Mode          string         `json:"mode"`        // longslit | imaging
	Role          Role           `json:"role"`
	LongSlit      Config         `json:"longslit,omitempty"`
	Imaging       ImagingConfig  `json:"imaging,omitempty"`
	Itc           IntegrationTime `json:"integration_time"`
	AcqExposure   time.Duration  `json:"acq_exposure"`
	SmartGcal     []SmartGcalRow `json:"smart_gcal"`
}

// Expander builds the table backed smart gcal expander from the rows in
// the request.
func (r ObsRequest) Expander() TableExpander {
	table := make(TableExpander, len(r.SmartGcal))
	for _, row := range r.SmartGcal {
		table[row.Key] = append(table[row.Key], row.Entries...)
	}
	return table
}

// Generator instantiates the execution config generator the request
// describes.
func (r ObsRequest) Generator() (ExecutionConfigGenerator, error) {
	commit, err := hex.DecodeString(r.CommitHash)
	if err != nil {
		return ExecutionConfigGenerator{}, errors.Join(ErrReadObs, err)
	}

	if r.Mode == "imaging" {
		return NewImaging(commit, r.ObservationID, r.Imaging, r.Role)
	}

	return NewLongSlit(commit, r.ObservationID, r.LongSlit, r.Itc, r.AcqExposure, r.Role, r.Expander())
}

// ObsFile is an observation request opened for streamed reading; the
// URI can point at a local file or an object store.
type ObsFile struct {
	Uri     string
	session *vfsSession
	handler *tiledb.VFSfh
}

// OpenObs opens an observation request file.
func OpenObs(uri string, config_uri string) (*ObsFile, error) {
	session, err := newVfsSession(config_uri)
	if err != nil {
		return nil, errors.Join(ErrOpenObs, err)
	}

	handler, err := session.vfs.Open(uri, tiledb.TILEDB_VFS_READ)
	if err != nil {
		session.Free()
		return nil, errors.Join(ErrOpenObs, errors.New(uri), err)
	}

	return &ObsFile{Uri: uri, session: session, handler: handler}, nil
}

// Close releases the file handle and the VFS session.
func (f *ObsFile) Close() {
	_ = f.handler.Close()
	f.session.Free()
}

// Request decodes the observation request document.
func (f *ObsFile) Request() (ObsRequest, error) {
	var request ObsRequest

	data, err := io.ReadAll(f.handler)
	if err != nil {
		return request, errors.Join(ErrReadObs, errors.New(f.Uri), err)
	}

	err = json.Unmarshal(data, &request)
	if err != nil {
		return request, errors.Join(ErrReadObs, errors.New(f.Uri), err)
	}

	return request, nil
}

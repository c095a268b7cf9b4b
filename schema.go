package gmos

import (
	"errors"
	"math"
	"reflect"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"
)

var ErrCreateSchemaTdb = errors.New("Error Creating TileDB Schema")

// schemaAttrs adds every tagged attribute field of the struct to the
// schema. Fields tagged ftype=dim are dimensions and are skipped here.
func schemaAttrs(t any, schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	var (
		field_tdb_defs map[string]stgpsr.Definition
		def            stgpsr.Definition
		status         bool
	)
	values := reflect.ValueOf(t).Elem()
	types := values.Type()
	filt_defs, _ := stgpsr.ParseStruct(t, "filters")
	tdb_defs, _ := stgpsr.ParseStruct(t, "tiledb")

	// process every field in the struct
	for i := 0; i < values.NumField(); i++ {
		name := types.Field(i).Name

		field_filt_defs := filt_defs[name]

		// a mapping just seemed easier to pull required defs
		// rather than a simple listing
		field_tdb_defs = make(map[string]stgpsr.Definition)
		for _, v := range tdb_defs[name] {
			field_tdb_defs[v.Name()] = v
		}

		// pull the field type and ignore dimension fields
		def, status = field_tdb_defs["ftype"]
		if !status {
			return errors.Join(ErrCreateSchemaTdb, errors.New("ftype tag not found"))
		}
		ftype, _ := def.Attribute("ftype")
		if ftype == "dim" {
			continue
		}

		err := CreateAttr(name, field_filt_defs, field_tdb_defs, schema, ctx)
		if err != nil {
			return errors.Join(ErrCreateSchemaTdb, err)
		}
	}
	return nil
}

// sequenceSchema sets up a dense 1-D array schema for a planned
// sequence; the dimension is the global step index across the emitted
// atoms.
func sequenceSchema(ctx *tiledb.Context, nsteps uint64) (*tiledb.ArraySchema, error) {
	// an arbitrary choice; planned sequences are small
	tile_sz := uint64(math.Min(float64(1000), float64(nsteps)))

	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}
	defer domain.Free()

	dim, err := tiledb.NewDimension(ctx, "STEP_ID", tiledb.TILEDB_UINT64, []uint64{0, nsteps - uint64(1)}, tile_sz)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}
	defer dim.Free()

	dim_filters, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}
	defer dim_filters.Free()

	level := int32(16)
	dim_filt, err := ZstdFilter(ctx, level)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}
	defer dim_filt.Free()

	err = AddFilters(dim_filters, dim_filt)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}
	err = dim.SetFilterList(dim_filters)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	err = domain.AddDimensions(dim)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	err = schema.SetDomain(domain)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	// cell and tile ordering was an arbitrary choice
	err = schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	err = schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	// add the struct fields as tiledb attributes
	err = schemaAttrs(&SequenceRows{}, schema, ctx)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	err = schema.Check()
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	return schema, nil
}

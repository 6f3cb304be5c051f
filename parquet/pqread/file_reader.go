// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pqread

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/colnest/colnest/internal/debug"
	"github.com/colnest/colnest/parquet/nested"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// FileReader decodes the top level fields of a parquet file into arrow
// arrays through the page pipeline.
type FileReader struct {
	rdr      *file.Reader
	mem      memory.Allocator
	props    ReadProperties
	manifest *pqarrow.SchemaManifest
	logger   log.Logger
}

// NewFileReader maps the schema of rdr to arrow. Buffers of the decoded
// arrays are allocated from mem, memory.DefaultAllocator when nil.
func NewFileReader(rdr *file.Reader, props ReadProperties, mem memory.Allocator) (*FileReader, error) {
	if rdr == nil {
		return nil, xerrors.New("pqread: nil parquet reader")
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	props.setDefaults()

	meta := rdr.MetaData()
	manifest, err := pqarrow.NewSchemaManifest(meta.Schema, meta.KeyValueMetadata(), &pqarrow.ArrowReadProperties{})
	if err != nil {
		return nil, err
	}
	for _, rg := range props.RowGroups {
		if rg < 0 || rg >= rdr.NumRowGroups() {
			return nil, fmt.Errorf("%w: row group %d, file has %d", arrow.ErrIndex, rg, rdr.NumRowGroups())
		}
	}

	return &FileReader{
		rdr:      rdr,
		mem:      mem,
		props:    props,
		manifest: manifest,
		logger:   props.Logger,
	}, nil
}

// NumFields is the number of top level fields of the file.
func (fr *FileReader) NumFields() int { return len(fr.manifest.Fields) }

// Schema is the arrow schema of the arrays returned by ReadTable. Fields
// which cannot be decoded keep the type mapped by pqarrow.
func (fr *FileReader) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(fr.manifest.Fields))
	for i := range fr.manifest.Fields {
		f, _, err := resolveField(&fr.manifest.Fields[i])
		if err != nil {
			f = *fr.manifest.Fields[i].Field
		}
		fields[i] = f
	}
	return arrow.NewSchema(fields, fr.manifest.SchemaMeta)
}

func (fr *FileReader) rowGroups() []int {
	if fr.props.RowGroups != nil {
		return fr.props.RowGroups
	}
	rgs := make([]int, fr.rdr.NumRowGroups())
	for i := range rgs {
		rgs[i] = i
	}
	return rgs
}

// resolveField rebuilds the arrow field of sf from its children so that
// element nullability follows the parquet schema, and returns the index of
// its single leaf column. Dictionary leaves are replaced by their value
// type. Structs and maps are not supported.
func resolveField(sf *pqarrow.SchemaField) (arrow.Field, int, error) {
	f := *sf.Field
	// group fields keep ColIndex 0, so IsLeaf cannot tell them apart
	if len(sf.Children) == 0 {
		if dict, ok := f.Type.(*arrow.DictionaryType); ok {
			f.Type = dict.ValueType
		}
		return f, sf.ColIndex, nil
	}

	switch f.Type.(type) {
	case *arrow.ListType, *arrow.LargeListType:
		if len(sf.Children) != 1 {
			return arrow.Field{}, -1, fmt.Errorf("%w: list field %q has %d children", arrow.ErrInvalid, f.Name, len(sf.Children))
		}
		elem, col, err := resolveField(&sf.Children[0])
		if err != nil {
			return arrow.Field{}, -1, err
		}
		if _, large := f.Type.(*arrow.LargeListType); large {
			f.Type = arrow.LargeListOfField(elem)
		} else {
			f.Type = arrow.ListOfField(elem)
		}
		return f, col, nil
	}
	return arrow.Field{}, -1, fmt.Errorf("%w: read nested datatype %s", arrow.ErrNotImplemented, f.Type)
}

// ReadField decodes top level field i across the selected row groups.
func (fr *FileReader) ReadField(ctx context.Context, i int) (arr arrow.Array, err error) {
	if i < 0 || i >= len(fr.manifest.Fields) {
		return nil, fmt.Errorf("%w: field %d, file has %d", arrow.ErrIndex, i, len(fr.manifest.Fields))
	}

	field, colIdx, err := resolveField(&fr.manifest.Fields[i])
	if err != nil {
		return nil, err
	}

	descr := fr.rdr.MetaData().Schema.Column(colIdx)
	start := time.Now()
	defer func() {
		fr.props.Metrics.observeColumn(descr.Path(), start, err)
		if err != nil {
			level.Warn(fr.logger).Log("msg", "column decode failed", "column", descr.Path(), "err", err)
			return
		}
		level.Debug(fr.logger).Log("msg", "decoded column", "column", descr.Path(),
			"type", arr.DataType(), "rows", arr.Len(), "nulls", arr.NullN(), "duration", time.Since(start))
	}()

	var numValues int64
	for _, rg := range fr.rowGroups() {
		chunk, err := fr.rdr.MetaData().RowGroup(rg).ColumnChunk(colIdx)
		if err != nil {
			return nil, err
		}
		numValues += chunk.NumValues()
	}

	stack, err := nested.NewStack(field, int(numValues))
	if err != nil {
		return nil, err
	}
	debug.Logf("pqread: column %s levels %v", descr.Path(), stack.Kinds())

	col := Column{
		Field:  field,
		MaxRep: descr.MaxRepetitionLevel(),
		MaxDef: descr.MaxDefinitionLevel(),
		Mem:    fr.mem,
	}
	return fr.readLeaf(ctx, colIdx, col, stack)
}

// ReadFields decodes the fields at indices. With Parallel set the fields
// are decoded concurrently; on error every array already decoded is
// released.
func (fr *FileReader) ReadFields(ctx context.Context, indices []int) ([]arrow.Array, error) {
	out := make([]arrow.Array, len(indices))

	g, gctx := errgroup.WithContext(ctx)
	if !fr.props.Parallel {
		g.SetLimit(1)
	}
	for i, idx := range indices {
		g.Go(func() error {
			arr, err := fr.ReadField(gctx, idx)
			if err != nil {
				return err
			}
			out[i] = arr
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, arr := range out {
			if arr != nil {
				arr.Release()
			}
		}
		return nil, err
	}
	return out, nil
}

// ReadTable decodes every top level field into a table.
func (fr *FileReader) ReadTable(ctx context.Context) (arrow.Table, error) {
	indices := make([]int, fr.NumFields())
	for i := range indices {
		indices[i] = i
	}
	arrs, err := fr.ReadFields(ctx, indices)
	if err != nil {
		return nil, err
	}

	var rows int64
	for _, rg := range fr.rowGroups() {
		rows += fr.rdr.MetaData().RowGroup(rg).NumRows()
	}

	fields := make([]arrow.Field, len(arrs))
	cols := make([]arrow.Column, len(arrs))
	for i, arr := range arrs {
		field := *fr.manifest.Fields[i].Field
		field.Type = arr.DataType()
		fields[i] = field

		chunked := arrow.NewChunked(arr.DataType(), []arrow.Array{arr})
		cols[i] = *arrow.NewColumn(field, chunked)
		chunked.Release()
		arr.Release()
	}
	defer func() {
		for i := range cols {
			cols[i].Release()
		}
	}()

	return array.NewTable(arrow.NewSchema(fields, fr.manifest.SchemaMeta), cols, rows), nil
}

// ReadFile opens a parquet file from r and decodes all of it.
func ReadFile(ctx context.Context, r parquet.ReaderAtSeeker, props ReadProperties, mem memory.Allocator) (arrow.Table, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	pf, err := file.NewParquetReader(r, file.WithReadProps(parquet.NewReaderProperties(mem)))
	if err != nil {
		return nil, err
	}
	defer pf.Close()

	fr, err := NewFileReader(pf, props, mem)
	if err != nil {
		return nil, err
	}
	return fr.ReadTable(ctx)
}

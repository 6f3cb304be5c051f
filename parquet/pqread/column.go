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

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/colnest/colnest/parquet/nested"
)

// leafType is the arrow type the leaf values decode to. Dictionaries decode
// to their value type.
func leafType(f arrow.Field) arrow.DataType {
	for {
		switch dt := f.Type.(type) {
		case arrow.ListLikeType:
			f = dt.ElemField()
		case *arrow.DictionaryType:
			return dt.ValueType
		default:
			return dt
		}
	}
}

func readTyped[T, A any](ctx context.Context, src *columnPages[T], col Column, stack *nested.Stack, bldr Builder[A], op func(T) A, props ReadProperties) (arrow.Array, error) {
	defer bldr.Release()
	if !props.Async {
		return IterToArray[T, A](src, col, stack, bldr, op)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return StreamToArray[T, A](ctx, StreamPages[T](ctx, src, props.ReadAhead), col, stack, bldr, op)
}

func identity[T any](v T) T { return v }

// readLeaf decodes leaf column colIdx of the file into the nested array
// described by col.
func (fr *FileReader) readLeaf(ctx context.Context, colIdx int, col Column, stack *nested.Stack) (arrow.Array, error) {
	var (
		mem   = col.Mem
		props = fr.props
		rgs   = fr.rowGroups()
		phys  = fr.rdr.MetaData().Schema.Column(colIdx).PhysicalType()
		dt    = leafType(col.Field)
	)

	errType := func() error {
		return fmt.Errorf("%w: reading %s column as %s", arrow.ErrNotImplemented, phys, dt)
	}

	switch phys {
	case parquet.Types.Boolean:
		if dt.ID() != arrow.BOOL {
			return nil, errType()
		}
		src := newColumnPages[bool](fr.rdr, colIdx, rgs, props)
		return readTyped[bool, bool](ctx, src, col, stack, array.NewBooleanBuilder(mem), identity[bool], props)

	case parquet.Types.Int32:
		src := newColumnPages[int32](fr.rdr, colIdx, rgs, props)
		switch dt.ID() {
		case arrow.INT8:
			return readTyped(ctx, src, col, stack, Builder[int8](array.NewInt8Builder(mem)), func(v int32) int8 { return int8(v) }, props)
		case arrow.INT16:
			return readTyped(ctx, src, col, stack, Builder[int16](array.NewInt16Builder(mem)), func(v int32) int16 { return int16(v) }, props)
		case arrow.INT32:
			return readTyped(ctx, src, col, stack, Builder[int32](array.NewInt32Builder(mem)), identity[int32], props)
		case arrow.UINT8:
			return readTyped(ctx, src, col, stack, Builder[uint8](array.NewUint8Builder(mem)), func(v int32) uint8 { return uint8(v) }, props)
		case arrow.UINT16:
			return readTyped(ctx, src, col, stack, Builder[uint16](array.NewUint16Builder(mem)), func(v int32) uint16 { return uint16(v) }, props)
		case arrow.UINT32:
			return readTyped(ctx, src, col, stack, Builder[uint32](array.NewUint32Builder(mem)), func(v int32) uint32 { return uint32(v) }, props)
		case arrow.DATE32:
			return readTyped(ctx, src, col, stack, Builder[arrow.Date32](array.NewDate32Builder(mem)), func(v int32) arrow.Date32 { return arrow.Date32(v) }, props)
		case arrow.TIME32:
			return readTyped(ctx, src, col, stack, Builder[arrow.Time32](array.NewTime32Builder(mem, dt.(*arrow.Time32Type))), func(v int32) arrow.Time32 { return arrow.Time32(v) }, props)
		}

	case parquet.Types.Int64:
		src := newColumnPages[int64](fr.rdr, colIdx, rgs, props)
		switch dt.ID() {
		case arrow.INT64:
			return readTyped(ctx, src, col, stack, Builder[int64](array.NewInt64Builder(mem)), identity[int64], props)
		case arrow.UINT64:
			return readTyped(ctx, src, col, stack, Builder[uint64](array.NewUint64Builder(mem)), func(v int64) uint64 { return uint64(v) }, props)
		case arrow.TIMESTAMP:
			return readTyped(ctx, src, col, stack, Builder[arrow.Timestamp](array.NewTimestampBuilder(mem, dt.(*arrow.TimestampType))), func(v int64) arrow.Timestamp { return arrow.Timestamp(v) }, props)
		case arrow.TIME64:
			return readTyped(ctx, src, col, stack, Builder[arrow.Time64](array.NewTime64Builder(mem, dt.(*arrow.Time64Type))), func(v int64) arrow.Time64 { return arrow.Time64(v) }, props)
		}

	case parquet.Types.Float:
		if dt.ID() != arrow.FLOAT32 {
			return nil, errType()
		}
		src := newColumnPages[float32](fr.rdr, colIdx, rgs, props)
		return readTyped(ctx, src, col, stack, Builder[float32](array.NewFloat32Builder(mem)), identity[float32], props)

	case parquet.Types.Double:
		if dt.ID() != arrow.FLOAT64 {
			return nil, errType()
		}
		src := newColumnPages[float64](fr.rdr, colIdx, rgs, props)
		return readTyped(ctx, src, col, stack, Builder[float64](array.NewFloat64Builder(mem)), identity[float64], props)

	case parquet.Types.ByteArray:
		src := newColumnPages[parquet.ByteArray](fr.rdr, colIdx, rgs, props)
		src.clone = cloneByteArrays
		asString := func(v parquet.ByteArray) string { return string(v) }
		asBytes := func(v parquet.ByteArray) []byte { return v }
		switch dt.ID() {
		case arrow.STRING:
			return readTyped(ctx, src, col, stack, Builder[string](array.NewStringBuilder(mem)), asString, props)
		case arrow.LARGE_STRING:
			return readTyped(ctx, src, col, stack, Builder[string](array.NewLargeStringBuilder(mem)), asString, props)
		case arrow.BINARY:
			return readTyped(ctx, src, col, stack, Builder[[]byte](array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)), asBytes, props)
		case arrow.LARGE_BINARY:
			return readTyped(ctx, src, col, stack, Builder[[]byte](array.NewBinaryBuilder(mem, arrow.BinaryTypes.LargeBinary)), asBytes, props)
		}
	}
	return nil, errType()
}

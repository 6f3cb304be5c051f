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

package nested

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// CreateList pops the innermost level of stack and wraps values in a list
// array of the flavor given by dt, which must be a *arrow.ListType or a
// *arrow.LargeListType. The element field keeps the name, nullability and
// metadata from dt and takes its type from values.
//
// Offsets are stored as int64 while decoding and are truncated to int32 for
// *arrow.ListType without any range check.
//
// Call it once per list depth, innermost first, passing the previous result
// as values.
func CreateList(mem memory.Allocator, dt arrow.DataType, stack *Stack, values arrow.Array) (arrow.Array, error) {
	var (
		typ        arrow.DataType
		offsetSize int
	)
	switch dt := dt.(type) {
	case *arrow.ListType:
		typ = arrow.ListOfField(withType(dt.ElemField(), values.DataType()))
		offsetSize = arrow.Int32SizeBytes
	case *arrow.LargeListType:
		typ = arrow.LargeListOfField(withType(dt.ElemField(), values.DataType()))
		offsetSize = arrow.Int64SizeBytes
	default:
		return nil, fmt.Errorf("%w: read nested datatype %s", arrow.ErrNotImplemented, dt)
	}

	lvl, ok := stack.Pop()
	if !ok {
		return nil, fmt.Errorf("%w: no nesting level left to materialize %s", arrow.ErrInvalid, dt)
	}
	offsets, validity := lvl.Inner()
	if len(offsets) == 0 {
		return nil, fmt.Errorf("%w: %s level for %s was never closed", arrow.ErrInvalid, lvl.Kind(), dt)
	}
	length := len(offsets) - 1

	offsetBuf := memory.NewResizableBuffer(mem)
	defer offsetBuf.Release()
	offsetBuf.Resize(len(offsets) * offsetSize)
	if offsetSize == arrow.Int32SizeBytes {
		out := arrow.Int32Traits.CastFromBytes(offsetBuf.Bytes())
		for i, o := range offsets {
			out[i] = int32(o)
		}
	} else {
		copy(arrow.Int64Traits.CastFromBytes(offsetBuf.Bytes()), offsets)
	}

	var (
		nullBuf *memory.Buffer
		nulls   int
	)
	if validity != nil {
		nulls = validity.NullN()
		if nulls > 0 {
			nullBuf = memory.NewResizableBuffer(mem)
			defer nullBuf.Release()
			nullBuf.Resize(int(bitutil.BytesForBits(int64(length))))
			copy(nullBuf.Bytes(), validity.Bytes())
		}
	}

	data := array.NewData(typ, length, []*memory.Buffer{nullBuf, offsetBuf}, []arrow.ArrayData{values.Data()}, nulls, 0)
	defer data.Release()
	return array.MakeFromData(data), nil
}

func withType(f arrow.Field, dt arrow.DataType) arrow.Field {
	f.Type = dt
	return f
}

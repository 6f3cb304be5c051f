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

package nested_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/colnest/colnest/parquet/nested"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roundTripCases = []struct {
	name  string
	field arrow.Field
	json  string
}{
	{"nullable list", arrow.Field{Name: "a", Nullable: true, Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)},
		`[[1, null, 2], null, [], [3]]`},
	{"required list", arrow.Field{Name: "a", Type: arrow.ListOfField(nonNullItem)},
		`[[1], [2, 3], [], [4, 5, 6]]`},
	{"two levels", optListOfLists,
		`[[[1, null], null, []], null, [], [[2]]]`},
	{"large outer", arrow.Field{Name: "a", Nullable: true, Type: arrow.LargeListOfField(
		arrow.Field{Name: "item", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)})},
		`[[[1], []], [], null, [[null, 2, 3]]]`},
	{"three levels", arrow.Field{Name: "a", Nullable: true, Type: arrow.ListOf(arrow.ListOf(arrow.ListOf(arrow.PrimitiveTypes.Int32)))},
		`[[[[1], []], null], [[null, [2, null]]], null, []]`},
	{"all null", optListOfLists, `[null, null]`},
	{"no rows", optListOfLists, `[]`},
}

// shredded is a column flattened into levels the way a parquet writer
// would, together with the leaf slots in order.
type shredded struct {
	rep, def       []int16
	leaf           []any
	leafSlots      int
	maxRep, maxDef int16
}

func decodeRows(t *testing.T, js string) []any {
	t.Helper()
	var rows []any
	require.NoError(t, json.Unmarshal([]byte(js), &rows))
	return rows
}

func shred(rows []any, f arrow.Field) *shredded {
	out := &shredded{}
	for ft := f; ; {
		if ft.Nullable {
			out.maxDef++
		}
		lt, ok := ft.Type.(arrow.ListLikeType)
		if !ok {
			break
		}
		out.maxRep++
		out.maxDef++
		ft = lt.ElemField()
	}

	emit := func(rep, def int16) {
		out.rep = append(out.rep, rep)
		out.def = append(out.def, def)
	}

	var walk func(v any, f arrow.Field, rep, def, depth int16)
	walk = func(v any, f arrow.Field, rep, def, depth int16) {
		lt, isList := f.Type.(arrow.ListLikeType)
		if f.Nullable {
			if v == nil {
				emit(rep, def)
				if !isList {
					out.leaf = append(out.leaf, nil)
					out.leafSlots++
				}
				return
			}
			def++
		}
		if !isList {
			emit(rep, def)
			out.leaf = append(out.leaf, v)
			out.leafSlots++
			return
		}
		items := v.([]any)
		if len(items) == 0 {
			emit(rep, def)
			return
		}
		for i, item := range items {
			r := rep
			if i > 0 {
				r = depth + 1
			}
			walk(item, lt.ElemField(), r, def+1, depth+1)
		}
	}

	for _, row := range rows {
		walk(row, f, 0, 0, 0)
	}
	return out
}

func buildLeaf(t *testing.T, mem memory.Allocator, leaf []any) arrow.Array {
	t.Helper()
	bldr := array.NewInt32Builder(mem)
	defer bldr.Release()
	for _, v := range leaf {
		if v == nil {
			bldr.AppendNull()
			continue
		}
		bldr.Append(int32(v.(float64)))
	}
	return bldr.NewArray()
}

// listTypes returns the list types of f from the outside in.
func listTypes(f arrow.Field) []arrow.DataType {
	var out []arrow.DataType
	for {
		lt, ok := f.Type.(arrow.ListLikeType)
		if !ok {
			return out
		}
		out = append(out, f.Type)
		f = lt.ElemField()
	}
}

func TestRoundTrip(t *testing.T) {
	for _, tc := range roundTripCases {
		t.Run(tc.name, func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			rows := decodeRows(t, tc.json)
			lv := shred(rows, tc.field)

			stack, nullable := leafPopped(t, tc.field)
			nested.ExtendOffsets(lv.rep, lv.def, nullable, lv.maxRep, lv.maxDef, stack)

			arr := buildLeaf(t, mem, lv.leaf)
			types := listTypes(tc.field)
			for i := len(types) - 1; i >= 0; i-- {
				next, err := nested.CreateList(mem, types[i], stack, arr)
				require.NoError(t, err)
				arr.Release()
				arr = next
			}
			defer arr.Release()

			assert.Zero(t, stack.Len())
			assert.Equal(t, len(rows), arr.Len())
			assert.True(t, arrow.TypeEqual(tc.field.Type, arr.DataType()), "got %s", arr.DataType())

			got, err := json.Marshal(arr)
			require.NoError(t, err)
			assert.JSONEq(t, tc.json, string(got))
		})
	}
}

func TestCreateList(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	stack, nullable := leafPopped(t, optListReqItem)
	nested.ExtendOffsets([]int16{0, 1, 0, 0}, []int16{2, 2, 0, 2}, nullable, 1, 2, stack)

	values := buildLeaf(t, mem, []any{1.0, 2.0, 3.0})
	defer values.Release()

	arr, err := nested.CreateList(mem, optListReqItem.Type, stack, values)
	require.NoError(t, err)
	defer arr.Release()

	list, ok := arr.(*array.List)
	require.True(t, ok)
	assert.Equal(t, []int32{0, 2, 2, 3}, list.Offsets())
	assert.Equal(t, 1, list.NullN())
	assert.True(t, list.IsNull(1))
	assert.False(t, list.DataType().(*arrow.ListType).ElemField().Nullable)
}

func TestCreateLargeList(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	f := arrow.Field{Name: "a", Type: arrow.LargeListOfField(nonNullItem)}
	stack, nullable := leafPopped(t, f)
	nested.ExtendOffsets([]int16{0, 1, 0, 0}, []int16{1, 1, 0, 1}, nullable, 1, 1, stack)

	values := buildLeaf(t, mem, []any{1.0, 2.0, 3.0})
	defer values.Release()

	arr, err := nested.CreateList(mem, f.Type, stack, values)
	require.NoError(t, err)
	defer arr.Release()

	list, ok := arr.(*array.LargeList)
	require.True(t, ok)
	assert.Equal(t, []int64{0, 2, 2, 3}, list.Offsets())
	assert.Zero(t, list.NullN())
	assert.Nil(t, list.Data().Buffers()[0])
}

func TestCreateListElementType(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	stack, nullable := leafPopped(t, optListReqItem)
	nested.ExtendOffsets([]int16{0}, []int16{2}, nullable, 1, 2, stack)

	bldr := array.NewInt64Builder(mem)
	defer bldr.Release()
	bldr.Append(7)
	values := bldr.NewArray()
	defer values.Release()

	arr, err := nested.CreateList(mem, optListReqItem.Type, stack, values)
	require.NoError(t, err)
	defer arr.Release()

	elem := arr.DataType().(*arrow.ListType).ElemField()
	assert.Equal(t, "item", elem.Name)
	assert.False(t, elem.Nullable)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, elem.Type))
}

func TestCreateListErrors(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	values := buildLeaf(t, mem, []any{1.0})
	defer values.Release()

	t.Run("unsupported type", func(t *testing.T) {
		for _, dt := range []arrow.DataType{
			arrow.FixedSizeListOf(1, arrow.PrimitiveTypes.Int32),
			arrow.StructOf(arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Int32}),
			arrow.MapOf(arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int32),
		} {
			stack, _ := leafPopped(t, optListReqItem)
			_, err := nested.CreateList(mem, dt, stack, values)
			assert.ErrorIs(t, err, arrow.ErrNotImplemented, dt.String())
			assert.Equal(t, 1, stack.Len(), "stack must be left untouched")
		}
	})

	t.Run("empty stack", func(t *testing.T) {
		stack, _ := leafPopped(t, arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int32})
		_, err := nested.CreateList(mem, optListReqItem.Type, stack, values)
		assert.ErrorIs(t, err, arrow.ErrInvalid)
	})

	t.Run("not closed", func(t *testing.T) {
		stack, _ := leafPopped(t, optListReqItem)
		_, err := nested.CreateList(mem, optListReqItem.Type, stack, values)
		assert.ErrorIs(t, err, arrow.ErrInvalid)
	})
}

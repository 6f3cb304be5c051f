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

package avroio_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/colnest/colnest/arrow/avroio"
	"github.com/hamba/avro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrowSchemaFromAvro(t *testing.T) {
	schema, err := avro.Parse(eventSchema)
	require.NoError(t, err)

	sc, err := avroio.ArrowSchemaFromAvro(schema)
	require.NoError(t, err)

	expected := []arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "tags", Type: arrow.ListOfField(arrow.Field{Name: "item", Type: arrow.BinaryTypes.String})},
		{Name: "counts", Type: arrow.ListOfField(arrow.Field{Name: "item", Type: arrow.PrimitiveTypes.Int64, Nullable: true})},
		{Name: "attrs", Type: arrow.MapOf(arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int32)},
		{Name: "point", Type: arrow.StructOf(
			arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Int32},
			arrow.Field{Name: "y", Type: arrow.PrimitiveTypes.Float32},
		)},
		{Name: "kind", Type: arrow.BinaryTypes.String},
		{Name: "day", Type: arrow.FixedWidthTypes.Date32},
		{Name: "at", Type: &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}},
		{Name: "ok", Type: arrow.FixedWidthTypes.Boolean},
	}
	require.Equal(t, len(expected), sc.NumFields())
	for i, f := range expected {
		got := sc.Field(i)
		assert.Equal(t, f.Name, got.Name)
		assert.Equal(t, f.Nullable, got.Nullable, f.Name)
		assert.Truef(t, arrow.TypeEqual(f.Type, got.Type), "%s: expected %s, got %s", f.Name, f.Type, got.Type)
	}

	name, ok := sc.Metadata().GetValue("avro.name")
	assert.True(t, ok)
	assert.Equal(t, "colnest.test.Event", name)
}

func TestArrowSchemaFromAvroUnsupported(t *testing.T) {
	schemas := []string{
		`"long"`,
		`{"type": "record", "name": "R", "fields": [{"name": "u", "type": ["int", "string"]}]}`,
		`{"type": "record", "name": "R", "fields": [{"name": "d", "type": {"type": "bytes", "logicalType": "decimal", "precision": 4, "scale": 2}}]}`,
	}
	for _, src := range schemas {
		schema, err := avro.Parse(src)
		require.NoError(t, err)
		_, err = avroio.ArrowSchemaFromAvro(schema)
		assert.ErrorIs(t, err, arrow.ErrNotImplemented, src)
	}
}

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

package avroio

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/hamba/avro/v2"
)

// ArrowSchemaFromAvro maps a record schema to an arrow schema, one field per
// record field.
//
// Unions are only supported in their nullable form, a null branch and one
// other branch. Enums become strings, fixed becomes fixed size binary and
// the date, time and timestamp logical types map to their arrow
// counterparts; timestamps are in UTC.
func ArrowSchemaFromAvro(schema avro.Schema) (*arrow.Schema, error) {
	rec, ok := deref(schema).(*avro.RecordSchema)
	if !ok {
		return nil, fmt.Errorf("%w: avroio: top level schema must be a record, got %s", arrow.ErrNotImplemented, schema.Type())
	}

	fields := make([]arrow.Field, len(rec.Fields()))
	for i, f := range rec.Fields() {
		field, err := arrowField(f.Name(), f.Type())
		if err != nil {
			return nil, err
		}
		fields[i] = field
	}
	md := arrow.NewMetadata([]string{"avro.name"}, []string{rec.FullName()})
	return arrow.NewSchema(fields, &md), nil
}

func deref(s avro.Schema) avro.Schema {
	if ref, ok := s.(*avro.RefSchema); ok {
		return ref.Schema()
	}
	return s
}

// nullableBranch returns the non-null branch of a ["null", T] union.
func nullableBranch(u *avro.UnionSchema) (avro.Schema, bool) {
	types := u.Types()
	if len(types) != 2 {
		return nil, false
	}
	switch {
	case types[0].Type() == avro.Null && types[1].Type() != avro.Null:
		return types[1], true
	case types[1].Type() == avro.Null && types[0].Type() != avro.Null:
		return types[0], true
	}
	return nil, false
}

func arrowField(name string, schema avro.Schema) (arrow.Field, error) {
	nullable := false
	schema = deref(schema)
	if u, ok := schema.(*avro.UnionSchema); ok {
		inner, ok := nullableBranch(u)
		if !ok {
			return arrow.Field{}, fmt.Errorf("%w: avroio: field %q: union %s", arrow.ErrNotImplemented, name, u)
		}
		schema, nullable = deref(inner), true
	}

	dt, err := arrowType(name, schema)
	if err != nil {
		return arrow.Field{}, err
	}
	return arrow.Field{Name: name, Type: dt, Nullable: nullable || dt.ID() == arrow.NULL}, nil
}

func arrowType(name string, schema avro.Schema) (arrow.DataType, error) {
	switch s := schema.(type) {
	case *avro.RecordSchema:
		fields := make([]arrow.Field, len(s.Fields()))
		for i, f := range s.Fields() {
			field, err := arrowField(f.Name(), f.Type())
			if err != nil {
				return nil, err
			}
			fields[i] = field
		}
		return arrow.StructOf(fields...), nil

	case *avro.ArraySchema:
		elem, err := arrowField("item", s.Items())
		if err != nil {
			return nil, err
		}
		return arrow.ListOfField(elem), nil

	case *avro.MapSchema:
		item, err := arrowField("value", s.Values())
		if err != nil {
			return nil, err
		}
		return arrow.MapOf(arrow.BinaryTypes.String, item.Type), nil

	case *avro.EnumSchema:
		return arrow.BinaryTypes.String, nil

	case *avro.FixedSchema:
		if s.Logical() != nil {
			return nil, fmt.Errorf("%w: avroio: field %q: fixed with logical type %s", arrow.ErrNotImplemented, name, s.Logical().Type())
		}
		return &arrow.FixedSizeBinaryType{ByteWidth: s.Size()}, nil

	case *avro.PrimitiveSchema:
		return primitiveType(name, s)
	}
	return nil, fmt.Errorf("%w: avroio: field %q: type %s", arrow.ErrNotImplemented, name, schema.Type())
}

func primitiveType(name string, s *avro.PrimitiveSchema) (arrow.DataType, error) {
	if ls := s.Logical(); ls != nil {
		switch ls.Type() {
		case avro.Date:
			return arrow.FixedWidthTypes.Date32, nil
		case avro.TimeMillis:
			return arrow.FixedWidthTypes.Time32ms, nil
		case avro.TimeMicros:
			return arrow.FixedWidthTypes.Time64us, nil
		case avro.TimestampMillis:
			return &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}, nil
		case avro.TimestampMicros:
			return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, nil
		case avro.Decimal:
			return nil, fmt.Errorf("%w: avroio: field %q: decimal", arrow.ErrNotImplemented, name)
		}
	}

	switch s.Type() {
	case avro.Null:
		return arrow.Null, nil
	case avro.Boolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case avro.Int:
		return arrow.PrimitiveTypes.Int32, nil
	case avro.Long:
		return arrow.PrimitiveTypes.Int64, nil
	case avro.Float:
		return arrow.PrimitiveTypes.Float32, nil
	case avro.Double:
		return arrow.PrimitiveTypes.Float64, nil
	case avro.String:
		return arrow.BinaryTypes.String, nil
	case avro.Bytes:
		return arrow.BinaryTypes.Binary, nil
	}
	return nil, fmt.Errorf("%w: avroio: field %q: type %s", arrow.ErrNotImplemented, name, s.Type())
}

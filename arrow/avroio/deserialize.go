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
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hamba/avro/v2"
)

// appender adds one decoded avro datum to a builder.
type appender func(v any) error

// Deserialize decodes rows datums from the decompressed block data into a
// record with meta.ArrowSchema.
func Deserialize(mem memory.Allocator, data []byte, rows int64, meta *Metadata) (arrow.Record, error) {
	rec, ok := deref(meta.Schema).(*avro.RecordSchema)
	if !ok {
		return nil, fmt.Errorf("%w: avroio: top level schema must be a record", arrow.ErrNotImplemented)
	}

	bldr := array.NewRecordBuilder(mem, meta.ArrowSchema)
	defer bldr.Release()

	fields := rec.Fields()
	appenders := make([]appender, len(fields))
	for i, f := range fields {
		app, err := newAppender(f.Type(), bldr.Field(i))
		if err != nil {
			return nil, err
		}
		appenders[i] = app
	}
	for _, fb := range bldr.Fields() {
		fb.Reserve(int(rows))
	}

	r := avro.NewReader(bytes.NewReader(data), 4096)
	for row := int64(0); row < rows; row++ {
		var datum map[string]any
		r.ReadVal(meta.Schema, &datum)
		if r.Error != nil {
			return nil, fmt.Errorf("avroio: row %d: %w", row, r.Error)
		}
		for i, f := range fields {
			if err := appenders[i](datum[f.Name()]); err != nil {
				return nil, fmt.Errorf("avroio: row %d field %q: %w", row, f.Name(), err)
			}
		}
	}
	return bldr.NewRecord(), nil
}

func typeErr(v any, b array.Builder) error {
	return fmt.Errorf("%w: cannot append %T to %s", arrow.ErrType, v, b.Type())
}

func newAppender(schema avro.Schema, b array.Builder) (appender, error) {
	switch s := deref(schema).(type) {
	case *avro.UnionSchema:
		inner, ok := nullableBranch(s)
		if !ok {
			return nil, fmt.Errorf("%w: avroio: union %s", arrow.ErrNotImplemented, s)
		}
		app, err := newAppender(inner, b)
		if err != nil {
			return nil, err
		}
		inner = deref(inner)
		return func(v any) error {
			if v == nil {
				b.AppendNull()
				return nil
			}
			return app(unwrapUnion(v, inner))
		}, nil

	case *avro.ArraySchema:
		lb, ok := b.(*array.ListBuilder)
		if !ok {
			return nil, typeErr(s, b)
		}
		elem, err := newAppender(s.Items(), lb.ValueBuilder())
		if err != nil {
			return nil, err
		}
		return func(v any) error {
			items, ok := v.([]any)
			if !ok {
				return typeErr(v, b)
			}
			lb.Append(true)
			for _, item := range items {
				if err := elem(item); err != nil {
					return err
				}
			}
			return nil
		}, nil

	case *avro.MapSchema:
		mb, ok := b.(*array.MapBuilder)
		if !ok {
			return nil, typeErr(s, b)
		}
		kb := mb.KeyBuilder().(*array.StringBuilder)
		item, err := newAppender(s.Values(), mb.ItemBuilder())
		if err != nil {
			return nil, err
		}
		return func(v any) error {
			m, ok := v.(map[string]any)
			if !ok {
				return typeErr(v, b)
			}
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			mb.Append(true)
			for _, k := range keys {
				kb.Append(k)
				if err := item(m[k]); err != nil {
					return err
				}
			}
			return nil
		}, nil

	case *avro.RecordSchema:
		sb, ok := b.(*array.StructBuilder)
		if !ok {
			return nil, typeErr(s, b)
		}
		fields := s.Fields()
		children := make([]appender, len(fields))
		for i, f := range fields {
			child, err := newAppender(f.Type(), sb.FieldBuilder(i))
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		return func(v any) error {
			m, ok := v.(map[string]any)
			if !ok {
				return typeErr(v, b)
			}
			sb.Append(true)
			for i, f := range fields {
				if err := children[i](m[f.Name()]); err != nil {
					return err
				}
			}
			return nil
		}, nil

	case *avro.EnumSchema:
		sb, ok := b.(*array.StringBuilder)
		if !ok {
			return nil, typeErr(s, b)
		}
		return func(v any) error {
			sym, ok := v.(string)
			if !ok {
				return typeErr(v, b)
			}
			sb.Append(sym)
			return nil
		}, nil

	case *avro.FixedSchema:
		fb, ok := b.(*array.FixedSizeBinaryBuilder)
		if !ok {
			return nil, typeErr(s, b)
		}
		return func(v any) error {
			buf, ok := fixedBytes(v)
			if !ok {
				return typeErr(v, b)
			}
			fb.Append(buf)
			return nil
		}, nil

	case *avro.PrimitiveSchema:
		return primitiveAppender(b)
	}
	return nil, fmt.Errorf("%w: avroio: schema %s", arrow.ErrNotImplemented, schema.Type())
}

// unwrapUnion strips the {"branch": value} wrapper generic decoding puts
// around union values. A record or map value is only unwrapped when the key
// names the branch.
func unwrapUnion(v any, branch avro.Schema) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	for k, val := range m {
		switch branch.Type() {
		case avro.Record, avro.Map:
			if !branchNamed(k, branch) {
				return v
			}
		}
		return val
	}
	return v
}

func branchNamed(name string, branch avro.Schema) bool {
	if n, ok := branch.(avro.NamedSchema); ok {
		return name == n.FullName() || name == n.Name()
	}
	return name == string(branch.Type())
}

func fixedBytes(v any) ([]byte, bool) {
	if buf, ok := v.([]byte); ok {
		return buf, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Array || rv.Type().Elem().Kind() != reflect.Uint8 {
		return nil, false
	}
	buf := make([]byte, rv.Len())
	reflect.Copy(reflect.ValueOf(buf), rv)
	return buf, true
}

func toInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch v := v.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func primitiveAppender(b array.Builder) (appender, error) {
	switch bt := b.(type) {
	case *array.NullBuilder:
		return func(any) error { bt.AppendNull(); return nil }, nil
	case *array.BooleanBuilder:
		return func(v any) error {
			val, ok := v.(bool)
			if !ok {
				return typeErr(v, b)
			}
			bt.Append(val)
			return nil
		}, nil
	case *array.Int32Builder:
		return func(v any) error {
			val, ok := toInt64(v)
			if !ok {
				return typeErr(v, b)
			}
			bt.Append(int32(val))
			return nil
		}, nil
	case *array.Int64Builder:
		return func(v any) error {
			val, ok := toInt64(v)
			if !ok {
				return typeErr(v, b)
			}
			bt.Append(val)
			return nil
		}, nil
	case *array.Float32Builder:
		return func(v any) error {
			val, ok := toFloat64(v)
			if !ok {
				return typeErr(v, b)
			}
			bt.Append(float32(val))
			return nil
		}, nil
	case *array.Float64Builder:
		return func(v any) error {
			val, ok := toFloat64(v)
			if !ok {
				return typeErr(v, b)
			}
			bt.Append(val)
			return nil
		}, nil
	case *array.StringBuilder:
		return func(v any) error {
			val, ok := v.(string)
			if !ok {
				return typeErr(v, b)
			}
			bt.Append(val)
			return nil
		}, nil
	case *array.BinaryBuilder:
		return func(v any) error {
			val, ok := v.([]byte)
			if !ok {
				return typeErr(v, b)
			}
			bt.Append(val)
			return nil
		}, nil
	case *array.Date32Builder:
		return func(v any) error {
			switch val := v.(type) {
			case time.Time:
				bt.Append(arrow.Date32FromTime(val))
				return nil
			}
			days, ok := toInt64(v)
			if !ok {
				return typeErr(v, b)
			}
			bt.Append(arrow.Date32(days))
			return nil
		}, nil
	case *array.Time32Builder:
		return func(v any) error {
			if d, ok := v.(time.Duration); ok {
				bt.Append(arrow.Time32(d.Milliseconds()))
				return nil
			}
			val, ok := toInt64(v)
			if !ok {
				return typeErr(v, b)
			}
			bt.Append(arrow.Time32(val))
			return nil
		}, nil
	case *array.Time64Builder:
		return func(v any) error {
			if d, ok := v.(time.Duration); ok {
				bt.Append(arrow.Time64(d.Microseconds()))
				return nil
			}
			val, ok := toInt64(v)
			if !ok {
				return typeErr(v, b)
			}
			bt.Append(arrow.Time64(val))
			return nil
		}, nil
	case *array.TimestampBuilder:
		unit := bt.Type().(*arrow.TimestampType).Unit
		return func(v any) error {
			if t, ok := v.(time.Time); ok {
				switch unit {
				case arrow.Millisecond:
					bt.Append(arrow.Timestamp(t.UnixMilli()))
				default:
					bt.Append(arrow.Timestamp(t.UnixMicro()))
				}
				return nil
			}
			val, ok := toInt64(v)
			if !ok {
				return typeErr(v, b)
			}
			bt.Append(arrow.Timestamp(val))
			return nil
		}, nil
	}
	return nil, fmt.Errorf("%w: avroio: builder for %s", arrow.ErrNotImplemented, b.Type())
}

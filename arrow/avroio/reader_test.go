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
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/colnest/colnest/arrow/avroio"
	"github.com/goccy/go-json"
	"github.com/golang/snappy"
	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const eventSchema = `{
	"type": "record",
	"name": "Event",
	"namespace": "colnest.test",
	"fields": [
		{"name": "id", "type": "long"},
		{"name": "name", "type": "string"},
		{"name": "score", "type": ["null", "double"]},
		{"name": "tags", "type": {"type": "array", "items": "string"}},
		{"name": "counts", "type": {"type": "array", "items": ["null", "long"]}},
		{"name": "attrs", "type": {"type": "map", "values": "int"}},
		{"name": "point", "type": {"type": "record", "name": "Point", "fields": [
			{"name": "x", "type": "int"},
			{"name": "y", "type": "float"}
		]}},
		{"name": "kind", "type": {"type": "enum", "name": "Kind", "symbols": ["A", "B"]}},
		{"name": "day", "type": {"type": "int", "logicalType": "date"}},
		{"name": "at", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "ok", "type": "boolean"}
	]
}`

const (
	numEvents   = 10
	blockLength = 3
)

var baseTime = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

func event(i int) map[string]any {
	var score any
	if i%3 != 1 {
		score = float64(i) / 2
	}
	kind := "A"
	if i%2 == 1 {
		kind = "B"
	}
	return map[string]any{
		"id":     int64(i),
		"name":   fmt.Sprintf("event-%d", i),
		"score":  score,
		"tags":   []string{"t", fmt.Sprint(i)}[:i%3],
		"counts": []any{int64(i), nil},
		"attrs":  map[string]int{"b": i, "a": -i},
		"point":  map[string]any{"x": i, "y": float32(i) + 0.5},
		"kind":   kind,
		"day":    baseTime.AddDate(0, 0, i).Truncate(24 * time.Hour),
		"at":     baseTime.Add(time.Duration(i) * time.Minute),
		"ok":     i%2 == 0,
	}
}

func writeEvents(t *testing.T, opts ...ocf.EncoderFunc) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(eventSchema, &buf, opts...)
	require.NoError(t, err)
	for i := 0; i < numEvents; i++ {
		require.NoError(t, enc.Encode(event(i)))
	}
	require.NoError(t, enc.Close())
	return buf.Bytes()
}

func columnJSON(t *testing.T, rec arrow.Record, name string) string {
	t.Helper()
	idx := rec.Schema().FieldIndices(name)
	require.Len(t, idx, 1)
	js, err := json.Marshal(rec.Column(idx[0]))
	require.NoError(t, err)
	return string(js)
}

type CodecSuite struct {
	suite.Suite

	codec ocf.CodecName
	data  []byte
	mem   *memory.CheckedAllocator
}

func (s *CodecSuite) SetupTest() {
	s.data = writeEvents(s.T(), ocf.WithCodec(s.codec), ocf.WithBlockLength(blockLength))
	s.mem = memory.NewCheckedAllocator(memory.NewGoAllocator())
}

func (s *CodecSuite) TearDownTest() {
	s.mem.AssertSize(s.T(), 0)
}

func (s *CodecSuite) TestBlocks() {
	br, err := avroio.NewBlockReader(bytes.NewReader(s.data))
	s.Require().NoError(err)
	s.Equal(avroio.Codec(s.codec), br.Metadata().Codec)

	var rows []int64
	for i := 0; ; i++ {
		block, err := br.Next()
		if err == io.EOF {
			break
		}
		s.Require().NoError(err)
		s.Equal(i, block.Index)
		rows = append(rows, block.Rows)

		data, err := avroio.DecompressBlock(block, br.Metadata().Codec)
		s.Require().NoError(err)
		s.NotEmpty(data)
	}
	s.Equal([]int64{3, 3, 3, 1}, rows)

	_, err = br.Next()
	s.Equal(io.EOF, err)
}

func (s *CodecSuite) TestStream() {
	br, err := avroio.NewBlockReader(bytes.NewReader(s.data))
	s.Require().NoError(err)

	var total int64
	next := 0
	for res := range br.Stream(context.Background(), 1) {
		s.Require().NoError(res.Err)
		s.Equal(next, res.Block.Index)
		next++
		total += res.Block.Rows
	}
	s.EqualValues(numEvents, total)
}

func (s *CodecSuite) TestReadAll() {
	meta, recs, err := avroio.ReadAll(context.Background(), bytes.NewReader(s.data),
		avroio.WithAllocator(s.mem), avroio.WithConcurrency(2), avroio.WithReadAhead(1))
	s.Require().NoError(err)
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()

	s.Equal("colnest.test.Event", meta.Schema.(avro.NamedSchema).FullName())
	s.Require().Len(recs, 4)

	var ids []int64
	for _, rec := range recs {
		s.True(rec.Schema().Equal(meta.ArrowSchema))
		ids = append(ids, rec.Column(0).(*array.Int64).Int64Values()...)
	}
	s.Equal([]int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, ids)

	first := recs[0]
	s.JSONEq(`["event-0", "event-1", "event-2"]`, columnJSON(s.T(), first, "name"))
	s.JSONEq(`[0, null, 1]`, columnJSON(s.T(), first, "score"))
	s.JSONEq(`[[], ["t"], ["t", "2"]]`, columnJSON(s.T(), first, "tags"))
	s.JSONEq(`[[0, null], [1, null], [2, null]]`, columnJSON(s.T(), first, "counts"))
	s.JSONEq(`[{"x": 0, "y": 0.5}, {"x": 1, "y": 1.5}, {"x": 2, "y": 2.5}]`, columnJSON(s.T(), first, "point"))
	s.JSONEq(`["A", "B", "A"]`, columnJSON(s.T(), first, "kind"))
	s.JSONEq(`[true, false, true]`, columnJSON(s.T(), first, "ok"))

	attrs := first.Column(5).(*array.Map)
	s.Equal(3, attrs.Len())
	keys := attrs.Keys().(*array.String)
	s.Equal("a", keys.Value(2))
	s.Equal("b", keys.Value(3))
	s.Equal([]int32{-1, 1}, attrs.Items().(*array.Int32).Int32Values()[2:4])

	day := first.Column(8).(*array.Date32)
	s.Equal(arrow.Date32FromTime(baseTime.AddDate(0, 0, 1)), day.Value(1))

	at := first.Column(9).(*array.Timestamp)
	s.Equal(arrow.Timestamp(baseTime.Add(2*time.Minute).UnixMilli()), at.Value(2))
}

func TestCodecs(t *testing.T) {
	for _, codec := range []ocf.CodecName{ocf.Null, ocf.Deflate, ocf.Snappy, ocf.ZStandard} {
		t.Run(string(codec), func(t *testing.T) {
			suite.Run(t, &CodecSuite{codec: codec})
		})
	}
}

func TestHeaderMetadata(t *testing.T) {
	data := writeEvents(t, ocf.WithMetadata(map[string][]byte{"origin": []byte("unit-test")}))

	br, err := avroio.NewBlockReader(bytes.NewReader(data))
	require.NoError(t, err)
	meta := br.Metadata()
	assert.Equal(t, avroio.CodecNull, meta.Codec)
	assert.Equal(t, []byte("unit-test"), meta.Raw["origin"])
	assert.Contains(t, string(meta.Raw["avro.schema"]), "Event")
}

func TestInvalidFiles(t *testing.T) {
	data := writeEvents(t, ocf.WithBlockLength(blockLength))

	t.Run("magic", func(t *testing.T) {
		_, err := avroio.NewBlockReader(bytes.NewReader([]byte("PAR1xxxx")))
		assert.ErrorIs(t, err, arrow.ErrInvalid)
	})

	t.Run("magic in a valid header", func(t *testing.T) {
		corrupt := bytes.Clone(data)
		copy(corrupt, "PAR1")
		_, err := avroio.NewBlockReader(bytes.NewReader(corrupt))
		assert.ErrorIs(t, err, arrow.ErrInvalid)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := avroio.NewBlockReader(bytes.NewReader(nil))
		assert.ErrorIs(t, err, arrow.ErrInvalid)
	})

	t.Run("sync marker", func(t *testing.T) {
		corrupt := bytes.Clone(data)
		corrupt[len(corrupt)-1] ^= 0xff
		_, _, err := avroio.ReadAll(context.Background(), bytes.NewReader(corrupt))
		assert.ErrorIs(t, err, arrow.ErrInvalid)
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := avroio.ReadAll(context.Background(), bytes.NewReader(data[:len(data)-5]))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := avroio.ReadAll(ctx, bytes.NewReader(data))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDecompressBlock(t *testing.T) {
	payload := []byte("nested columns, one block at a time")

	t.Run("snappy", func(t *testing.T) {
		block := snappy.Encode(nil, payload)
		block = binary.BigEndian.AppendUint32(block, crc32.ChecksumIEEE(payload))
		out, err := avroio.DecompressBlock(&avroio.Block{Data: block}, avroio.CodecSnappy)
		require.NoError(t, err)
		assert.Equal(t, payload, out)

		block[len(block)-1] ^= 0xff
		_, err = avroio.DecompressBlock(&avroio.Block{Data: block}, avroio.CodecSnappy)
		assert.ErrorIs(t, err, arrow.ErrInvalid)

		_, err = avroio.DecompressBlock(&avroio.Block{Data: []byte{1}}, avroio.CodecSnappy)
		assert.ErrorIs(t, err, arrow.ErrInvalid)
	})

	t.Run("null", func(t *testing.T) {
		out, err := avroio.DecompressBlock(&avroio.Block{Data: payload}, avroio.CodecNull)
		require.NoError(t, err)
		assert.Equal(t, payload, out)
	})

	t.Run("corrupt", func(t *testing.T) {
		garbage := []byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb, 0xfa, 0xf9, 0xf8}
		for _, codec := range []avroio.Codec{avroio.CodecDeflate, avroio.CodecZstandard} {
			_, err := avroio.DecompressBlock(&avroio.Block{Data: garbage}, codec)
			assert.ErrorIs(t, err, arrow.ErrInvalid, string(codec))
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := avroio.DecompressBlock(&avroio.Block{Data: payload}, avroio.Codec("bzip2"))
		assert.ErrorIs(t, err, arrow.ErrNotImplemented)
	})
}

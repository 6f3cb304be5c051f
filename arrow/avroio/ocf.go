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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"
)

const (
	schemaKey = "avro.schema"
	codecKey  = "avro.codec"
	syncSize  = 16

	readerBufSize = 1024
)

var magic = [4]byte{'O', 'b', 'j', 1}

// Metadata is the decoded header of an object container file.
type Metadata struct {
	Schema      avro.Schema
	ArrowSchema *arrow.Schema
	Codec       Codec
	Sync        [syncSize]byte
	// Raw holds every header metadata entry, schema and codec included.
	Raw map[string][]byte
}

// Block is one still-compressed data block of a container file.
type Block struct {
	// Index is the position of the block in the file, starting at 0.
	Index int
	Rows  int64
	Data  []byte
}

// BlockResult is a block or the error that ended the stream.
type BlockResult struct {
	Block *Block
	Err   error
}

// BlockReader reads the blocks of a container file in order.
type BlockReader struct {
	r    *avro.Reader
	meta *Metadata
	next int
}

// NewBlockReader reads the container header from r.
func NewBlockReader(r io.Reader) (*BlockReader, error) {
	br := &BlockReader{r: avro.NewReader(r, readerBufSize)}
	meta, err := br.readHeader()
	if err != nil {
		return nil, err
	}
	br.meta = meta
	return br, nil
}

// Metadata returns the header read by NewBlockReader.
func (br *BlockReader) Metadata() *Metadata { return br.meta }

func (br *BlockReader) readHeader() (*Metadata, error) {
	var h ocf.Header
	br.r.ReadVal(ocf.HeaderSchema, &h)
	if br.r.Error != nil {
		return nil, fmt.Errorf("%w: avroio: reading header: %w", arrow.ErrInvalid, br.r.Error)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%w: avroio: not an avro object container file", arrow.ErrInvalid)
	}

	meta := &Metadata{Raw: h.Meta, Codec: CodecNull, Sync: h.Sync}
	if meta.Raw == nil {
		meta.Raw = map[string][]byte{}
	}
	if c, ok := meta.Raw[codecKey]; ok && len(c) > 0 {
		meta.Codec = Codec(c)
	}

	src, ok := meta.Raw[schemaKey]
	if !ok {
		return nil, fmt.Errorf("%w: avroio: header has no %s", arrow.ErrInvalid, schemaKey)
	}
	schema, err := avro.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("%w: avroio: parsing schema: %s", arrow.ErrInvalid, err)
	}
	meta.Schema = schema
	if meta.ArrowSchema, err = ArrowSchemaFromAvro(schema); err != nil {
		return nil, err
	}
	return meta, nil
}

// Next reads the next block, returning io.EOF after the last one.
func (br *BlockReader) Next() (*Block, error) {
	if _ = br.r.Peek(); errors.Is(br.r.Error, io.EOF) {
		return nil, io.EOF
	}
	rows := br.r.ReadLong()
	if err := br.r.Error; err != nil {
		return nil, fmt.Errorf("avroio: block %d: %w", br.next, noEOF(err))
	}
	if rows < 0 {
		return nil, fmt.Errorf("%w: avroio: block %d has %d rows", arrow.ErrInvalid, br.next, rows)
	}

	size := br.r.ReadLong()
	if br.r.Error == nil && size < 0 {
		return nil, fmt.Errorf("%w: avroio: block %d has size %d", arrow.ErrInvalid, br.next, size)
	}
	var data []byte
	if br.r.Error == nil {
		data = make([]byte, size)
		br.r.Read(data)
	}
	var sync [syncSize]byte
	if br.r.Error == nil {
		br.r.Read(sync[:])
	}
	if err := br.r.Error; err != nil {
		return nil, fmt.Errorf("avroio: block %d: %w", br.next, noEOF(err))
	}
	if !bytes.Equal(sync[:], br.meta.Sync[:]) {
		return nil, fmt.Errorf("%w: avroio: block %d sync marker mismatch", arrow.ErrInvalid, br.next)
	}

	block := &Block{Index: br.next, Rows: rows, Data: data}
	br.next++
	return block, nil
}

// noEOF reports a stream ending inside a block as truncated.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Stream reads blocks on a new goroutine and sends them on the returned
// channel, buffered for depth blocks. The channel is closed after the last
// block, after a BlockResult carrying the first error, or when ctx is done.
func (br *BlockReader) Stream(ctx context.Context, depth int) <-chan BlockResult {
	if depth < 0 {
		depth = 0
	}
	ch := make(chan BlockResult, depth)
	go func() {
		defer close(ch)
		for {
			block, err := br.Next()
			if err == io.EOF {
				return
			}
			select {
			case ch <- BlockResult{Block: block, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

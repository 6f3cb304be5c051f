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
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
)

// batchReader is implemented by the typed column chunk readers of the
// parquet file package, e.g. *file.Int32ColumnChunkReader.
type batchReader[T any] interface {
	HasNext() bool
	Err() error
	ReadBatch(batchSize int64, values []T, defLvls, repLvls []int16) (int64, int, error)
}

// columnPages is a PageIterator over one leaf column across a list of row
// groups. Each page is one ReadBatch of up to batchSize levels.
type columnPages[T any] struct {
	rdr       *file.Reader
	col       int
	rowGroups []int
	batchSize int64
	maxRep    int16
	maxDef    int16
	path      string
	metrics   *Metrics

	// clone detaches values from reader-owned buffers before they are
	// handed out.
	clone func([]T) []T

	cur batchReader[T]
	rg  int
}

func newColumnPages[T any](rdr *file.Reader, col int, rowGroups []int, props ReadProperties) *columnPages[T] {
	descr := rdr.MetaData().Schema.Column(col)
	return &columnPages[T]{
		rdr:       rdr,
		col:       col,
		rowGroups: rowGroups,
		batchSize: props.BatchSize,
		maxRep:    descr.MaxRepetitionLevel(),
		maxDef:    descr.MaxDefinitionLevel(),
		path:      descr.Path(),
		metrics:   props.Metrics,
	}
}

func (c *columnPages[T]) nextChunk() error {
	if c.cur != nil {
		if err := c.cur.Err(); err != nil {
			return fmt.Errorf("column %s row group %d: %w", c.path, c.rowGroups[c.rg-1], err)
		}
	}
	if c.rg >= len(c.rowGroups) {
		return io.EOF
	}

	rg := c.rowGroups[c.rg]
	cr, err := c.rdr.RowGroup(rg).Column(c.col)
	if err != nil {
		return fmt.Errorf("column %s row group %d: %w", c.path, rg, err)
	}
	br, ok := cr.(batchReader[T])
	if !ok {
		var zero T
		return fmt.Errorf("%w: column %s reader %T does not read %T values", arrow.ErrInvalid, c.path, cr, zero)
	}
	c.cur = br
	c.rg++
	return nil
}

func (c *columnPages[T]) Next() (*Page[T], error) {
	for {
		if c.cur == nil || !c.cur.HasNext() {
			if err := c.nextChunk(); err != nil {
				return nil, err
			}
			continue
		}

		page := &Page[T]{Values: make([]T, c.batchSize)}
		if c.maxDef > 0 {
			page.DefLevels = make([]int16, c.batchSize)
		}
		if c.maxRep > 0 {
			page.RepLevels = make([]int16, c.batchSize)
		}

		total, n, err := c.cur.ReadBatch(c.batchSize, page.Values, page.DefLevels, page.RepLevels)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.path, err)
		}
		if total == 0 {
			// HasNext reported data but the chunk is exhausted
			if err := c.nextChunk(); err != nil {
				return nil, err
			}
			continue
		}

		page.Values = page.Values[:n]
		if page.DefLevels != nil {
			page.DefLevels = page.DefLevels[:total]
		}
		if page.RepLevels != nil {
			page.RepLevels = page.RepLevels[:total]
		}
		if c.clone != nil {
			page.Values = c.clone(page.Values)
		}
		c.metrics.observeBatch(c.path, int(total), n)
		return page, nil
	}
}

func cloneByteArrays(values []parquet.ByteArray) []parquet.ByteArray {
	var size int
	for _, v := range values {
		size += len(v)
	}
	buf := make([]byte, 0, size)
	out := make([]parquet.ByteArray, len(values))
	for i, v := range values {
		start := len(buf)
		buf = append(buf, v...)
		out[i] = buf[start:len(buf):len(buf)]
	}
	return out
}

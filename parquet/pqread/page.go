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
	"errors"
	"io"
)

// Page is one unit of decoded column data. DefLevels is nil when the
// column's max definition level is 0 and RepLevels is nil when its max
// repetition level is 0. Values only holds non-null leaf values.
type Page[T any] struct {
	RepLevels []int16
	DefLevels []int16
	Values    []T
}

// NumLevels is the number of level pairs, which is the number of values
// when the column has no definition levels.
func (p *Page[T]) NumLevels() int {
	if p.DefLevels == nil {
		return len(p.Values)
	}
	return len(p.DefLevels)
}

// PageIterator yields the pages of a single column in storage order. Next
// returns io.EOF once the column is exhausted.
type PageIterator[T any] interface {
	Next() (*Page[T], error)
}

// PageResult is a page or the error that ended the stream.
type PageResult[T any] struct {
	Page *Page[T]
	Err  error
}

// SliceIterator is a PageIterator over pages already in memory.
type SliceIterator[T any] struct {
	pages []*Page[T]
	pos   int
}

// NewSliceIterator returns an iterator yielding pages in order.
func NewSliceIterator[T any](pages ...*Page[T]) *SliceIterator[T] {
	return &SliceIterator[T]{pages: pages}
}

// Next returns the next page, or io.EOF once every page was returned.
func (s *SliceIterator[T]) Next() (*Page[T], error) {
	if s.pos >= len(s.pages) {
		return nil, io.EOF
	}
	s.pos++
	return s.pages[s.pos-1], nil
}

// StreamPages starts a goroutine pulling pages from iter and returns the
// channel it sends them on, buffered for depth pages. The channel is closed
// after the last page, or after a PageResult carrying the first error. The
// goroutine exits early when ctx is cancelled, so callers that stop
// receiving must cancel ctx.
func StreamPages[T any](ctx context.Context, iter PageIterator[T], depth int) <-chan PageResult[T] {
	if depth < 0 {
		depth = 0
	}
	ch := make(chan PageResult[T], depth)
	go func() {
		defer close(ch)
		for {
			page, err := iter.Next()
			if errors.Is(err, io.EOF) {
				return
			}

			res := PageResult[T]{Page: page, Err: err}
			select {
			case ch <- res:
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

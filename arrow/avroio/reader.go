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
	"context"
	"io"
	"runtime"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"
)

type readConfig struct {
	mem         memory.Allocator
	concurrency int
	readAhead   int
	logger      log.Logger
}

// Option configures ReadAll.
type Option func(*readConfig)

// WithAllocator sets the allocator for the decoded records.
func WithAllocator(mem memory.Allocator) Option {
	return func(cfg *readConfig) { cfg.mem = mem }
}

// WithConcurrency bounds the number of blocks decoded at once. It defaults
// to GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(cfg *readConfig) { cfg.concurrency = n }
}

// WithReadAhead sets how many compressed blocks may be buffered ahead of
// the decoders.
func WithReadAhead(n int) Option {
	return func(cfg *readConfig) { cfg.readAhead = n }
}

// WithLogger sets the logger for per-block debug events. It defaults to a
// no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(cfg *readConfig) { cfg.logger = logger }
}

// ReadAll reads every block of the container file in r and returns one
// record per block, in file order. Blocks are read on a producer goroutine
// and decompressed and decoded by a bounded pool of workers.
func ReadAll(ctx context.Context, r io.Reader, opts ...Option) (*Metadata, []arrow.Record, error) {
	cfg := readConfig{
		mem:         memory.DefaultAllocator,
		concurrency: runtime.GOMAXPROCS(0),
		readAhead:   2,
		logger:      log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.concurrency < 1 {
		cfg.concurrency = 1
	}

	br, err := NewBlockReader(r)
	if err != nil {
		return nil, nil, err
	}
	meta := br.Metadata()
	level.Debug(cfg.logger).Log("msg", "read avro header", "schema", meta.Schema.String(), "codec", meta.Codec)

	var (
		mu   sync.Mutex
		recs []arrow.Record
	)
	release := func() {
		for _, rec := range recs {
			if rec != nil {
				rec.Release()
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)

	var streamErr error
	for res := range br.Stream(gctx, cfg.readAhead) {
		if res.Err != nil {
			streamErr = res.Err
			break
		}

		block := res.Block
		mu.Lock()
		recs = append(recs, nil)
		mu.Unlock()

		g.Go(func() error {
			data, err := DecompressBlock(block, meta.Codec)
			if err != nil {
				return err
			}
			rec, err := Deserialize(cfg.mem, data, block.Rows, meta)
			if err != nil {
				return err
			}
			level.Debug(cfg.logger).Log("msg", "decoded avro block", "block", block.Index, "rows", block.Rows, "bytes", len(data))

			mu.Lock()
			recs[block.Index] = rec
			mu.Unlock()
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = streamErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		release()
		return nil, nil, err
	}
	return meta, recs, nil
}

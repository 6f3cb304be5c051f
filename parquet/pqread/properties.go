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
	"github.com/go-kit/log"
)

const (
	defaultBatchSize = 1024
	defaultReadAhead = 4
)

// ReadProperties controls how a FileReader decodes columns.
type ReadProperties struct {
	// BatchSize is the number of levels read from a column chunk per page.
	BatchSize int64
	// Parallel decodes the requested columns concurrently.
	Parallel bool
	// Async reads each column's pages on a producer goroutine while the
	// previous pages are decoded.
	Async bool
	// ReadAhead is the number of pages the producer may buffer in Async mode.
	ReadAhead int
	// RowGroups restricts reading to the listed row groups, in that order.
	// All row groups are read when it is nil.
	RowGroups []int

	Logger  log.Logger
	Metrics *Metrics
}

// DefaultReadProperties returns synchronous, sequential properties with a
// batch size of 1024 levels and a no-op logger.
func DefaultReadProperties() ReadProperties {
	return ReadProperties{
		BatchSize: defaultBatchSize,
		ReadAhead: defaultReadAhead,
		Logger:    log.NewNopLogger(),
	}
}

func (p *ReadProperties) setDefaults() {
	if p.BatchSize <= 0 {
		p.BatchSize = defaultBatchSize
	}
	if p.ReadAhead <= 0 {
		p.ReadAhead = defaultReadAhead
	}
	if p.Logger == nil {
		p.Logger = log.NewNopLogger()
	}
}

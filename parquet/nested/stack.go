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

package nested

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Stack is the per-column sequence of levels, outermost depth first.
//
// It is built once from the column's field before any page is read, mutated
// in place while pages are decoded and drained from the innermost end when
// the arrays are materialized.
type Stack struct {
	levels []Level
}

// NewStack builds the stack for field, sizing container levels for capacity
// slots.
func NewStack(field arrow.Field, capacity int) (*Stack, error) {
	s := &Stack{}
	if err := InitNested(field, capacity, s); err != nil {
		return nil, err
	}
	return s, nil
}

// InitNested walks field from the outside in, appending one level per
// nesting boundary to stack. Struct children are appended in schema order
// to the same flat stack.
func InitNested(field arrow.Field, capacity int, stack *Stack) error {
	switch dt := field.Type.(type) {
	case *arrow.ListType, *arrow.LargeListType, *arrow.FixedSizeListType:
		if field.Nullable {
			stack.levels = append(stack.levels, NewOptional(capacity))
		} else {
			stack.levels = append(stack.levels, NewRequired(capacity))
		}
		return InitNested(dt.(arrow.ListLikeType).ElemField(), capacity, stack)
	case *arrow.StructType:
		stack.levels = append(stack.levels, NewPrimitive(field.Nullable))
		for _, child := range dt.Fields() {
			if err := InitNested(child, capacity, stack); err != nil {
				return err
			}
		}
		return nil
	}

	if isTerminal(field.Type.ID()) {
		stack.levels = append(stack.levels, NewPrimitive(field.Nullable))
		return nil
	}
	return fmt.Errorf("%w: nested levels for field %q of type %s", arrow.ErrNotImplemented, field.Name, field.Type)
}

func isTerminal(id arrow.Type) bool {
	switch id {
	case arrow.NULL, arrow.BOOL,
		arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64,
		arrow.DECIMAL128, arrow.DECIMAL256,
		arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP, arrow.TIME32, arrow.TIME64,
		arrow.INTERVAL_MONTHS, arrow.INTERVAL_DAY_TIME, arrow.INTERVAL_MONTH_DAY_NANO,
		arrow.DURATION,
		arrow.FIXED_SIZE_BINARY, arrow.BINARY, arrow.LARGE_BINARY,
		arrow.STRING, arrow.LARGE_STRING,
		arrow.DICTIONARY:
		return true
	}
	return false
}

// Len is the number of levels left on the stack.
func (s *Stack) Len() int { return len(s.levels) }

// Level returns the level at depth, 0 being the outermost.
func (s *Stack) Level(depth int) *Level { return &s.levels[depth] }

// Pop removes and returns the innermost level.
func (s *Stack) Pop() (Level, bool) {
	if len(s.levels) == 0 {
		return Level{}, false
	}
	last := s.levels[len(s.levels)-1]
	s.levels = s.levels[:len(s.levels)-1]
	return last, true
}

// Nullability lists IsNullable for each depth, outermost first.
func (s *Stack) Nullability() []bool {
	out := make([]bool, len(s.levels))
	for i := range s.levels {
		out[i] = s.levels[i].IsNullable()
	}
	return out
}

// Kinds lists the kind of each depth, outermost first.
func (s *Stack) Kinds() []LevelKind {
	out := make([]LevelKind, len(s.levels))
	for i := range s.levels {
		out[i] = s.levels[i].Kind()
	}
	return out
}

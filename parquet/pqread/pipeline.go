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
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/colnest/colnest/parquet/nested"
)

// Column describes the column a pipeline decodes.
type Column struct {
	// Field is the arrow field of the column, lists included. Only lists
	// and large lists may appear above the leaf.
	Field arrow.Field
	// MaxRep and MaxDef are the column's schema levels.
	MaxRep int16
	MaxDef int16
	Mem    memory.Allocator
}

// IterToArray pulls every page from pages, folds them into stack and the
// leaf builder and returns the nested array for col.Field. stack must have
// been built for col.Field with nested.InitNested and is consumed. op
// converts a physical value into the builder's value type.
//
// The builder is not released.
func IterToArray[T, A any](pages PageIterator[T], col Column, stack *nested.Stack, bldr Builder[A], op func(T) A) (arrow.Array, error) {
	next := func(context.Context) (*Page[T], error) { return pages.Next() }
	return decode(context.Background(), col, stack, bldr, op, next)
}

// StreamToArray is IterToArray over pages received from a channel, usually
// the one returned by StreamPages. It stops at the first PageResult carrying
// an error, or when ctx is done, and returns that error without a partial
// result.
func StreamToArray[T, A any](ctx context.Context, pages <-chan PageResult[T], col Column, stack *nested.Stack, bldr Builder[A], op func(T) A) (arrow.Array, error) {
	next := func(ctx context.Context) (*Page[T], error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res, ok := <-pages:
			if !ok {
				return nil, io.EOF
			}
			if res.Err != nil {
				return nil, res.Err
			}
			return res.Page, nil
		}
	}
	return decode(ctx, col, stack, bldr, op, next)
}

func decode[T, A any](ctx context.Context, col Column, stack *nested.Stack, bldr Builder[A], op func(T) A, next func(context.Context) (*Page[T], error)) (arrow.Array, error) {
	lists, err := listTypes(col.Field)
	if err != nil {
		return nil, err
	}

	leaf, ok := stack.Pop()
	if !ok {
		return nil, fmt.Errorf("%w: empty nesting stack for field %q", arrow.ErrInvalid, col.Field.Name)
	}
	if stack.Len() != len(lists) {
		return nil, fmt.Errorf("%w: nesting stack has %d levels above the leaf, field %q has %d lists",
			arrow.ErrInvalid, stack.Len(), col.Field.Name, len(lists))
	}
	if int(col.MaxRep) != len(lists) {
		return nil, fmt.Errorf("%w: column has max repetition level %d, field %q has %d lists",
			arrow.ErrInvalid, col.MaxRep, col.Field.Name, len(lists))
	}

	var dec *nested.LevelDecoder
	if stack.Len() > 0 {
		dec = nested.NewLevelDecoder(stack, leaf.IsNullable(), col.MaxRep, col.MaxDef)
	}

	for {
		page, err := next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if dec == nil {
			extendFlat(bldr, page, col.MaxDef, op)
			continue
		}
		dec.Extend(page.RepLevels, page.DefLevels)
		extendNested(bldr, page, leaf.IsNullable(), col.MaxDef, op)
	}

	values := bldr.NewArray()
	if dec == nil {
		return values, nil
	}
	dec.Close()

	for i := len(lists) - 1; i >= 0; i-- {
		out, err := nested.CreateList(col.Mem, lists[i], stack, values)
		values.Release()
		if err != nil {
			return nil, err
		}
		values = out
	}
	return values, nil
}

// listTypes returns the list types of f from the outside in, failing on any
// other nested type between the root and the leaf.
func listTypes(f arrow.Field) ([]arrow.DataType, error) {
	var out []arrow.DataType
	for {
		switch dt := f.Type.(type) {
		case *arrow.ListType:
			out = append(out, dt)
			f = dt.ElemField()
		case *arrow.LargeListType:
			out = append(out, dt)
			f = dt.ElemField()
		case arrow.NestedType:
			return nil, fmt.Errorf("%w: read nested datatype %s", arrow.ErrNotImplemented, dt)
		default:
			return out, nil
		}
	}
}

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
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Builder is an arrow builder accepting values of type A.
type Builder[A any] interface {
	array.Builder
	Append(A)
}

// extendFlat appends one leaf slot per level: a value when def reaches
// maxDef, a null otherwise.
func extendFlat[T, A any](bldr Builder[A], page *Page[T], maxDef int16, op func(T) A) {
	if maxDef == 0 || page.DefLevels == nil {
		bldr.Reserve(len(page.Values))
		for _, v := range page.Values {
			bldr.Append(op(v))
		}
		return
	}

	bldr.Reserve(len(page.DefLevels))
	values := page.Values
	for _, def := range page.DefLevels {
		if def == maxDef {
			bldr.Append(op(values[0]))
			values = values[1:]
		} else {
			bldr.AppendNull()
		}
	}
}

// extendNested appends the leaf slots of a nested column. A non-nullable
// leaf has a slot exactly for each value. A nullable leaf has a null slot
// when def is one short of maxDef; lower levels are nulls or empty lists of
// an ancestor and have no leaf slot.
func extendNested[T, A any](bldr Builder[A], page *Page[T], nullable bool, maxDef int16, op func(T) A) {
	if !nullable {
		bldr.Reserve(len(page.Values))
		for _, v := range page.Values {
			bldr.Append(op(v))
		}
		return
	}

	values := page.Values
	for _, def := range page.DefLevels {
		switch def {
		case maxDef:
			bldr.Append(op(values[0]))
			values = values[1:]
		case maxDef - 1:
			bldr.AppendNull()
		}
	}
}

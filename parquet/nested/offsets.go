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

	"github.com/colnest/colnest/internal/debug"
)

// LevelDecoder folds repetition/definition level pairs into a Stack.
//
// It carries the state that crosses page boundaries: the running number of
// children of every container and whether the first pair of the column has
// been seen. Pages must be passed to Extend in storage order and Close must
// be called once, after the last page.
//
// The stack is expected to describe a single root-to-leaf path with the leaf
// level already popped. Definition thresholds are derived from it: a
// nullable level adds one definition level for "not null", a container adds
// one for "has an element".
type LevelDecoder struct {
	stack    *Stack
	nullable bool
	maxRep   int16
	maxDef   int16

	// containers maps container depth (the repetition level that opens it)
	// to its index in stack.
	containers []int
	// slot at container d exists when def >= existDef[d]
	existDef []int16
	// slot at container d is non-null when def >= validDef[d]
	validDef []int16
	// container d has an element when def >= elemDef[d]
	elemDef []int16

	valuesCount []int64
	prevDef     int16
	first       bool
	closed      bool
}

// NewLevelDecoder prepares a decoder for stack. nullable is the nullability
// of the leaf popped from the stack; maxRep and maxDef are the column's
// schema constants.
func NewLevelDecoder(stack *Stack, nullable bool, maxRep, maxDef int16) *LevelDecoder {
	d := &LevelDecoder{
		stack:    stack,
		nullable: nullable,
		maxRep:   maxRep,
		maxDef:   maxDef,
		first:    true,
	}

	var def, slotDef int16
	for i := range stack.levels {
		lvl := &stack.levels[i]
		if !lvl.IsContainer() {
			if lvl.IsNullable() {
				def++
			}
			continue
		}
		d.containers = append(d.containers, i)
		d.existDef = append(d.existDef, slotDef)
		if lvl.IsNullable() {
			def++
		}
		d.validDef = append(d.validDef, def)
		def++
		slotDef = def
		d.elemDef = append(d.elemDef, def)
	}
	d.valuesCount = make([]int64, len(d.containers))

	debug.Assert(int16(len(d.containers)) == maxRep, func() string {
		return fmt.Sprintf("nested: stack has %d containers but max repetition level is %d", len(d.containers), maxRep)
	})
	debug.Assert(leafDef(def, nullable) == maxDef, func() string {
		return fmt.Sprintf("nested: stack implies max definition level %d, column has %d", leafDef(def, nullable), maxDef)
	})
	return d
}

func leafDef(def int16, nullable bool) int16 {
	if nullable {
		return def + 1
	}
	return def
}

// Extend folds one page worth of levels into the stack. rep and def must
// have equal length.
func (d *LevelDecoder) Extend(rep, def []int16) {
	debug.Assert(len(rep) == len(def), func() string {
		return fmt.Sprintf("nested: %d repetition levels but %d definition levels", len(rep), len(def))
	})
	debug.Assert(!d.closed, "nested: Extend after Close")

	for i := range def {
		d.extendPair(rep[i], def[i])
	}
}

func (d *LevelDecoder) extendPair(rep, def int16) {
	closures := d.maxRep - rep
	if d.first {
		// open every depth so each offsets sequence starts at 0
		rep, closures = 0, d.maxRep
		d.first = false
	}

	// only depths whose parent holds an element at this definition level
	// receive a slot; a null or empty ancestor closes the window early.
	reach := d.reach(def)
	if rep+closures > reach {
		closures = max(reach-rep, 0)
	}

	for depth := rep; depth < rep+closures; depth++ {
		d.stack.levels[d.containers[depth]].Push(d.valuesCount[depth], def >= d.validDef[depth])
	}

	for depth := range d.valuesCount {
		if rep <= int16(depth)+1 && def >= d.elemDef[depth] {
			d.valuesCount[depth]++
		}
	}
	d.prevDef = def
}

// reach is the number of container depths whose slot exists at def.
func (d *LevelDecoder) reach(def int16) int16 {
	n := int16(0)
	for _, ed := range d.existDef {
		if def < ed {
			break
		}
		n++
	}
	return n
}

// Close appends the terminal offset of every level.
func (d *LevelDecoder) Close() {
	if d.closed {
		return
	}
	d.closed = true
	for depth, idx := range d.containers {
		lvl := &d.stack.levels[idx]
		lvl.Close(d.valuesCount[depth])
		debug.Assert(lvl.validity == nil || lvl.validity.Len() == len(lvl.offsets)-1, func() string {
			return fmt.Sprintf("nested: depth %d has %d offsets but %d validity bits", depth, len(lvl.offsets), lvl.validity.Len())
		})
	}
}

// PrevDef is the definition level of the last pair folded in.
func (d *LevelDecoder) PrevDef() int16 { return d.prevDef }

// ValuesCount returns the running number of children per container depth.
func (d *LevelDecoder) ValuesCount() []int64 { return d.valuesCount }

// ExtendOffsets folds a complete level sequence into stack and closes every
// level. Use a LevelDecoder when the levels arrive in several pages.
func ExtendOffsets(rep, def []int16, nullable bool, maxRep, maxDef int16, stack *Stack) {
	d := NewLevelDecoder(stack, nullable, maxRep, maxDef)
	d.Extend(rep, def)
	d.Close()
}

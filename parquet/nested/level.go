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

import "fmt"

// LevelKind identifies which of the three level shapes a Level has.
type LevelKind int8

const (
	// KindPrimitive is a terminal level: a leaf, or a struct which only
	// contributes nullability. It never holds offsets.
	KindPrimitive LevelKind = iota
	// KindOptional is a nullable list level with offsets and validity.
	KindOptional
	// KindRequired is a non-nullable list level with offsets only.
	KindRequired
)

func (k LevelKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindOptional:
		return "optional"
	case KindRequired:
		return "required"
	}
	return fmt.Sprintf("LevelKind(%d)", int8(k))
}

// Level accumulates the offsets and validity of a single nesting depth.
//
// Offsets are only ever appended, by Push for each slot and by Close for
// the terminal offset. After Close, len(Offsets())-1 equals the number of
// slots, which is also the length of the validity bitmap of an optional
// level.
type Level struct {
	kind     LevelKind
	nullable bool
	offsets  []int64
	validity *Bitmap
}

// NewPrimitive returns a terminal level carrying only nullability.
func NewPrimitive(nullable bool) Level {
	return Level{kind: KindPrimitive, nullable: nullable}
}

// NewOptional returns a nullable container level sized for capacity slots.
func NewOptional(capacity int) Level {
	return Level{
		kind:     KindOptional,
		nullable: true,
		offsets:  make([]int64, 0, capacity+1),
		validity: NewBitmap(capacity),
	}
}

// NewRequired returns a non-nullable container level sized for capacity slots.
func NewRequired(capacity int) Level {
	return Level{
		kind:    KindRequired,
		offsets: make([]int64, 0, capacity+1),
	}
}

// Kind reports which of the three level shapes l has.
func (l *Level) Kind() LevelKind { return l.kind }

// IsNullable reports whether values at this depth may be null.
func (l *Level) IsNullable() bool { return l.nullable }

// IsContainer reports whether the level contributes offsets.
func (l *Level) IsContainer() bool { return l.kind != KindPrimitive }

// Push opens a new slot starting at child position length.
func (l *Level) Push(length int64, valid bool) {
	switch l.kind {
	case KindOptional:
		l.offsets = append(l.offsets, length)
		l.validity.Append(valid)
	case KindRequired:
		l.offsets = append(l.offsets, length)
	}
}

// Close appends the terminal offset, the total number of children.
func (l *Level) Close(length int64) {
	if l.kind == KindPrimitive {
		return
	}
	l.offsets = append(l.offsets, length)
}

// LastOffset is the most recently appended offset. It panics on a container
// level that has not been pushed to yet.
func (l *Level) LastOffset() int64 {
	if l.kind == KindPrimitive {
		return 0
	}
	return l.offsets[len(l.offsets)-1]
}

// Offsets returns the offsets accumulated so far without draining them.
func (l *Level) Offsets() []int64 { return l.offsets }

// Validity returns the validity accumulated so far, nil unless optional.
func (l *Level) Validity() *Bitmap { return l.validity }

// Inner moves the accumulated offsets and validity out of the level, leaving
// it empty. A second call returns nothing.
func (l *Level) Inner() (offsets []int64, validity *Bitmap) {
	offsets, validity = l.offsets, l.validity
	l.offsets = nil
	if l.kind == KindOptional {
		l.validity = NewBitmap(0)
	}
	return offsets, validity
}

func (l *Level) String() string {
	return fmt.Sprintf("%s{nullable=%t offsets=%v validity=%v}", l.kind, l.nullable, l.offsets, l.validity.Bools())
}

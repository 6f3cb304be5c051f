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
	"github.com/apache/arrow-go/v18/arrow/bitutil"
)

// Bitmap is a growable validity bitmap, least significant bit first.
type Bitmap struct {
	buf []byte
	n   int
}

// NewBitmap returns an empty bitmap with room for capacity bits.
func NewBitmap(capacity int) *Bitmap {
	return &Bitmap{buf: make([]byte, 0, bitutil.BytesForBits(int64(capacity)))}
}

// Append adds one bit to the end of the bitmap.
func (b *Bitmap) Append(v bool) {
	if b.n%8 == 0 {
		b.buf = append(b.buf, 0)
	}
	bitutil.SetBitTo(b.buf, b.n, v)
	b.n++
}

// Len is the number of bits appended so far.
func (b *Bitmap) Len() int {
	if b == nil {
		return 0
	}
	return b.n
}

// IsSet reports whether bit i is set.
func (b *Bitmap) IsSet(i int) bool { return bitutil.BitIsSet(b.buf, i) }

// Bytes returns the packed bits. Bits past Len are zero.
func (b *Bitmap) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.buf
}

// NullN is the number of unset bits.
func (b *Bitmap) NullN() int {
	if b == nil {
		return 0
	}
	return b.n - bitutil.CountSetBits(b.buf, 0, b.n)
}

// Bools expands the bitmap, mostly useful in tests and debugging.
func (b *Bitmap) Bools() []bool {
	out := make([]bool, b.Len())
	for i := range out {
		out[i] = b.IsSet(i)
	}
	return out
}

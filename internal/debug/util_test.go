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

package debug

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type level int

func (l level) String() string { return "level" }

func TestGetStringValue(t *testing.T) {
	calls := 0
	lazy := func() string {
		calls++
		return "depth 2 has 3 offsets but 4 validity bits"
	}

	assert.Equal(t, "depth 2 has 3 offsets but 4 validity bits", getStringValue(lazy))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "plain", getStringValue("plain"))
	assert.Equal(t, "boom", getStringValue(errors.New("boom")))
	assert.Equal(t, "level", getStringValue(level(1)))
	assert.PanicsWithValue(t, "debug: unsupported message type int", func() { getStringValue(42) })
}

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

// Package nested rebuilds nested Arrow list arrays from Parquet repetition
// and definition levels.
//
// A column's logical shape is turned into a Stack of Levels, one per nesting
// depth (InitNested). Each page's level pairs are folded into that stack by a
// LevelDecoder, which appends offsets and validity bits per depth. Once every
// page has been consumed the stack is drained bottom-up by CreateList, which
// wraps the decoded leaf array in one list array per depth.
//
// Decoding a column is a sequential fold: pages must be extended in storage
// order and a Stack must not be shared between goroutines. Different columns
// use independent stacks and may be decoded concurrently.
package nested

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

// Package pqread decodes parquet columns into nested arrow arrays one page
// at a time.
//
// A column is consumed as a sequence of pages, each holding repetition
// levels, definition levels and the non-null leaf values. The pages are
// folded into a nested.Stack and a typed leaf builder, after which the list
// arrays are assembled from the innermost level outwards. Pages may be
// pulled synchronously through a PageIterator, or received from a channel
// filled by a producer goroutine (see StreamPages), in which case I/O and
// decompression of the following pages overlap with decoding.
//
// FileReader wires this pipeline to a parquet file.Reader.
package pqread

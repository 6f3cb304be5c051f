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

// Package avroio reads Avro object container files into arrow records one
// block at a time.
//
// The container header and block framing are read by BlockReader, which can
// also deliver blocks over a channel from a producer goroutine. Blocks are
// decompressed with DecompressBlock and decoded into records with
// Deserialize, both of which are safe to run concurrently on different
// blocks. ReadAll combines the three.
package avroio

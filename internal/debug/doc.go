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

// Package debug provides build-tag gated assertions and trace logging for
// the level decoding code.
//
// # Using Assert
//
// Build with the assert tag to enable Assert. Without the tag the
// calls compile to nothing, so malformed level streams surface only as the
// runtime panics of the code that consumes them.
//
// # Using Log
//
// Build with the debug tag to enable Log and Logf, which write to stderr with
// a "[D] " prefix.
package debug

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

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/colnest/colnest/arrow/avroio"
	"github.com/docopt/docopt-go"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/goccy/go-json"
)

const usage = `Avro Container Reader.
Usage:
  avro_reader -h | --help
  avro_reader [--concurrency=N] [--read-ahead=N] [--json] [--log-level=LEVEL] <file>
Options:
  -h --help            Show this screen.
  --concurrency=N      Blocks decoded at once, 0 for one per CPU [default: 0].
  --read-ahead=N       Compressed blocks buffered ahead of the decoders [default: 2].
  --json               Print every record as JSON rows.
  --log-level=LEVEL    One of debug, info, warn or error [default: info].`

func main() {
	opts, _ := docopt.ParseDoc(usage)
	var config struct {
		Concurrency string
		ReadAhead   string
		JSON        bool `docopt:"--json"`
		LogLevel    string
		File        string
	}
	if err := opts.Bind(&config); err != nil {
		fmt.Fprintln(os.Stderr, "error parsing arguments:", err)
		os.Exit(1)
	}

	concurrency, err1 := strconv.Atoi(config.Concurrency)
	readAhead, err2 := strconv.Atoi(config.ReadAhead)
	if err1 != nil || err2 != nil {
		fmt.Fprintln(os.Stderr, "error: --concurrency and --read-ahead need to be integers")
		os.Exit(1)
	}

	var lvl level.Option
	switch strings.ToLower(config.LogLevel) {
	case "debug":
		lvl = level.AllowDebug()
	case "info":
		lvl = level.AllowInfo()
	case "warn":
		lvl = level.AllowWarn()
	case "error":
		lvl = level.AllowError()
	default:
		fmt.Fprintf(os.Stderr, "error: unknown log level %q\n", config.LogLevel)
		os.Exit(1)
	}
	logger := level.NewFilter(log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr)), lvl)

	f, err := os.Open(config.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error opening avro file: ", err)
		os.Exit(1)
	}
	defer f.Close()

	readOpts := []avroio.Option{avroio.WithReadAhead(readAhead), avroio.WithLogger(logger)}
	if concurrency > 0 {
		readOpts = append(readOpts, avroio.WithConcurrency(concurrency))
	}
	meta, recs, err := avroio.ReadAll(context.Background(), f, readOpts...)
	if err != nil {
		level.Error(logger).Log("msg", "reading avro file", "file", config.File, "err", err)
		os.Exit(1)
	}
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()

	if config.JSON {
		for _, rec := range recs {
			for i := 0; i < int(rec.NumRows()); i++ {
				row := make(map[string]any, rec.NumCols())
				for j, col := range rec.Columns() {
					row[rec.ColumnName(j)] = col.GetOneForMarshal(i)
				}
				out, err := json.Marshal(row)
				if err != nil {
					level.Error(logger).Log("msg", "encoding row", "err", err)
					os.Exit(1)
				}
				fmt.Println(string(out))
			}
		}
		return
	}

	fmt.Println("File name:", config.File)
	fmt.Println("Codec:", meta.Codec)
	fmt.Println("Avro Schema:", meta.Schema.String())
	fmt.Println("Arrow Schema:", strings.TrimSpace(meta.ArrowSchema.String()))
	fmt.Println("Number of Blocks:", len(recs))

	var total int64
	for i, rec := range recs {
		fmt.Printf("--- Block %d: %d rows ---\n", i, rec.NumRows())
		total += rec.NumRows()
	}
	fmt.Println("Num Rows:", total)

	if len(recs) > 0 {
		tbl := array.NewTableFromRecords(meta.ArrowSchema, recs)
		defer tbl.Release()
		for i := 0; i < int(tbl.NumCols()); i++ {
			col := tbl.Column(i)
			fmt.Printf("Column %d: %s (%s) nulls=%d\n", i, col.Name(), col.DataType(), col.Data().NullN())
		}
	}
}

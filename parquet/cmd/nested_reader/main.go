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

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/colnest/colnest/parquet/pqread"
	"github.com/docopt/docopt-go"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
)

const usage = `Nested Parquet Reader.
Usage:
  nested_reader -h | --help
  nested_reader [--async] [--parallel] [--json] [--stats] [--batch-size=N]
                [--columns=COLUMNS] [--row-groups=GROUPS] [--log-level=LEVEL] <file>
Options:
  -h --help               Show this screen.
  --async                 Read pages on a producer goroutine while decoding.
  --parallel              Decode the selected columns concurrently.
  --json                  Print each column as a JSON array of rows.
  --stats                 Print page and level counters after reading.
  --batch-size=N          Levels read per page [default: 1024].
  --columns=COLUMNS       Comma delimited indexes of the top level fields to read.
  --row-groups=GROUPS     Comma delimited indexes of the row groups to read.
  --log-level=LEVEL       One of debug, info, warn or error [default: info].`

func parseIndexes(flag, s string) []int {
	if s == "" {
		return nil
	}
	out := []int{}
	for _, c := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s needs to be comma-delimited integers\n", flag)
			os.Exit(1)
		}
		out = append(out, v)
	}
	return out
}

func newLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	var opt level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		fmt.Fprintf(os.Stderr, "error: unknown log level %q\n", lvl)
		os.Exit(1)
	}
	return level.NewFilter(logger, opt)
}

func main() {
	opts, _ := docopt.ParseDoc(usage)
	var config struct {
		Async     bool
		Parallel  bool
		JSON      bool `docopt:"--json"`
		Stats     bool
		BatchSize string
		Columns   string
		RowGroups string
		LogLevel  string
		File      string
	}
	if err := opts.Bind(&config); err != nil {
		fmt.Fprintln(os.Stderr, "error parsing arguments:", err)
		os.Exit(1)
	}

	batchSize, err := strconv.ParseInt(config.BatchSize, 10, 64)
	if err != nil || batchSize <= 0 {
		fmt.Fprintln(os.Stderr, "error: --batch-size needs to be a positive integer")
		os.Exit(1)
	}

	logger := newLogger(config.LogLevel)
	reg := prometheus.NewRegistry()

	props := pqread.DefaultReadProperties()
	props.BatchSize = batchSize
	props.Async = config.Async
	props.Parallel = config.Parallel
	props.RowGroups = parseIndexes("--row-groups", config.RowGroups)
	props.Logger = logger
	props.Metrics = pqread.NewMetrics(reg)

	rdr, err := file.OpenParquetFile(config.File, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error opening parquet file: ", err)
		os.Exit(1)
	}
	defer rdr.Close()

	fr, err := pqread.NewFileReader(rdr, props, memory.DefaultAllocator)
	if err != nil {
		level.Error(logger).Log("msg", "creating reader", "file", config.File, "err", err)
		os.Exit(1)
	}

	selected := parseIndexes("--columns", config.Columns)
	if selected == nil {
		for i := 0; i < fr.NumFields(); i++ {
			selected = append(selected, i)
		}
	}

	cols, err := fr.ReadFields(context.Background(), selected)
	if err != nil {
		level.Error(logger).Log("msg", "reading columns", "file", config.File, "err", err)
		os.Exit(1)
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	schema := fr.Schema()
	if !config.JSON {
		fmt.Println("File name:", config.File)
		fmt.Println("Num Rows:", rdr.NumRows())
		fmt.Println("Number of RowGroups:", rdr.NumRowGroups())
		fmt.Println("Number of Selected Fields:", len(selected))
	}
	for i, idx := range selected {
		if err := printColumn(schema.Field(idx), cols[i], config.JSON); err != nil {
			level.Error(logger).Log("msg", "printing column", "field", schema.Field(idx).Name, "err", err)
			os.Exit(1)
		}
	}

	if config.Stats {
		printStats(reg)
	}
}

func printColumn(field arrow.Field, arr arrow.Array, asJSON bool) error {
	if asJSON {
		out, err := json.Marshal(map[string]any{
			"name":  field.Name,
			"type":  field.Type.String(),
			"nulls": arr.NullN(),
			"rows":  arr,
		})
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("--- Field: %s (%s) ---\n", field.Name, field.Type)
	fmt.Println("--- Rows:", arr.Len(), "Nulls:", arr.NullN(), "---")
	for i := 0; i < arr.Len(); i++ {
		fmt.Printf("%d: %s\n", i, arr.ValueStr(i))
	}
	return nil
}

func printStats(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error gathering stats:", err)
		return
	}
	fmt.Println("--- Stats ---")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Printf("%s{%s} %v\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				fmt.Printf("%s{%s} count=%d sum=%v\n", mf.GetName(), strings.Join(labels, ","),
					m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum())
			}
		}
	}
}

// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"go.yaml.in/yaml/v3"

	"github.com/open-policy-agent/atom/v1/atom"
	"github.com/open-policy-agent/atom/v1/metrics"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var formats = []string{formatTable, formatJSON, formatYAML}

// report describes a registry after a run.
type report struct {
	Lines         int              `json:"lines,omitempty" yaml:"lines,omitempty"`
	Operations    int64            `json:"operations,omitempty" yaml:"operations,omitempty"`
	Unique        int              `json:"unique" yaml:"unique"`
	BytesRead     int64            `json:"bytes_read" yaml:"bytes_read"`
	BytesRetained int64            `json:"bytes_retained" yaml:"bytes_retained"`
	Entries       int              `json:"entries" yaml:"entries"`
	Live          int              `json:"live" yaml:"live"`
	ElapsedNS     int64            `json:"elapsed_ns,omitempty" yaml:"elapsed_ns,omitempty"`
	Metrics       metrics.Snapshot `json:"metrics" yaml:"metrics"`
}

func newReport(r *atom.Registry, c *metrics.Collector) report {
	return report{
		Entries: r.Len(),
		Live:    r.Live(),
		Metrics: c.Snapshot(),
	}
}

func validateFormat(format string) error {
	for _, f := range formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q, expected one of %v", format, formats)
}

func writeReport(w io.Writer, format string, rep report) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case formatYAML:
		bs, err := yaml.Marshal(rep)
		if err != nil {
			return err
		}
		_, err = w.Write(bs)
		return err
	default:
		return writeTable(w, rep)
	}
}

func writeTable(w io.Writer, rep report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")

	rows := [][2]string{}
	if rep.Lines > 0 {
		rows = append(rows, [2]string{"lines", strconv.Itoa(rep.Lines)})
	}
	if rep.Operations > 0 {
		rows = append(rows, [2]string{"operations", strconv.FormatInt(rep.Operations, 10)})
	}
	rows = append(rows,
		[2]string{"unique", strconv.Itoa(rep.Unique)},
		[2]string{"bytes read", strconv.FormatInt(rep.BytesRead, 10)},
		[2]string{"bytes retained", strconv.FormatInt(rep.BytesRetained, 10)},
		[2]string{"entries", strconv.Itoa(rep.Entries)},
		[2]string{"live entries", strconv.Itoa(rep.Live)},
		[2]string{"hits", strconv.FormatUint(rep.Metrics.Hits, 10)},
		[2]string{"misses", strconv.FormatUint(rep.Metrics.Misses, 10)},
		[2]string{"resurrections", strconv.FormatUint(rep.Metrics.Resurrections, 10)},
		[2]string{"pruned", strconv.FormatUint(rep.Metrics.Pruned, 10)},
	)
	if rep.ElapsedNS > 0 {
		rows = append(rows, [2]string{"elapsed ns", strconv.FormatInt(rep.ElapsedNS, 10)})
	}

	for _, row := range rows {
		if err := table.Append(row[0], row[1]); err != nil {
			return err
		}
	}
	return table.Render()
}

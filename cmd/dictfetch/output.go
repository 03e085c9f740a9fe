// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/ansiterm"
	"github.com/juju/errors"

	"github.com/trueprep/fact-graph/internal/batch"
)

// fetchSummaryView is the serialisable form of a finished run.
type fetchSummaryView struct {
	OutputDir   string             `yaml:"output-dir" json:"output-dir"`
	Links       int                `yaml:"links" json:"links"`
	Fetched     int                `yaml:"fetched" json:"fetched"`
	Failed      int                `yaml:"failed" json:"failed"`
	Bytes       int64              `yaml:"bytes" json:"bytes"`
	Elapsed     string             `yaml:"elapsed" json:"elapsed"`
	FailedLinks []fetchFailureView `yaml:"failed-links,omitempty" json:"failed-links,omitempty"`
}

// fetchFailureView names a link that failed and why.
type fetchFailureView struct {
	Link  string `yaml:"link" json:"link"`
	Error string `yaml:"error" json:"error"`
}

func convertSummary(outputDir string, summary batch.Summary) fetchSummaryView {
	view := fetchSummaryView{
		OutputDir: outputDir,
		Links:     summary.Total,
		Fetched:   summary.Succeeded,
		Failed:    len(summary.Failed),
		Bytes:     summary.Bytes,
		Elapsed:   summary.Elapsed.Round(time.Millisecond).String(),
	}
	for _, failed := range summary.Failed {
		view.FailedLinks = append(view.FailedLinks, fetchFailureView{
			Link:  failed.Link,
			Error: failed.Err.Error(),
		})
	}
	return view
}

// formatFetchTabular writes a tabular summary of the run.
func formatFetchTabular(writer io.Writer, value interface{}) error {
	summary, ok := value.(fetchSummaryView)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", summary, value)
	}

	tw := ansiterm.NewTabWriter(writer, 0, 1, 2, ' ', 0)
	fmt.Fprintln(tw, "LINKS\tFETCHED\tFAILED\tDOWNLOADED\tELAPSED")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n",
		summary.Links,
		summary.Fetched,
		summary.Failed,
		humanize.IBytes(uint64(summary.Bytes)),
		summary.Elapsed,
	)

	if len(summary.FailedLinks) > 0 {
		fmt.Fprintln(tw, "")
		fmt.Fprintln(tw, "FAILED LINK\tERROR")
		for _, failure := range summary.FailedLinks {
			fmt.Fprintf(tw, "%s\t%s\n", failure.Link, failure.Error)
		}
	}
	return tw.Flush()
}

// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package batch orchestrates a download run. It walks the link list in
// order, converts each blob URL to its raw form, fetches the file into
// the output directory and tallies the outcome. A failing link is
// recorded and skipped, it never stops the run.
package batch

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/trueprep/fact-graph/internal/bloburl"
)

var logger = loggo.GetLogger("factgraph.batch")

// Fetcher downloads a single URL to a target path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL *url.URL, targetPath string) (int64, error)
}

// Observer receives progress notifications while a run is in flight.
// Indexes are one based.
type Observer interface {
	// Fetching reports that a download is about to start.
	Fetching(index, total int, filename string)
	// Fetched reports a completed download and where it was written.
	Fetched(index, total int, filename, path string, size int64)
	// Failed reports a link that could not be downloaded.
	Failed(index, total int, link string, err error)
	// Collision reports a file name that an earlier link in the same
	// run already wrote. The later download still proceeds and wins.
	Collision(filename string)
}

// FailedLink records a link that could not be downloaded and why.
type FailedLink struct {
	Link string
	Err  error
}

// Summary is the tally of a completed run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    []FailedLink
	Bytes     int64
	Elapsed   time.Duration
}

// Config holds the dependencies and parameters of a Runner.
type Config struct {
	Fetcher   Fetcher
	Observer  Observer
	Clock     clock.Clock
	OutputDir string
}

// Validate returns an error if the config is not usable.
func (c Config) Validate() error {
	if c.Fetcher == nil {
		return errors.NotValidf("nil Fetcher")
	}
	if c.Observer == nil {
		return errors.NotValidf("nil Observer")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.OutputDir == "" {
		return errors.NotValidf("empty OutputDir")
	}
	return nil
}

// Runner downloads links one at a time into the output directory.
type Runner struct {
	config Config
}

// NewRunner creates a Runner from the given config.
func NewRunner(config Config) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Runner{config: config}, nil
}

// Run processes the links strictly in order, one download at a time.
// The output directory is created first if it does not exist. Links
// that fail end up in the summary with their reason; only an unusable
// output directory or a cancelled context aborts the run.
func (r *Runner) Run(ctx context.Context, links []string) (Summary, error) {
	start := r.config.Clock.Now()

	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return Summary{}, errors.Annotatef(err, "cannot create output directory %q", r.config.OutputDir)
	}

	summary := Summary{Total: len(links)}
	written := set.NewStrings()
	for i, link := range links {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = r.config.Clock.Now().Sub(start)
			return summary, errors.Trace(err)
		}
		index, total := i+1, len(links)

		rawLink, ok := bloburl.Raw(link)
		if !ok {
			logger.Warningf("%q has no blob segment, fetching it as given", link)
		}
		filename, err := bloburl.Filename(rawLink)
		if err != nil {
			summary.Failed = append(summary.Failed, FailedLink{Link: link, Err: err})
			r.config.Observer.Failed(index, total, link, err)
			continue
		}

		r.config.Observer.Fetching(index, total, filename)
		if written.Contains(filename) {
			logger.Debugf("%q was already written by an earlier link, overwriting", filename)
			r.config.Observer.Collision(filename)
		}

		target := filepath.Join(r.config.OutputDir, filename)
		size, err := r.fetchOne(ctx, rawLink, target)
		if err != nil {
			summary.Failed = append(summary.Failed, FailedLink{Link: link, Err: err})
			r.config.Observer.Failed(index, total, link, err)
			continue
		}

		written.Add(filename)
		summary.Succeeded++
		summary.Bytes += size
		r.config.Observer.Fetched(index, total, filename, target, size)
	}

	summary.Elapsed = r.config.Clock.Now().Sub(start)
	return summary, nil
}

func (r *Runner) fetchOne(ctx context.Context, rawLink, targetPath string) (int64, error) {
	u, err := url.Parse(rawLink)
	if err != nil {
		return 0, errors.Annotatef(err, "parsing %q", rawLink)
	}
	size, err := r.config.Fetcher.Fetch(ctx, u, targetPath)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return size, nil
}

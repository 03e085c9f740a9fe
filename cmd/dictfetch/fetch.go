// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"
	"github.com/juju/utils/v4"

	"github.com/trueprep/fact-graph/internal/batch"
	"github.com/trueprep/fact-graph/internal/fetcher"
	"github.com/trueprep/fact-graph/internal/linksfile"
	"github.com/trueprep/fact-graph/version"
)

var logger = loggo.GetLogger("factgraph.cmd.dictfetch")

const (
	defaultLinksFile = "fact_dictionaries/links.txt"
	defaultOutputDir = "fact_dictionaries"
)

const (
	fetchSummary = "Downloads the dictionary files named in the links file."
	fetchDoc     = `
dictfetch reads the GitHub links listed in the links file, converts each
web view ("blob") URL to its raw content form and downloads the files one
at a time into the output directory, each named after the last segment of
its URL. Links that cannot be downloaded are reported and skipped; the
command exits non-zero if any of them failed.

The links file is a plain text list with one URL per "- " entry. Lines
without that marker are ignored, and anything from a "#" onwards is
treated as a line anchor or comment and dropped.
`
	fetchExamples = `
    dictfetch

    dictfetch --links-file mirror-links.txt --output-dir ./dicts --timeout 1m

    dictfetch --failed-links failed.txt --format yaml
`
)

// NewFetchCommand returns the dictfetch command.
func NewFetchCommand() cmd.Command {
	return &fetchCommand{
		clock: clock.WallClock,
	}
}

// fetchCommand downloads every file in the link list, one at a time.
type fetchCommand struct {
	cmd.CommandBase
	out cmd.Output
	log cmd.Log

	clock clock.Clock

	linksFile   string
	outputDir   string
	timeout     time.Duration
	failedLinks string
	showVersion bool
}

// Info implements part of the cmd.Command interface.
func (c *fetchCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "dictfetch",
		Purpose:  fetchSummary,
		Doc:      fetchDoc,
		Examples: fetchExamples,
	}
}

// SetFlags implements part of the cmd.Command interface.
func (c *fetchCommand) SetFlags(f *gnuflag.FlagSet) {
	c.log.AddFlags(f)
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": formatFetchTabular,
	})
	f.StringVar(&c.linksFile, "links-file", defaultLinksFile, "path of the link list to read")
	f.StringVar(&c.outputDir, "output-dir", defaultOutputDir, "directory the files are written to")
	f.DurationVar(&c.timeout, "timeout", fetcher.DefaultTimeout, "how long a single download may take")
	f.StringVar(&c.failedLinks, "failed-links", "", "write the links that failed to this file, in links file form")
	f.BoolVar(&c.showVersion, "version", false, "print the tool version and exit")
}

// Init implements part of the cmd.Command interface.
func (c *fetchCommand) Init(args []string) error {
	if err := cmd.CheckEmpty(args); err != nil {
		return errors.Trace(err)
	}
	if c.timeout <= 0 {
		return errors.NotValidf("timeout %v", c.timeout)
	}
	return nil
}

// Run implements part of the cmd.Command interface.
func (c *fetchCommand) Run(cmdContext *cmd.Context) error {
	if c.showVersion {
		fmt.Fprintln(cmdContext.Stdout, version.Current)
		return nil
	}
	if err := c.log.Start(cmdContext); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("dictfetch %s", version.Current)

	linksPath := cmdContext.AbsPath(c.linksFile)
	outputDir := cmdContext.AbsPath(c.outputDir)

	cmdContext.Infof("Reading links from %s", c.linksFile)
	links, err := linksfile.Read(linksPath)
	if err != nil {
		return errors.Annotate(err, "cannot read links file")
	}
	cmdContext.Infof("Found %d links to download", len(links))

	runner, err := batch.NewRunner(batch.Config{
		Fetcher:   fetcher.NewClient(fetcher.DefaultHTTPClient(c.timeout), fetcher.DefaultFileSystem()),
		Observer:  progressObserver{ctx: cmdContext},
		Clock:     c.clock,
		OutputDir: outputDir,
	})
	if err != nil {
		return errors.Trace(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	summary, err := runner.Run(ctx, links)
	if err != nil {
		return errors.Trace(err)
	}

	if err := c.out.Write(cmdContext, convertSummary(outputDir, summary)); err != nil {
		return errors.Trace(err)
	}
	if c.failedLinks != "" {
		if err := c.writeFailedLinks(cmdContext, summary); err != nil {
			return errors.Trace(err)
		}
	}

	if failed := len(summary.Failed); failed > 0 {
		return errors.Errorf("%d of %d downloads failed", failed, summary.Total)
	}
	return nil
}

// writeFailedLinks writes the links that failed in links file form, so
// the file can be fed straight back into dictfetch for a retry.
func (c *fetchCommand) writeFailedLinks(cmdContext *cmd.Context, summary batch.Summary) error {
	var buf bytes.Buffer
	for _, failed := range summary.Failed {
		fmt.Fprintf(&buf, "- %s\n", failed.Link)
	}
	if err := utils.AtomicWriteFile(cmdContext.AbsPath(c.failedLinks), buf.Bytes(), 0644); err != nil {
		return errors.Annotate(err, "cannot write failed links file")
	}
	cmdContext.Infof("Wrote %d failed links to %s", len(summary.Failed), c.failedLinks)
	return nil
}

// progressObserver relays batch progress to the user.
type progressObserver struct {
	ctx *cmd.Context
}

// Fetching implements batch.Observer.
func (o progressObserver) Fetching(index, total int, filename string) {
	o.ctx.Infof("[%d/%d] Downloading %s", index, total, filename)
}

// Fetched implements batch.Observer.
func (o progressObserver) Fetched(index, total int, filename, path string, size int64) {
	o.ctx.Infof("  saved %s (%s)", path, humanize.IBytes(uint64(size)))
}

// Failed implements batch.Observer.
func (o progressObserver) Failed(index, total int, link string, err error) {
	o.ctx.Warningf("cannot download %s: %v", link, err)
}

// Collision implements batch.Observer.
func (o progressObserver) Collision(filename string) {
	o.ctx.Warningf("%s was already written by an earlier link, overwriting", filename)
}

// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package batch_test

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/trueprep/fact-graph/internal/batch"
)

type batchSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&batchSuite{})

func (s *batchSuite) TestValidate(c *gc.C) {
	_, err := batch.NewRunner(batch.Config{})
	c.Assert(err, jc.Satisfies, errors.IsNotValid)

	_, err = batch.NewRunner(batch.Config{
		Fetcher:  &fakeFetcher{},
		Observer: &recordingObserver{},
		Clock:    testclock.NewClock(time.Time{}),
	})
	c.Assert(err, gc.ErrorMatches, "empty OutputDir not valid")
}

func (s *batchSuite) TestRunDownloadsAll(c *gc.C) {
	outputDir := c.MkDir()
	fetcher := &fakeFetcher{content: "<dictionary/>"}
	observer := &recordingObserver{}

	summary, err := s.run(c, fetcher, observer, outputDir, []string{
		"https://github.com/org/dicts/blob/main/animals.xml",
		"https://github.com/org/dicts/blob/main/plants.xml",
	})
	c.Assert(err, jc.ErrorIsNil)

	c.Check(summary.Total, gc.Equals, 2)
	c.Check(summary.Succeeded, gc.Equals, 2)
	c.Check(summary.Failed, gc.HasLen, 0)
	c.Check(summary.Bytes, gc.Equals, int64(2*len("<dictionary/>")))

	fetcher.CheckCalls(c, []testing.StubCall{
		{FuncName: "Fetch", Args: []interface{}{"https://github.com/org/dicts/raw/main/animals.xml", filepath.Join(outputDir, "animals.xml")}},
		{FuncName: "Fetch", Args: []interface{}{"https://github.com/org/dicts/raw/main/plants.xml", filepath.Join(outputDir, "plants.xml")}},
	})

	data, err := os.ReadFile(filepath.Join(outputDir, "animals.xml"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Equals, "<dictionary/>")
}

func (s *batchSuite) TestRunContinuesAfterFailure(c *gc.C) {
	outputDir := c.MkDir()
	fetcher := &fakeFetcher{
		content: "<dictionary/>",
		errs: map[string]error{
			"https://github.com/org/dicts/raw/main/missing.xml": errors.NewNotFound(nil, "file not found"),
		},
	}
	observer := &recordingObserver{}

	summary, err := s.run(c, fetcher, observer, outputDir, []string{
		"https://github.com/org/dicts/blob/main/missing.xml",
		"https://github.com/org/dicts/blob/main/plants.xml",
	})
	c.Assert(err, jc.ErrorIsNil)

	c.Check(summary.Total, gc.Equals, 2)
	c.Check(summary.Succeeded, gc.Equals, 1)
	c.Assert(summary.Failed, gc.HasLen, 1)
	c.Check(summary.Failed[0].Link, gc.Equals, "https://github.com/org/dicts/blob/main/missing.xml")
	c.Check(summary.Failed[0].Err, jc.Satisfies, errors.IsNotFound)

	observer.CheckCalls(c, []testing.StubCall{
		{FuncName: "Fetching", Args: []interface{}{1, 2, "missing.xml"}},
		{FuncName: "Failed", Args: []interface{}{1, 2, "https://github.com/org/dicts/blob/main/missing.xml"}},
		{FuncName: "Fetching", Args: []interface{}{2, 2, "plants.xml"}},
		{FuncName: "Fetched", Args: []interface{}{2, 2, "plants.xml", filepath.Join(outputDir, "plants.xml"), int64(len("<dictionary/>"))}},
	})
}

func (s *batchSuite) TestRunCreatesOutputDir(c *gc.C) {
	outputDir := filepath.Join(c.MkDir(), "fact_dictionaries", "nested")
	fetcher := &fakeFetcher{content: "x"}

	summary, err := s.run(c, fetcher, &recordingObserver{}, outputDir, []string{
		"https://github.com/org/dicts/blob/main/dict.xml",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(summary.Succeeded, gc.Equals, 1)
	c.Check(outputDir, jc.IsDirectory)
}

func (s *batchSuite) TestRunOutputDirNotADirectory(c *gc.C) {
	outputDir := filepath.Join(c.MkDir(), "occupied")
	err := os.WriteFile(outputDir, []byte("a file in the way"), 0644)
	c.Assert(err, jc.ErrorIsNil)

	fetcher := &fakeFetcher{content: "x"}
	_, err = s.run(c, fetcher, &recordingObserver{}, outputDir, []string{
		"https://github.com/org/dicts/blob/main/dict.xml",
	})
	c.Assert(err, gc.ErrorMatches, `cannot create output directory ".*occupied": mkdir .*occupied: not a directory`)
	fetcher.CheckCalls(c, nil)
}

func (s *batchSuite) TestRunReportsCollisions(c *gc.C) {
	outputDir := c.MkDir()
	observer := &recordingObserver{}

	summary, err := s.run(c, &fakeFetcher{content: "x"}, observer, outputDir, []string{
		"https://github.com/org/dicts/blob/main/dict.xml",
		"https://github.com/org/other/blob/main/dict.xml",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(summary.Succeeded, gc.Equals, 2)

	observer.CheckCalls(c, []testing.StubCall{
		{FuncName: "Fetching", Args: []interface{}{1, 2, "dict.xml"}},
		{FuncName: "Fetched", Args: []interface{}{1, 2, "dict.xml", filepath.Join(outputDir, "dict.xml"), int64(1)}},
		{FuncName: "Fetching", Args: []interface{}{2, 2, "dict.xml"}},
		{FuncName: "Collision", Args: []interface{}{"dict.xml"}},
		{FuncName: "Fetched", Args: []interface{}{2, 2, "dict.xml", filepath.Join(outputDir, "dict.xml"), int64(1)}},
	})
}

func (s *batchSuite) TestRunFilenameNotDerivable(c *gc.C) {
	fetcher := &fakeFetcher{content: "x"}
	observer := &recordingObserver{}

	summary, err := s.run(c, fetcher, observer, c.MkDir(), []string{
		"https://github.com/org/dicts/blob/main/",
	})
	c.Assert(err, jc.ErrorIsNil)

	c.Check(summary.Succeeded, gc.Equals, 0)
	c.Assert(summary.Failed, gc.HasLen, 1)
	c.Check(summary.Failed[0].Err, jc.Satisfies, errors.IsNotValid)
	fetcher.CheckCalls(c, nil)
}

func (s *batchSuite) TestRunFetchesNonBlobLinkAsGiven(c *gc.C) {
	fetcher := &fakeFetcher{content: "x"}
	outputDir := c.MkDir()

	summary, err := s.run(c, fetcher, &recordingObserver{}, outputDir, []string{
		"https://example.com/files/dict.xml",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(summary.Succeeded, gc.Equals, 1)

	fetcher.CheckCalls(c, []testing.StubCall{
		{FuncName: "Fetch", Args: []interface{}{"https://example.com/files/dict.xml", filepath.Join(outputDir, "dict.xml")}},
	})
}

func (s *batchSuite) TestRunMeasuresElapsed(c *gc.C) {
	clk := testclock.NewClock(time.Time{})
	fetcher := &fakeFetcher{
		content: "x",
		before: func() {
			clk.Advance(5 * time.Second)
		},
	}

	runner, err := batch.NewRunner(batch.Config{
		Fetcher:   fetcher,
		Observer:  &recordingObserver{},
		Clock:     clk,
		OutputDir: c.MkDir(),
	})
	c.Assert(err, jc.ErrorIsNil)

	summary, err := runner.Run(context.Background(), []string{
		"https://github.com/org/dicts/blob/main/animals.xml",
		"https://github.com/org/dicts/blob/main/plants.xml",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(summary.Elapsed, gc.Equals, 10*time.Second)
}

func (s *batchSuite) TestRunStopsOnCancelledContext(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{content: "x"}
	runner, err := batch.NewRunner(batch.Config{
		Fetcher:   fetcher,
		Observer:  &recordingObserver{},
		Clock:     testclock.NewClock(time.Time{}),
		OutputDir: c.MkDir(),
	})
	c.Assert(err, jc.ErrorIsNil)

	_, err = runner.Run(ctx, []string{"https://github.com/org/dicts/blob/main/dict.xml"})
	c.Assert(err, gc.ErrorMatches, "context canceled")
	fetcher.CheckCalls(c, nil)
}

func (s *batchSuite) run(c *gc.C, fetcher batch.Fetcher, observer batch.Observer, outputDir string, links []string) (batch.Summary, error) {
	runner, err := batch.NewRunner(batch.Config{
		Fetcher:   fetcher,
		Observer:  observer,
		Clock:     clock.WallClock,
		OutputDir: outputDir,
	})
	c.Assert(err, jc.ErrorIsNil)
	return runner.Run(context.Background(), links)
}

// fakeFetcher writes content to the target path unless the URL has an
// error configured.
type fakeFetcher struct {
	testing.Stub

	content string
	errs    map[string]error
	before  func()
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL *url.URL, targetPath string) (int64, error) {
	f.AddCall("Fetch", rawURL.String(), targetPath)
	if f.before != nil {
		f.before()
	}
	if err, ok := f.errs[rawURL.String()]; ok {
		return 0, err
	}
	if err := os.WriteFile(targetPath, []byte(f.content), 0644); err != nil {
		return 0, err
	}
	return int64(len(f.content)), nil
}

type recordingObserver struct {
	testing.Stub
}

func (o *recordingObserver) Fetching(index, total int, filename string) {
	o.AddCall("Fetching", index, total, filename)
}

func (o *recordingObserver) Fetched(index, total int, filename, path string, size int64) {
	o.AddCall("Fetched", index, total, filename, path, size)
}

func (o *recordingObserver) Failed(index, total int, link string, err error) {
	o.AddCall("Failed", index, total, link)
}

func (o *recordingObserver) Collision(filename string) {
	o.AddCall("Collision", filename)
}

// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package fetcher retrieves raw files over HTTP and writes them to the
// local file system.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("factgraph.fetcher")

// DefaultTimeout bounds a single download request, from dialling the
// server to reading the last byte of the body.
const DefaultTimeout = 30 * time.Second

// HTTPClient defines a type for making the actual request.
type HTTPClient interface {
	// Do performs the *http.Request and returns a *http.Response or an
	// error if it fails to construct the transport.
	Do(*http.Request) (*http.Response, error)
}

// DefaultHTTPClient creates a HTTPClient that aborts any request taking
// longer than the given timeout.
func DefaultHTTPClient(timeout time.Duration) HTTPClient {
	return &http.Client{
		Timeout: timeout,
	}
}

// FileSystem defines a file system for modifying files on a users system.
type FileSystem interface {
	// Create creates or truncates the named file.
	Create(name string) (*os.File, error)
}

type fileSystem struct{}

// Create creates or truncates the named file.
func (fileSystem) Create(name string) (*os.File, error) {
	return os.Create(name)
}

// DefaultFileSystem returns the default file system.
func DefaultFileSystem() FileSystem {
	return fileSystem{}
}

// Client downloads the file behind a raw URL and writes it to disk.
type Client struct {
	httpClient HTTPClient
	fileSystem FileSystem
}

// NewClient creates a Client for fetching raw files.
func NewClient(httpClient HTTPClient, fileSystem FileSystem) *Client {
	return &Client{
		httpClient: httpClient,
		fileSystem: fileSystem,
	}
}

// Fetch retrieves the file at the given URL and writes it to targetPath,
// returning the number of bytes written. The target file is only created
// once the server has responded with a success status, so a failed fetch
// never truncates the file left behind by an earlier run.
func (c *Client) Fetch(ctx context.Context, rawURL *url.URL, targetPath string) (int64, error) {
	logger.Debugf("fetching %q to %q", rawURL, targetPath)

	resp, err := c.fetchFromURL(ctx, rawURL)
	if err != nil {
		return 0, errors.Annotatef(err, "cannot retrieve %q", rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	f, err := c.fileSystem.Create(targetPath)
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer func() { _ = f.Close() }()

	size, err := io.Copy(f, resp.Body)
	if err != nil {
		return 0, errors.Annotatef(err, "cannot write %q", targetPath)
	}

	logger.Debugf("fetched %d bytes from %q", size, rawURL)
	return size, nil
}

func (c *Client) fetchFromURL(ctx context.Context, rawURL *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL.String(), nil)
	if err != nil {
		return nil, errors.Annotate(err, "can not make new request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	// Bad status, ensure the body is drained and closed.
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewNotFound(nil, "file not found")
	}
	return nil, errors.Errorf("unable to fetch file (server responded with status: %s)", resp.Status)
}

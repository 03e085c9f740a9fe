// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package linksfile reads the dictionary link list, a plain text file
// with one URL per list entry in the form "- <url>". Lines without the
// list marker are ignored, which lets the file carry headings and notes
// alongside the links.
package linksfile

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/juju/errors"
)

const marker = "- "

// Read parses the links file at the given path and returns the URLs in
// file order.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() { _ = f.Close() }()

	links, err := Parse(f)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing %q", path)
	}
	return links, nil
}

// Parse extracts the URLs from the link list. Each line is trimmed of
// surrounding whitespace and must start with the "- " list marker to be
// considered. Anything from the first "#" onwards is dropped, so line
// anchors and trailing comments never reach the downloader. Entries left
// empty by that are skipped. Order is preserved.
func Parse(r io.Reader) ([]string, error) {
	var links []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, marker) {
			continue
		}
		link := strings.TrimPrefix(line, marker)
		if i := strings.Index(link, "#"); i >= 0 {
			link = link[:i]
		}
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		links = append(links, link)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return links, nil
}

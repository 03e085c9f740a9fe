// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package bloburl converts GitHub web view ("blob") URLs into their raw
// content equivalents and derives target file names from them.
package bloburl

import (
	"strings"

	"github.com/juju/errors"
)

const (
	blobSegment = "/blob/"
	rawSegment  = "/raw/"
)

// Raw replaces the "/blob/" path segment of a GitHub web view URL with
// "/raw/", yielding the address of the file content itself. The URL is
// otherwise unchanged. The returned bool reports whether a substitution
// took place, so callers can flag URLs of an unexpected shape.
func Raw(blobURL string) (string, bool) {
	if !strings.Contains(blobURL, blobSegment) {
		return blobURL, false
	}
	return strings.ReplaceAll(blobURL, blobSegment, rawSegment), true
}

// Filename derives the name of the file to write from the last path
// segment of the URL, the part after the final slash. Any fragment is
// stripped first so that line anchors never leak into file names.
func Filename(rawURL string) (string, error) {
	trimmed := rawURL
	if i := strings.Index(trimmed, "#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	name := trimmed
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		name = trimmed[i+1:]
	}
	if name == "" {
		return "", errors.NotValidf("file name in %q", rawURL)
	}
	return name, nil
}

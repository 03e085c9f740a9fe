// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package version contains versioning information for the fact-graph
// tools.
package version

import (
	semversion "github.com/juju/version/v2"
)

// The version of the current release of the dictionary tooling. Bump
// this on release.
const version = "1.0.0"

// Current is the version of the running binary.
var Current = semversion.MustParse(version)

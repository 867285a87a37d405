// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package buildinfo exposes compile-time metadata shared across the server.
package buildinfo

import "fmt"

// Service is the name reported by the API and the CLI.
const Service = "ANISA"

// The following variables are overridden via ldflags during release builds.
var (
	// Version is the semantic version or git describe output of the binary.
	Version = "dev"

	// Commit is the git commit SHA baked into the binary.
	Commit = "none"

	// BuildDate records when the binary was built in UTC.
	BuildDate = "unknown"
)

// String is the one-line banner printed at startup.
func String() string {
	return fmt.Sprintf("%s Version: %s, Commit: %s, BuiltAt: %s", Service, Version, Commit, BuildDate)
}

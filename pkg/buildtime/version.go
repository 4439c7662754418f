// Package buildtime holds values fixed when mkpipe is built.
//
// Files VERSION and revision are replaced by the release build.
package buildtime

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed VERSION
var version string

//go:embed revision
var revision string

// Build identifies a build of mkpipe.
type Build struct {
	Version  string `json:"version"`
	Revision string `json:"revision"`
}

// Current is the build running now.
func Current() Build {
	return Build{
		Version:  strings.TrimSpace(version),
		Revision: strings.TrimSpace(revision),
	}
}

func (b Build) String() string {
	return fmt.Sprintf("mkpipe %s (commit: %s)", b.Version, b.Revision)
}

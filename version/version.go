// Package version holds build metadata injected at link time.
package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags at build time, e.g.
// -X github.com/jackzampolin/reflow/version.GitRelease=v0.3.0
var (
	// GitRelease is the release tag or branch the binary was built from.
	GitRelease = "dev"

	// GitCommit is the short commit hash.
	GitCommit = "unknown"

	// GitCommitDate is the commit date of GitCommit.
	GitCommitDate = "unknown"
)

// GoInfo describes the Go toolchain and platform the binary was built with.
var GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)

// Package version carries build metadata injected at link time:
//
//	go build -ldflags "-X github.com/gleanlabs/glean/version.GitRelease=..."
package version

import "runtime"

var (
	// GitRelease is the release tag or branch of the build.
	GitRelease = "dev"
	// GitCommit is the commit hash of the build.
	GitCommit = "unknown"
	// GitCommitDate is the commit date of the build.
	GitCommitDate = "unknown"
	// GoInfo is the Go toolchain the binary was built with.
	GoInfo = runtime.Version()
)

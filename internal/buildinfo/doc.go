// Package buildinfo reports which storytotest build is running. The Makefile
// stamps Version, Commit and Date through -ldflags -X.
package buildinfo

var (
	// Version is a semantic version or git describe output; "dev" for
	// plain go build.
	Version = "dev"

	// Commit is the short SHA the binary was built from.
	Commit = "unknown"

	// Date is the UTC build time, RFC3339.
	Date = "unknown"
)

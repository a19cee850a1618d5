package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Info is the build information printed by `storytotest version`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns the ldflags values. A dev build installed with `go install`
// reports its module version instead of "dev".
func GetInfo() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Version == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
	}
	return info
}

// String renders info on one line, e.g.
// "storytotest v1.2.0 (commit: a1b2c3d, built: 2026-02-17T10:00:00Z, go1.24.2 linux/amd64)".
func (i Info) String() string {
	return fmt.Sprintf("storytotest v%s (commit: %s, built: %s, %s %s)", i.Version, i.Commit, i.Date, i.GoVersion, i.Platform)
}

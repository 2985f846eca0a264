// Package version exposes build identification for the scribe binaries.
//
// Version and Commit are set at compile time:
//
//	go build -ldflags "-X github.com/kbukum/scribe/version.Version=1.2.0"
//
// When ldflags are absent the package falls back to the VCS stamp Go
// embeds in the binary.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the release tag, "dev" for untagged builds.
	Version = "dev"
	// Commit is the short VCS revision.
	Commit = ""
)

// Info is the resolved build identification.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version"`
	Dirty     bool   `json:"dirty,omitempty"`
}

// Get resolves build identification, preferring ldflags values over the
// embedded VCS stamp.
func Get() Info {
	info := Info{Version: Version, Commit: Commit}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" && len(s.Value) >= 7 {
				info.Commit = s.Value[:7]
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// String renders the short form used by the -version flag.
func (i Info) String() string {
	out := i.Version
	if i.Commit != "" {
		out = fmt.Sprintf("%s-%s", out, i.Commit)
	}
	if i.Dirty {
		out += "-dirty"
	}
	return out
}

// Package version reports the glowbook build, set at link time:
//
//	go build -ldflags "-X github.com/kbukum/glowbook/version.Version=1.4.0" ./cmd/glowbook
package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags. Commit falls back to the VCS stamp of the binary.
var (
	Version = "dev"
	Commit  = ""
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
	GoVersion string `json:"go_version"`
}

// Get reads Info from the link-time variables and the embedded build info.
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
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	if len(info.Commit) > 7 {
		info.Commit = info.Commit[:7]
	}
	return info
}

// String renders the version as "1.4.0-abc1234" with a "-dirty" suffix for modified trees.
func (i Info) String() string {
	s := i.Version
	if i.Commit != "" {
		s = fmt.Sprintf("%s-%s", s, i.Commit)
	}
	if i.Dirty {
		s += "-dirty"
	}
	return s
}

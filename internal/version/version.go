/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries build metadata.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time via ldflags:
//
//	-X github.com/friendsincode/worktime/internal/version.Version=X.Y.Z
//	-X github.com/friendsincode/worktime/internal/version.Commit=abc1234
//	-X github.com/friendsincode/worktime/internal/version.BuildDate=2026-01-01
var (
	Version   = "0.4.0"
	Commit    = ""
	BuildDate = ""
)

// Info is the build description reported by /healthz and the CLI.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Modified  bool   `json:"modified,omitempty"`
}

// Get returns the build info. Commit and date fall back to the VCS stamp
// the Go toolchain embeds when ldflags were not set.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyVCS(&info, bi.Settings)
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	return info
}

func applyVCS(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = shortCommit(s.Value)
			}
		case "vcs.time":
			if info.BuildDate == "" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

func shortCommit(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// String renders the version line printed by the CLI.
func String() string {
	return Get().String()
}

func (i Info) String() string {
	commit := i.Commit
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("worktime %s (commit %s, built %s, %s)", i.Version, commit, i.BuildDate, i.GoVersion)
}

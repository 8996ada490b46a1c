// Copyright 2026 The HRMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package build exposes the metadata stamped into the hrmq binary.
package build

import (
	"bytes"
	"fmt"
	"runtime"
	"runtime/debug"
	"text/tabwriter"
)

const (
	product  = "HRMQ"
	protocol = "MQTT 3.1.1"
)

// Set with -ldflags "-X github.com/hrsystem/hrmq/internal/build.version=..." and so on.
var (
	version = "0.0.0"
	commit  = ""
	date    = ""
	edition = "OSS"
)

// Info describes the running hrmq binary.
type Info struct {
	Product   string
	Version   string
	Edition   string
	Protocol  string
	Commit    string
	Date      string
	Modified  bool
	Platform  string
	GoVersion string
}

// GetInfo returns the Info of the running binary. The commit and the date fall back to the VCS
// data recorded by the Go toolchain when they were not set at link time.
func GetInfo() Info {
	info := Info{
		Product:   product,
		Version:   version,
		Edition:   edition,
		Protocol:  protocol,
		Commit:    commit,
		Date:      date,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion: runtime.Version(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info.fillFromVCS(bi.Settings)
	}
	return info
}

func (i *Info) fillFromVCS(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if i.Commit == "" {
				i.Commit = s.Value
			}
		case "vcs.time":
			if i.Date == "" {
				i.Date = s.Value
			}
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}

	if i.Commit == "" {
		i.Commit = "unknown"
	}
	if i.Date == "" {
		i.Date = "unknown"
	}
}

// ShortVersion returns the edition and the version, as printed by --version.
func (i Info) ShortVersion() string {
	return fmt.Sprintf("%s %s\n", i.Edition, i.Version)
}

// LongVersion returns the build summary printed by the version command.
func (i Info) LongVersion() string {
	commit := i.Commit
	if i.Modified {
		commit += " (modified)"
	}

	rows := [][2]string{
		{"Product", i.Product},
		{"Version", i.Version},
		{"Edition", i.Edition},
		{"Protocol", i.Protocol},
		{"Commit", commit},
		{"Built", i.Date},
		{"Platform", i.Platform},
		{"Go version", i.GoVersion},
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	_ = tw.Flush()

	return buf.String()
}

package build

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	_ "embed"
)

//go:embed VERSION
var rawVersion []byte

// Set with -ldflags "-X github.com/looplj/todohub/internal/build.Version=...".
var (
	Version   = ""
	Commit    = ""
	BuildTime = ""
)

var startTime = time.Now()

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Uptime    string `json:"uptime"`
}

// GetBuildInfo falls back to the embedded VERSION file and the vcs settings recorded by the go tool
// when the linker flags were not set.
func GetBuildInfo() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Uptime:    time.Since(startTime).Truncate(time.Second).String(),
	}

	if info.Version == "" {
		info.Version = strings.TrimSpace(string(rawVersion))
	}

	if info.Commit == "" || info.BuildTime == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch {
				case s.Key == "vcs.revision" && info.Commit == "":
					info.Commit = s.Value
				case s.Key == "vcs.time" && info.BuildTime == "":
					info.BuildTime = s.Value
				}
			}
		}
	}

	return info
}

func (i Info) String() string {
	lines := []string{"Version: " + i.Version}

	if i.Commit != "" {
		lines = append(lines, "Commit: "+i.Commit)
	}

	if i.BuildTime != "" {
		lines = append(lines, "Build Time: "+i.BuildTime)
	}

	lines = append(lines,
		"Go Version: "+i.GoVersion,
		"Platform: "+i.Platform,
		fmt.Sprintf("Uptime: %s", i.Uptime),
	)

	return strings.Join(lines, "\n") + "\n"
}

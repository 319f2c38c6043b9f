package massmail

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Version information for the massmail library.
// These values are injected during build time via ldflags.
// The values below are fallbacks for development builds.
var (
	// Version is the semantic version of the library.
	Version = "dev"

	// GitCommit is the git commit hash when the binary was built.
	GitCommit = "unknown"

	// BuildDate is the date when the binary was built.
	BuildDate = "unknown"
)

// VersionInfo contains detailed version information.
type VersionInfo struct {
	// Version is the semantic version of the library.
	Version string `json:"version"`

	// GitCommit is the git commit hash.
	GitCommit string `json:"git_commit"`

	// BuildDate is the build timestamp.
	BuildDate string `json:"build_date"`

	// GoVersion is the Go version used for building.
	GoVersion string `json:"go_version"`

	// Platform is the target platform (GOOS/GOARCH).
	Platform string `json:"platform"`
}

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}

// GetVersionInfo returns detailed version information. Fields the ldflags
// fallbacks leave unset are recovered from the runtime build info when
// available.
func GetVersionInfo() *VersionInfo {
	info := &VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.GitCommit == "unknown" {
					info.GitCommit = setting.Value
					if len(info.GitCommit) > 12 {
						info.GitCommit = info.GitCommit[:12]
					}
				}
			case "vcs.time":
				if info.BuildDate == "unknown" {
					if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
						info.BuildDate = t.Format("2006-01-02T15:04:05Z")
					}
				}
			case "vcs.modified":
				if setting.Value == "true" && !strings.HasSuffix(info.GitCommit, "-dirty") {
					info.GitCommit += "-dirty"
				}
			}
		}
	}

	return info
}

// String returns a human-readable version string.
func (v *VersionInfo) String() string {
	parts := []string{fmt.Sprintf("Version: %s", v.Version)}

	if v.GitCommit != "unknown" && v.GitCommit != "" {
		parts = append(parts, fmt.Sprintf("Commit: %s", v.GitCommit))
	}

	if v.BuildDate != "unknown" && v.BuildDate != "" {
		parts = append(parts, fmt.Sprintf("Built: %s", v.BuildDate))
	}

	parts = append(parts, fmt.Sprintf("Go: %s", v.GoVersion))
	parts = append(parts, fmt.Sprintf("Platform: %s", v.Platform))

	return strings.Join(parts, ", ")
}

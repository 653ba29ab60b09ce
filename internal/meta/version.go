package meta

import (
	"fmt"
	"runtime"
)

// Info describes the build of an mpdmux binary. Most of it is set by the Go
// linker, see the vars below.
type Info struct {
	Version   string
	Build     string
	BuildTime string
	Platform  string
	GoVersion string
}

// These will be filled in using the linker -X flag
var (
	// Version as an arbitrary string
	Version = "dev"

	// Build is the Git sha from when we are building
	Build string

	// BuildTimeUTC is the build time in UTC (year/month/day hour:min:sec)
	BuildTimeUTC string

	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

func GetInfo() Info {
	return Info{
		GoVersion: runtime.Version(),
		Version:   Version,
		Build:     Build,
		BuildTime: BuildTimeUTC,
		Platform:  platform,
	}
}

func (i Info) String() string {
	s := "mpdmux " + i.Version
	if i.Build != "" {
		s += " (" + i.Build + ")"
	}

	return fmt.Sprintf("%s %s %s", s, i.Platform, i.GoVersion)
}

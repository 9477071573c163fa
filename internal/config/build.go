package config

// Build metadata injected by the linker through -ldflags, for example:
//
//	go build -ldflags "-X campuspush/internal/config.version=1.2.3 \
//	    -X campuspush/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X campuspush/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// The defaults below are what local `go run` builds report.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo constructs a BuildInfo from the linker-injected variables.
// LoadConfig calls it to fill Config.Build, and the API logs the result at
// startup.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

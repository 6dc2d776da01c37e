package config

// Release metadata stamped by the deploy pipeline, e.g.
//
//	go build -ldflags "-X skyrisk/internal/config.version=$(git describe --tags) \
//	    -X skyrisk/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X skyrisk/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/api
//
// Unstamped binaries report a development build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the stamped release metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// UserAgent identifies this release to Open-Meteo, whose fair-use policy asks
// clients to be distinguishable.
func (b BuildInfo) UserAgent() string {
	if b.Commit == "" || b.Commit == "none" {
		return "SkyRisk/" + b.Version
	}
	return "SkyRisk/" + b.Version + " (" + b.Commit + ")"
}

// Package version exposes build metadata stamped in via -ldflags.
package version

// Set at build time:
//
//	go build -ldflags "-X github.com/merliyatf/delfin/internal/version.Version=v0.3.0 ..."
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a human-readable one-liner for startup logs.
func Info() string {
	return Version + " (" + Commit + ", built " + Date + ")"
}

// Map returns build metadata for JSON endpoints.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}

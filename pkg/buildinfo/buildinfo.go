// Package buildinfo reports the version stamped into the binary at build time.
package buildinfo

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// ServiceName identifies penf-coref in version output and metric labels.
const ServiceName = "penf-coref"

// These vars are set at build time via ldflags:
// -X github.com/otherjamesbrown/penf-coref/pkg/buildinfo.Version=v0.3.0
// -X github.com/otherjamesbrown/penf-coref/pkg/buildinfo.Commit=4c1d9e2
// -X github.com/otherjamesbrown/penf-coref/pkg/buildinfo.BuildTime=2026-10-01T09:00:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info holds build information for a service.
type Info struct {
	ServiceName string `json:"service_name" yaml:"service_name"`
	Version     string `json:"version" yaml:"version"`
	Commit      string `json:"commit" yaml:"commit"`
	BuildTime   string `json:"build_time" yaml:"build_time"`
	GoVersion   string `json:"go_version" yaml:"go_version"`
	Platform    string `json:"platform" yaml:"platform"`
}

// Get returns build info for the named service.
func Get(serviceName string) Info {
	return Info{
		ServiceName: serviceName,
		Version:     Version,
		Commit:      Commit,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a human-readable one-liner like "v0.3.0 (4c1d9e2, 2026-10-01T09:00:00Z)"
func String() string {
	return Version + " (" + Commit + ", " + BuildTime + ")"
}

// Handler returns an HTTP handler that responds with build info JSON.
func Handler(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Get(serviceName)) // nolint: errcheck
	}
}

// Package version answers the read API's "GET version" contract.
package version

// Name identifies this binary in the version response.
const Name = "sidetree-bitcoin-observer"

// Version is the build version, normally overridden at link time with
// -ldflags "-X github.com/decentralized-identity/sidetree-bitcoin-observer/version.Version=...".
var Version = "0.0.0-dev"

// Info is the shape of the "GET version" response.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Get returns the current version info.
func Get() Info {
	return Info{Name: Name, Version: Version}
}

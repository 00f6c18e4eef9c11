// Package version identifies the server release.
package version

// Release is the server release string, overridable at build time with
// -ldflags "-X github.com/edvin/mapd/internal/version.Release=...".
var Release = "4.0.0-dev"

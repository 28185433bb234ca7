package version

// Set via -ldflags at release build time; dev builds report "dev".
var version = "dev"

// Version returns the version string baked in at build time.
func Version() string {
	return version
}

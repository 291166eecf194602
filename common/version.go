package common

// PackageName is the metrics namespace shared by all binaries.
const PackageName = "dataroom"

// Build-time variables, overridden with -ldflags "-X ...".
var (
	// Version is reported in logs and by the gateway status endpoints.
	Version = "dev"

	// DefaultApp is the application identifier clients target unless one is
	// configured explicitly.
	DefaultApp = "data-room"
)

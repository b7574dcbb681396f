package common

// Build metadata, overridden via -ldflags at release time.
var (
	Version = "0.1.0"
	Build   = "dev"
)

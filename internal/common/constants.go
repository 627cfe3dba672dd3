package common

import "time"

const (
	// Compression constants
	DefaultCompressionLevel = "medium"
	MaxConcurrencyLimit     = 8

	// Request budget; the native engine stops just short of it so temp files
	// are cleaned up before the caller gives up.
	DefaultRequestTimeout = 60 * time.Second
	DefaultNativeTimeout  = 55 * time.Second
	DefaultProbeTimeout   = 3 * time.Second

	// Remote fetch
	DefaultFetchAttempts = 4
	DefaultFetchDelay    = 1200 * time.Millisecond

	DefaultMaxUploadBytes = 50 << 20

	// File operation constants
	DefaultFilePermissions = 0755

	CompressedSuffix = "_compressed"
)

package domain

const (
	// MaxLocalNameLength bounds every registered capability name. Sanitized
	// names are truncated to this length, including the server-id prefix in
	// unscoped mode.
	MaxLocalNameLength = 64

	// MaxErrorDetailLength bounds the upstream detail string embedded in a
	// translated tool error.
	MaxErrorDetailLength = 1000

	DefaultToolTimeoutSeconds = 60
	DefaultMaxStackBytes      = 512 * 1024 * 1024
)

package ir

// Version constants for the wire format and the tool.
const (
	// WireVersion is the canonical record format version.
	WireVersion = "1"

	// ToolVersion is the galactic release version.
	ToolVersion = "0.1.0"
)

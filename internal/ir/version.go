package ir

// Version constants for the IR encoding and the engine.
const (
	// IRVersion is the IR interchange schema version.
	IRVersion = "1"

	// EngineVersion is the xform engine version.
	EngineVersion = "0.1.0"
)

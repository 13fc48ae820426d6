package ir

// Version constants for the document schema and engine.
const (
	// IRVersion is the graph document schema version. It is part of every
	// DocumentHash.
	IRVersion = "1"

	// EngineVersion is the mfnet engine version.
	EngineVersion = "0.1.0"
)

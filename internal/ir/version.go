package ir

// Version constants for the journal schema and engine.
const (
	// JournalVersion is the version stamped on every journaled session.
	JournalVersion = "1"

	// EngineVersion is the toggle-layer engine version.
	EngineVersion = "0.1.0"
)

package ir

// Version constants for the library file and the daemon protocol.
const (
	// LibraryVersion is the on-disk library schema version.
	LibraryVersion = 1

	// ProtocolVersion is negotiated by clients before any other call.
	ProtocolVersion uint32 = 0x0200

	// AppVersion is the Spark release version.
	AppVersion = "3.0.0"
)

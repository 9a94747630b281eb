// Package client is the peer side of the Spark sync protocol.
//
// Dial connects to the daemon's unix socket and performs the version
// handshake; a mismatch fails with *VersionMismatchError and closes the
// connection. Library returns a RemoteLibrary whose methods mirror the local
// Library Store. Every remote call takes a context, may fail with
// *ConnectionError, and otherwise returns the same error values a local call
// would.
//
// A Client is safe for concurrent use. Responses are matched to requests by
// ID, so calls from several goroutines may be in flight at once.
package client

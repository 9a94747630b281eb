// Package rpc defines the wire schema shared by the Spark daemon and its
// clients.
//
// Messages are CBOR maps carried as binary websocket frames. A Request names
// a Method and carries its parameters as a nested CBOR value; the Response
// echoes the request ID and holds either a Result or an Error. A Request
// without an ID is fire-and-forget: the daemon processes it and sends nothing
// back.
//
// Every Library Store operation has its own method, so latency and failure
// are explicit at each call site. Error codes map back to the local error
// values on the client side, so errors.Is(err, entryset.ErrConflict) holds
// across the process boundary.
package rpc

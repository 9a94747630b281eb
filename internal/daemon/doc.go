// Package daemon implements the authoritative side of the Spark sync
// protocol.
//
// ARCHITECTURE:
//
// Single-Writer Control Loop:
// The daemon owns the shared Library and mutates it from exactly one
// goroutine. Sessions decode requests and enqueue them; Run dequeues them in
// FIFO order and executes them against the library. This ensures:
//   - No two mutations of the library interleave
//   - Enumeration always sees a state no mutation is touching
//   - A remote mutation is persisted before its reply is sent
//
// Request Flow:
//  1. A client connects to the unix socket and upgrades /rpc to a websocket
//  2. The session decodes each binary frame into an rpc.Request
//  3. The request is enqueued with a reply channel (none if it has no ID)
//  4. Run executes the handler; mutating methods synchronize the library
//  5. The session writes the rpc.Response back on the websocket
//
// Shutdown is fire-and-forget: the request closes the queue, the loop drains
// what is already queued, and Run tears down the server.
//
// The loop also serves the dispatch query TriggersForApplication from an LRU
// cache that every successful mutation purges. Request counts, latency,
// sessions and cache hits are exported on /metrics.
package daemon

// Package transport implements the TransportHandle: one bidirectional,
// event-based WebSocket connection.
//
// Every frame is a JSON envelope:
//
//	{"event": "newMessage", "data": {...}}
//
// A Client is single-use. Reconnection is the caller's job: it builds a new
// Client per attempt, the same way the connection manager replaces a dead
// connection.
package transport

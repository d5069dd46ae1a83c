// Package connection implements the Connection Manager and room sessions.
//
// The Connection Manager:
//   - Owns one multiplexed WebSocket connection per authenticated client
//   - Tracks joined rooms and re-emits joinRoom on every (re)connect
//   - Buffers outgoing messages while disconnected and flushes them in order
//   - Reconnects with a fixed delay and a bounded attempt budget, then keeps
//     retrying quietly in the background
//   - Decodes inbound frames and fans them out to registered handlers
//
// A Manager is created once by the application root and passed by reference.
package connection

// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - WebSocket connection state, connects, drops by reason and failed dials
//   - Inbound event rates by kind
//   - Pending message queue depth and overflow counts
//   - Offline operation queue depth, sync passes and last sync time
//   - Environment connectivity as seen by the connection monitor
package metrics

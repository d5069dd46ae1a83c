// Package model defines shared data types used across the realtime layer.
//
// Conventions:
//   - Room IDs are opaque strings assigned by the server
//   - Client-generated IDs (outgoing messages, offline operations) are uuid.UUID
//   - Timestamps are time.Time in UTC; wire timestamps are RFC 3339
package model

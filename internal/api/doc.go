// Package api provides the REST client used by the realtime layer.
//
// Endpoints:
//   - GET  /api/chat/rooms/{roomID}/messages  message history seeding a room
//   - HEAD /api/ping                          connectivity probe
//   - POST /api/offline/operations            replay of a queued offline write
//
// Replays carry an Idempotency-Key header set to the operation ID so the
// server can discard duplicates from at-least-once delivery.
package api

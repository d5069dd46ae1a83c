// Package realtime tracks coarse online/offline status and owns the durable
// queue of application writes made while offline.
//
// Operations are appended with QueueOfflineOperation and persisted under the
// "_offline_queue" key. When the status moves from disconnected to
// connected, the queue is replayed in order through a Replayer. Concurrent
// sync requests share a single pass. Failed operations stay queued for the
// next pass, so replay targets must tolerate duplicates.
package realtime

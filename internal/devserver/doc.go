// Package devserver is a small in-process chat backend for local runs and
// end-to-end tests.
//
// It speaks the same {"event","data"} websocket envelope as the production
// server (joinRoom, leaveRoom, sendMessage, typing in; newMessage,
// messageHistory, activeUsers, typing, error out) and serves the REST
// endpoints the client uses: room history, the ping probe and offline
// operation replay. State is kept in memory.
package devserver

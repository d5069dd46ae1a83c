// Package event defines the closed set of realtime events, decodes inbound
// frames into typed values, and fans events out to registered handlers.
//
// Handlers are additive: registering the same function twice yields two
// subscriptions and two invocations per event. Each handler runs in
// isolation; a panic is recovered and logged and the remaining handlers
// still run.
package event

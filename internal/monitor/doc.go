// Package monitor implements the ConnectionMonitor: it tracks whether the
// environment has network connectivity, independent of transport health,
// and fans transitions out to listeners.
//
// The monitor never reconnects anything itself. Online state comes from
// explicit Set calls (an OS or UI signal) and from a periodic probe of the
// backend ping endpoint.
package monitor

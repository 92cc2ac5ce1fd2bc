// Package session wires one tracked product together: the store, the
// scrape client, the poller, and the optional archive mirror. The
// interactive surface only talks to a Session (Start/Stop/Query/Product).
package session

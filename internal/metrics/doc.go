// Package metrics defines the Prometheus metrics exposed by the music
// server: HTTP traffic, catalog query and transaction timing, scan
// pipeline progress, filesystem watcher activity, and search index
// rebuilds.
package metrics

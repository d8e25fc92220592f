// Package handlers implements the JSON API: library browsing, search,
// shuffle, playlists and likes, album covers, indexing status, and the
// reindex trigger.
package handlers

// Package catalog provides SQLite-backed storage for the music library.
//
// It handles storage and retrieval of:
//   - Indexed entities (artists, albums, tracks)
//   - The file fingerprint ledger used for change detection
//   - Playlists and likes
//   - The singleton indexing status record and generation counter
//
// The database uses WAL mode so readers stay on a stable snapshot while
// scan batches commit, and includes automatic schema initialization.
package catalog

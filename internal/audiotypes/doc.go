// Package audiotypes classifies files by extension and maps codec hints
// to MIME types for the streaming handoff.
package audiotypes

// Package logging provides leveled logging for the music server.
//
// The log level is controlled by the LOG_LEVEL environment variable
// (debug, info, warn, error) or by setting DEBUG=true. The default
// level is info.
package logging

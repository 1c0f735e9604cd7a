// Package logging provides opt-in file-based logging with rotation for peopledex.
// When the --debug flag is set, comprehensive logs are written to ~/.peopledex/logs/
// for debugging and troubleshooting.
//
// By default (without --debug), logging is minimal and goes to stderr only,
// keeping normal command output clean.
package logging

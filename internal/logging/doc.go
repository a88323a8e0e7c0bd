// Package logging provides concrete implementations of the widload.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: writes prefixed lines to stderr (or any io.Writer) under a mutex
//   - NullLogger: discards all messages
package logging

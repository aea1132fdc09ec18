// Package workspace manages the set of open workspace filesystems:
// lazy restore on open, flush on close, durable teardown, and the
// change-event bus feeding UI streams.
package workspace

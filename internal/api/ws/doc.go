// Package ws pushes filesystem change events to browser clients over
// WebSocket, one subscription per workspace.
package ws

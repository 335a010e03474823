// Package server implements the realtime core of Scrawl: authenticated
// WebSocket sessions, room membership, room-scoped broadcast, and the
// bridge that persists accepted chat messages.
//
// The implementation is organized into specialized files for configuration,
// the hub event loop, sessions, the registry, the persistence bridge, and
// HTTP handlers to keep the codebase maintainable and testable as the
// project grows.
package server

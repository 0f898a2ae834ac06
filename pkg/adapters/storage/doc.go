// Package storage provides run-state storage implementations.
//
// Implementations:
//   - redis: JSON snapshots with TTL
//   - memory: In-memory for embedding and testing
package storage

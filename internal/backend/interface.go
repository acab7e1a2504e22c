// Package backend builds the data backend selected by configuration.
package backend

import (
	"context"

	"finboard/internal/ports"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// Result is a ready backend and its optional cleanup.
type Result struct {
	Type    Type
	Backend ports.Backend
	Cleanup CleanupFunc
}

// Close runs the cleanup, if any.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Local reports whether the backend stores data in-process, so that it can
// be read without a user's upstream token.
func (r *Result) Local() bool {
	return r.Type != RemoteBackend
}

// Factory creates backends from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, cfg Config) (*Result, error)
}

// Type names a backend implementation.
type Type string

const (
	MemoryBackend Type = "memory"
	SQLiteBackend Type = "sqlite"
	RemoteBackend Type = "remote"
)

func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, RemoteBackend:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// Types returns every valid backend type.
func Types() []Type {
	return []Type{MemoryBackend, SQLiteBackend, RemoteBackend}
}

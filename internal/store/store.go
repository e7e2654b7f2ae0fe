// Package store is the aggregate document store: one wide document per
// project, addressed by table and key, mutated by partial merge-updates at
// dotted paths. Three drivers share the contract: DynamoDB (the production
// layout), Postgres JSONB, and an in-memory driver for tests and local runs.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Document is the raw nested map a driver returns. Projection keeps the
// nesting of the requested paths.
type Document = map[string]any

// Key identifies a document by its key attributes, e.g.
// {projectId, customerId} for project aggregates or {itemId} for workflow
// records.
type Key map[string]string

var (
	// ErrNotFound reports an absent document key.
	ErrNotFound = errors.New("document not found")
	// ErrValidation reports a malformed operation, usually an empty or
	// unusable update expression.
	ErrValidation = errors.New("invalid store expression")
)

// Store is the contract every driver implements.
//
// Update carries no precondition or version check: concurrent updates to
// different fields of the same document both land (last-write-wins per
// field), and concurrent updates to the same field race undetected. That is
// the observed contract of the system, not an oversight here.
type Store interface {
	// Get reads the document, strongly consistent, projected to the given
	// dotted paths (nil paths reads the whole document). Paths that do not
	// resolve are simply absent from the result.
	Get(ctx context.Context, table string, key Key, paths []string) (Document, error)

	// Put inserts or replaces a whole document.
	Put(ctx context.Context, table string, key Key, doc Document) error

	// Update applies a partial write: set values at dotted paths, creating
	// intermediate maps as needed, and remove the listed paths. An update
	// with nothing to do returns ErrValidation. A missing key is created
	// from the set paths.
	Update(ctx context.Context, table string, key Key, set map[string]any, remove []string) error

	// Query returns all documents whose top-level index attribute equals
	// value, projected like Get.
	Query(ctx context.Context, table, index, value string, paths []string) ([]Document, error)
}

// canonical renders a key in a stable single-string form, used by the memory
// and Postgres drivers as the physical row key.
func (k Key) canonical() string {
	names := make([]string, 0, len(k))
	for name := range k {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+k[name])
	}
	return strings.Join(parts, "|")
}

// Package store exposes the document store the Matchpoint engine runs on:
// point reads and writes, filtered queries, atomic numeric increments, and
// optimistic transactions that retry automatically on write conflict. Two
// implementations exist: DynamoStore for production and MemoryStore for
// deterministic tests.
package store

import (
	"context"
	"errors"
)

// Document is a flattened record as stored in a collection.
type Document = map[string]interface{}

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: document not found")

	// ErrConflict is returned when a transaction keeps losing the
	// optimistic-concurrency race after all retries.
	ErrConflict = errors.New("store: transaction conflict")
)

// Filter restricts a Query. Op is one of "==", "<=", ">=".
type Filter struct {
	Field string
	Op    string
	Value interface{}
}

// KeyedDocument pairs a document with its id, for query results.
type KeyedDocument struct {
	ID  string
	Doc Document
}

// Txn is the transactional view handed to a RunTransaction closure. Writes
// are buffered and applied atomically at commit; Get inside the transaction
// observes the closure's own buffered writes. A nil field value passed to
// Update removes that field.
type Txn interface {
	Get(collection, id string) (Document, error)
	Set(collection, id string, doc Document)
	Update(collection, id string, fields Document)
	Delete(collection, id string)
}

// Store is the persistence contract for all Matchpoint state.
type Store interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Set writes a document. With merge, existing fields not present in doc
	// are kept; otherwise the document is replaced.
	Set(ctx context.Context, collection, id string, doc Document, merge bool) error

	// Update mutates fields of an existing document; ErrNotFound if absent.
	// A nil field value removes the field.
	Update(ctx context.Context, collection, id string, fields Document) error

	// Delete removes a document; deleting an absent document is a no-op.
	Delete(ctx context.Context, collection, id string) error

	// Query returns up to limit documents matching every filter.
	Query(ctx context.Context, collection string, filters []Filter, limit int) ([]KeyedDocument, error)

	// RunTransaction runs fn against a transactional view and commits its
	// buffered writes atomically. On write conflict the whole closure is
	// retried; after too many attempts ErrConflict is returned. Any other
	// error from fn aborts the transaction and is returned unchanged.
	RunTransaction(ctx context.Context, fn func(tx Txn) error) error

	// AtomicIncrement adds delta to a numeric field, creating the document
	// or field as needed.
	AtomicIncrement(ctx context.Context, collection, id, field string, delta int) error
}

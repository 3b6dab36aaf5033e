package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// maxTxnAttempts bounds optimistic transaction retries before giving up
// with ErrConflict.
const maxTxnAttempts = 5

type entry struct {
	doc     Document
	version uint64
}

// MemoryStore is an in-memory Store with per-document versioning. It is safe
// for concurrent use and implements the same optimistic
// read-check-write-retry transaction semantics as the DynamoDB backend,
// which makes it the fake of choice for tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]*entry)}
}

func (s *MemoryStore) coll(name string) map[string]*entry {
	c, ok := s.data[name]
	if !ok {
		c = make(map[string]*entry)
		s.data[name] = c
	}
	return c
}

// Get returns a copy of the stored document.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(e.doc), nil
}

// Set writes a document, replacing or merging into any existing one.
func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc Document, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applySet(collection, id, doc, merge)
	return nil
}

// Update mutates fields of an existing document.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyUpdate(collection, id, fields)
}

// Delete removes a document if present.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.coll(collection), id)
	return nil
}

// Query scans the collection and returns up to limit matching documents.
func (s *MemoryStore) Query(ctx context.Context, collection string, filters []Filter, limit int) ([]KeyedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []KeyedDocument
	for id, e := range s.data[collection] {
		if !matchesFilters(e.doc, filters) {
			continue
		}
		out = append(out, KeyedDocument{ID: id, Doc: copyDocument(e.doc)})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// AtomicIncrement adds delta to a numeric field under the store lock.
func (s *MemoryStore) AtomicIncrement(ctx context.Context, collection, id, field string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	e, ok := c[id]
	if !ok {
		e = &entry{doc: Document{}}
		c[id] = e
	}
	current, _ := toFloat(e.doc[field])
	e.doc[field] = int(current) + delta
	e.version++
	return nil
}

// RunTransaction retries fn until its buffered writes commit without a
// version conflict.
func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Txn) error) error {
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memTxn{store: s, reads: make(map[string]uint64)}
		if err := fn(tx); err != nil {
			return err
		}

		conflict, err := s.commit(tx)
		if err != nil {
			return err
		}
		if !conflict {
			return nil
		}
	}
	return ErrConflict
}

const (
	opSet = iota
	opUpdate
	opDelete
)

type txnOp struct {
	kind       int
	collection string
	id         string
	fields     Document
}

type memTxn struct {
	store *MemoryStore
	reads map[string]uint64
	ops   []txnOp
}

func txnKey(collection, id string) string {
	return collection + "\x00" + id
}

// Get reads through the store, observing this transaction's own buffered
// writes, and records the base version for commit-time conflict detection.
func (tx *memTxn) Get(collection, id string) (Document, error) {
	key := txnKey(collection, id)

	tx.store.mu.RLock()
	var base Document
	var version uint64
	if e, ok := tx.store.data[collection][id]; ok {
		base = copyDocument(e.doc)
		version = e.version
	}
	tx.store.mu.RUnlock()

	if _, seen := tx.reads[key]; !seen {
		tx.reads[key] = version
	}

	// Overlay buffered writes so the closure reads its own mutations.
	for _, op := range tx.ops {
		if op.collection != collection || op.id != id {
			continue
		}
		switch op.kind {
		case opSet:
			base = applyFields(Document{}, op.fields)
		case opUpdate:
			if base != nil {
				base = applyFields(base, op.fields)
			}
		case opDelete:
			base = nil
		}
	}

	if base == nil {
		return nil, ErrNotFound
	}
	return base, nil
}

func (tx *memTxn) Set(collection, id string, doc Document) {
	tx.ops = append(tx.ops, txnOp{kind: opSet, collection: collection, id: id, fields: copyDocument(doc)})
}

func (tx *memTxn) Update(collection, id string, fields Document) {
	tx.ops = append(tx.ops, txnOp{kind: opUpdate, collection: collection, id: id, fields: copyDocument(fields)})
}

func (tx *memTxn) Delete(collection, id string) {
	tx.ops = append(tx.ops, txnOp{kind: opDelete, collection: collection, id: id})
}

// commit validates every recorded read version and applies the buffered
// writes. It reports conflict=true when a concurrent writer moved one of the
// read documents, in which case the caller retries the closure.
func (s *MemoryStore) commit(tx *memTxn) (conflict bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, version := range tx.reads {
		parts := strings.SplitN(key, "\x00", 2)
		var current uint64
		if e, ok := s.data[parts[0]][parts[1]]; ok {
			current = e.version
		}
		if current != version {
			return true, nil
		}
	}

	for _, op := range tx.ops {
		switch op.kind {
		case opSet:
			s.applySet(op.collection, op.id, op.fields, false)
		case opUpdate:
			if err := s.applyUpdate(op.collection, op.id, op.fields); err != nil {
				return false, err
			}
		case opDelete:
			delete(s.coll(op.collection), op.id)
		}
	}
	return false, nil
}

// applySet writes under the held lock.
func (s *MemoryStore) applySet(collection, id string, doc Document, merge bool) {
	c := s.coll(collection)
	e, ok := c[id]
	if !ok {
		e = &entry{doc: Document{}}
		c[id] = e
	}
	if merge {
		e.doc = applyFields(e.doc, doc)
	} else {
		e.doc = applyFields(Document{}, doc)
	}
	e.version++
}

// applyUpdate mutates under the held lock; ErrNotFound when absent.
func (s *MemoryStore) applyUpdate(collection, id string, fields Document) error {
	e, ok := s.data[collection][id]
	if !ok {
		return ErrNotFound
	}
	e.doc = applyFields(e.doc, fields)
	e.version++
	return nil
}

// applyFields merges fields into base; nil values remove the field.
func applyFields(base, fields Document) Document {
	out := copyDocument(base)
	for k, v := range fields {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = copyValue(v)
	}
	return out
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Document:
		return copyDocument(t)
	case []string:
		return append([]string(nil), t...)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

func matchesFilters(doc Document, filters []Filter) bool {
	for _, f := range filters {
		cmp, ok := compareValues(doc[f.Field], f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case "==":
			if cmp != 0 {
				return false
			}
		case "<=":
			if cmp > 0 {
				return false
			}
		case ">=":
			if cmp < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders two document values of compatible types.
func compareValues(a, b interface{}) (int, bool) {
	if at, ok := asTime(a); ok {
		bt, ok := asTime(b)
		if !ok {
			return 0, false
		}
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		}
		return 0, true
	}

	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok || av != bv {
			return 1, ok
		}
		return 0, true
	}
	return 0, false
}

func asTime(v interface{}) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

// Package store defines the remote document store contract the sync layer
// is built on: string-keyed JSON documents grouped into collections, partial
// updates with dotted nested-field paths and array set operations, equality
// and array-contains queries, and live snapshot subscriptions.
package store

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is the sentinel returned for absent documents.
var ErrNotFound = errors.New("document not found")

// Document is the schemaless representation of a record at the store edge.
// Typed encode/decode happens in the repositories; documents never cross
// into business logic.
type Document map[string]any

// ArrayUnion adds values to an array field without duplicating existing
// entries (set-union semantics).
type ArrayUnion struct {
	Values []any
}

// ArrayRemove removes values from an array field (set-difference semantics).
type ArrayRemove struct {
	Values []any
}

// FilterOp is a query predicate operator.
type FilterOp string

const (
	OpEqual         FilterOp = "=="
	OpArrayContains FilterOp = "array-contains"
)

// Filter is a single query predicate on a document field.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Order sorts query results by a field.
type Order struct {
	Field string
	Desc  bool
}

// Query selects documents from a collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    *Order
}

// Store is the document store consumed by the repositories.
//
// Subscribe returns a channel that first delivers the current result set and
// then re-delivers the full current result set after every mutation in the
// collection. The subscription ends when ctx is cancelled; resubscribing
// yields a fresh snapshot, not a continuation.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, doc Document) error
	// Create writes the document only if the id is absent. It reports
	// whether the write happened, enabling idempotent upsert-by-key.
	Create(ctx context.Context, collection, id string, doc Document) (bool, error)
	// Update applies a partial, non-destructive merge. Field keys may use
	// dotted paths ("participant_summaries.u1") and values may be
	// ArrayUnion/ArrayRemove operators.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Transform runs an atomic read-modify-write. fn receives the current
	// document and returns the replacement; returning nil means no write.
	Transform(ctx context.Context, collection, id string, fn func(Document) (Document, error)) (Document, error)
	Delete(ctx context.Context, collection, id string) error
	Find(ctx context.Context, q Query) ([]Document, error)
	Subscribe(ctx context.Context, q Query) (<-chan []Document, error)
}

// ApplyFields merges a partial update into a document, resolving dotted
// paths and array operators. The input document is mutated in place.
func ApplyFields(doc Document, fields map[string]any) {
	for path, value := range fields {
		parts := strings.Split(path, ".")
		target := map[string]any(doc)
		for _, part := range parts[:len(parts)-1] {
			next, ok := target[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				target[part] = next
			}
			target = next
		}
		leaf := parts[len(parts)-1]

		switch op := value.(type) {
		case ArrayUnion:
			target[leaf] = unionValues(toSlice(target[leaf]), op.Values)
		case ArrayRemove:
			target[leaf] = removeValues(toSlice(target[leaf]), op.Values)
		default:
			target[leaf] = value
		}
	}
}

// Matches reports whether the document satisfies every filter of the query.
func Matches(doc Document, q Query) bool {
	for _, f := range q.Filters {
		fieldValue, ok := lookupPath(doc, f.Field)
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if !valuesEqual(fieldValue, f.Value) {
				return false
			}
		case OpArrayContains:
			found := false
			for _, item := range toSlice(fieldValue) {
				if valuesEqual(item, f.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// SortDocuments orders documents by the query's order clause, if any.
func SortDocuments(docs []Document, q Query) {
	if q.OrderBy == nil {
		return
	}
	field, desc := q.OrderBy.Field, q.OrderBy.Desc
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := lookupPath(docs[i], field)
		b, _ := lookupPath(docs[j], field)
		c := compareValues(a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func lookupPath(doc Document, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = map[string]any(doc)
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func toSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

func unionValues(existing []any, add []any) []any {
	out := append([]any(nil), existing...)
	for _, v := range add {
		if !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func removeValues(existing []any, remove []any) []any {
	out := make([]any, 0, len(existing))
	for _, v := range existing {
		if !containsValue(remove, v) {
			out = append(out, v)
		}
	}
	return out
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if compareValues(a, b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders JSON-decoded values: numbers numerically, strings
// lexicographically with a timestamp-aware fast path, everything else by
// equality only.
func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		// RFC 3339 strings with differing fractional precision do not
		// order correctly byte-wise, so parse when both sides look
		// like timestamps.
		at, aerr := time.Parse(time.RFC3339Nano, as)
		bt, berr := time.Parse(time.RFC3339Nano, bs)
		if aerr == nil && berr == nil {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
		return strings.Compare(as, bs)
	}

	if reflect.DeepEqual(a, b) {
		return 0
	}
	return -1
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

package Store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrAlreadyExists   = errors.New("document already exists")
	ErrIteratorStopped = errors.New("snapshot iterator stopped")
	ErrInvalidPath     = errors.New("invalid document path")
)

type serverTimestamp struct{}

// ServerTimestamp is replaced by the backend's commit time when written.
var ServerTimestamp = serverTimestamp{}

// Document is a raw, schema-less record as it sits in the store.
type Document struct {
	ID   string
	Path string
	Data map[string]any
}

type Op string

const (
	OpEqual         Op = "=="
	OpNotEqual      Op = "!="
	OpLess          Op = "<"
	OpLessEqual     Op = "<="
	OpGreater       Op = ">"
	OpGreaterEqual  Op = ">="
	OpIn            Op = "in"
	OpArrayContains Op = "array-contains"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

// Query describes a collection read: filters, one sort key and an optional limit.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
	Limit      int
}

func Collection(path string) Query {
	return Query{Collection: strings.Trim(path, "/")}
}

func (q Query) Where(field string, op Op, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) Order(field string, dir Direction) Query {
	q.OrderBy = field
	q.Direction = dir
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Key identifies the descriptor; two queries with equal keys deliver the same result set.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	for _, f := range q.Filters {
		fmt.Fprintf(&b, "|%s %s %v", f.Field, f.Op, normalize(f.Value, nil))
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&b, "|order %s %d", q.OrderBy, q.Direction)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, "|limit %d", q.Limit)
	}
	return b.String()
}

// SnapshotIterator yields the full current result set of a live query on every change.
type SnapshotIterator interface {
	// Next blocks until the next snapshot. It returns ErrIteratorStopped after Stop.
	Next() ([]Document, error)
	Stop()
}

// Tx is the read-modify-write view of the store inside RunTransaction.
// All reads must happen before any write.
type Tx interface {
	Get(path string) (Document, error)
	Create(path string, data map[string]any) error
	Update(path string, fields map[string]any) error
	Delete(path string) error
}

type DocumentStore interface {
	Create(ctx context.Context, collection string, data map[string]any) (string, error)
	CreateWithID(ctx context.Context, path string, data map[string]any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Get(ctx context.Context, path string) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	All(ctx context.Context, collection string) ([]Document, error)
	Snapshots(ctx context.Context, q Query) SnapshotIterator
	ArrayUnion(ctx context.Context, path, field string, values ...any) error
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

func splitDocPath(path string) (string, string, error) {
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, p := range parts {
		if p == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	i := strings.LastIndex(path, "/")
	return path[:i], path[i+1:], nil
}

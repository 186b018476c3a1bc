package Store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore adapts a Firestore client to DocumentStore.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func translateError(err error, path string) error {
	switch status.Code(err) {
	case codes.OK:
		return nil
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}
	return fmt.Errorf("%s: %w", path, err)
}

// toFirestore swaps the store-neutral sentinel for Firestore's own.
func toFirestore(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = firestore.ServerTimestamp
			continue
		}
		out[k] = v
	}
	return out
}

func (s *FirestoreStore) doc(path string) (*firestore.DocumentRef, error) {
	if _, _, err := splitDocPath(path); err != nil {
		return nil, err
	}
	ref := s.client.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return ref, nil
}

func snapshotDocument(collection string, snap *firestore.DocumentSnapshot) Document {
	return Document{
		ID:   snap.Ref.ID,
		Path: collection + "/" + snap.Ref.ID,
		Data: snap.Data(),
	}
}

func (s *FirestoreStore) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref := s.client.Collection(collection).NewDoc()
	if _, err := ref.Create(ctx, toFirestore(data)); err != nil {
		return "", translateError(err, collection)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) CreateWithID(ctx context.Context, path string, data map[string]any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Create(ctx, toFirestore(data))
	return translateError(err, path)
}

func updates(fields map[string]any) []firestore.Update {
	out := make([]firestore.Update, 0, len(fields))
	for k, v := range toFirestore(fields) {
		out = append(out, firestore.Update{Path: k, Value: v})
	}
	return out
}

func (s *FirestoreStore) Update(ctx context.Context, path string, fields map[string]any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Update(ctx, updates(fields))
	return translateError(err, path)
}

func (s *FirestoreStore) Delete(ctx context.Context, path string) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx)
	return translateError(err, path)
}

func (s *FirestoreStore) Get(ctx context.Context, path string) (Document, error) {
	ref, err := s.doc(path)
	if err != nil {
		return Document{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return Document{}, translateError(err, path)
	}
	collection, _, _ := splitDocPath(path)
	return snapshotDocument(collection, snap), nil
}

func (s *FirestoreStore) buildQuery(q Query) firestore.Query {
	query := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, string(f.Op), f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Direction == Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

func collectDocuments(collection string, snaps []*firestore.DocumentSnapshot) []Document {
	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, snapshotDocument(collection, snap))
	}
	return docs
}

func (s *FirestoreStore) Query(ctx context.Context, q Query) ([]Document, error) {
	snaps, err := s.buildQuery(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, translateError(err, q.Collection)
	}
	return collectDocuments(q.Collection, snaps), nil
}

func (s *FirestoreStore) All(ctx context.Context, collection string) ([]Document, error) {
	snaps, err := s.client.Collection(collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, translateError(err, collection)
	}
	return collectDocuments(collection, snaps), nil
}

// ArrayUnion appends server-side, so concurrent appends never lose each other.
func (s *FirestoreStore) ArrayUnion(ctx context.Context, path, field string, values ...any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Update(ctx, []firestore.Update{{Path: field, Value: firestore.ArrayUnion(values...)}})
	return translateError(err, path)
}

func (s *FirestoreStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{store: s, tx: tx})
	})
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreTx struct {
	store *FirestoreStore
	tx    *firestore.Transaction
}

func (t *firestoreTx) Get(path string) (Document, error) {
	ref, err := t.store.doc(path)
	if err != nil {
		return Document{}, err
	}
	snap, err := t.tx.Get(ref)
	if err != nil {
		return Document{}, translateError(err, path)
	}
	collection, _, _ := splitDocPath(path)
	return snapshotDocument(collection, snap), nil
}

func (t *firestoreTx) Create(path string, data map[string]any) error {
	ref, err := t.store.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Create(ref, toFirestore(data))
}

func (t *firestoreTx) Update(path string, fields map[string]any) error {
	ref, err := t.store.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Update(ref, updates(fields))
}

func (t *firestoreTx) Delete(path string) error {
	ref, err := t.store.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Delete(ref)
}

func (s *FirestoreStore) Snapshots(ctx context.Context, q Query) SnapshotIterator {
	ctx, cancel := context.WithCancel(ctx)
	return &firestoreIterator{
		collection: q.Collection,
		it:         s.buildQuery(q).Snapshots(ctx),
		cancel:     cancel,
	}
}

type firestoreIterator struct {
	collection string
	it         *firestore.QuerySnapshotIterator
	cancel     context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

func (f *firestoreIterator) Next() ([]Document, error) {
	f.mu.Lock()
	stopped := f.stopped
	f.mu.Unlock()
	if stopped {
		return nil, ErrIteratorStopped
	}

	qs, err := f.it.Next()
	if err != nil {
		if status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled) {
			return nil, ErrIteratorStopped
		}
		return nil, translateError(err, f.collection)
	}
	snaps, err := qs.Documents.GetAll()
	if err != nil {
		return nil, translateError(err, f.collection)
	}
	return collectDocuments(f.collection, snaps), nil
}

func (f *firestoreIterator) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	f.stopped = true
	f.cancel()
	f.it.Stop()
}

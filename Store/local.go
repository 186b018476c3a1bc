package Store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type documentRecord struct {
	Path       string `gorm:"primaryKey;size:512"`
	Collection string `gorm:"index;size:512"`
	DocID      string `gorm:"size:191"`
	Data       datatypes.JSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (documentRecord) TableName() string {
	return "documents"
}

// LocalStore keeps documents in a single relational table and evaluates queries
// in process. Writes are serialized; every committed write wakes the live
// iterators registered on the written collection.
type LocalStore struct {
	db  *gorm.DB
	now func() time.Time

	mu sync.Mutex

	watchMu  sync.Mutex
	watchers map[string]map[*localIterator]struct{}
}

func NewLocalStore(db *gorm.DB) (*LocalStore, error) {
	if err := db.AutoMigrate(&documentRecord{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return &LocalStore{
		db:       db,
		now:      time.Now,
		watchers: make(map[string]map[*localIterator]struct{}),
	}, nil
}

// SetClock overrides the time source used for server timestamps.
func (s *LocalStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *LocalStore) encode(data map[string]any) (datatypes.JSON, error) {
	now := s.now()
	raw, err := json.Marshal(normalize(data, &now))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func decode(rec documentRecord) (Document, error) {
	data := map[string]any{}
	if len(rec.Data) > 0 {
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			return Document{}, fmt.Errorf("decode %s: %w", rec.Path, err)
		}
	}
	return Document{ID: rec.DocID, Path: rec.Path, Data: data}, nil
}

func getRecord(db *gorm.DB, path string) (documentRecord, error) {
	var rec documentRecord
	err := db.Where("path = ?", path).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return rec, fmt.Errorf("read %s: %w", path, err)
	}
	return rec, nil
}

func (s *LocalStore) createRecord(db *gorm.DB, path string, data map[string]any) error {
	collection, id, err := splitDocPath(path)
	if err != nil {
		return err
	}
	var count int64
	if err := db.Model(&documentRecord{}).Where("path = ?", path).Count(&count).Error; err != nil {
		return fmt.Errorf("check %s: %w", path, err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}
	payload, err := s.encode(data)
	if err != nil {
		return err
	}
	rec := documentRecord{Path: path, Collection: collection, DocID: id, Data: payload}
	if err := db.Create(&rec).Error; err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

func (s *LocalStore) updateRecord(db *gorm.DB, path string, fields map[string]any) error {
	rec, err := getRecord(db, path)
	if err != nil {
		return err
	}
	doc, err := decode(rec)
	if err != nil {
		return err
	}
	for k, v := range fields {
		doc.Data[k] = v
	}
	payload, err := s.encode(doc.Data)
	if err != nil {
		return err
	}
	if err := db.Model(&documentRecord{}).Where("path = ?", path).
		Updates(map[string]any{"data": payload, "updated_at": s.now()}).Error; err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

func deleteRecord(db *gorm.DB, path string) error {
	if err := db.Where("path = ?", path).Delete(&documentRecord{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *LocalStore) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.CreateWithID(ctx, collection+"/"+id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *LocalStore) CreateWithID(ctx context.Context, path string, data map[string]any) error {
	s.mu.Lock()
	err := s.createRecord(s.db.WithContext(ctx), path, data)
	s.mu.Unlock()
	if err == nil {
		s.touch(path)
	}
	return err
}

func (s *LocalStore) Update(ctx context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	err := s.updateRecord(s.db.WithContext(ctx), path, fields)
	s.mu.Unlock()
	if err == nil {
		s.touch(path)
	}
	return err
}

func (s *LocalStore) Delete(ctx context.Context, path string) error {
	if _, _, err := splitDocPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	err := deleteRecord(s.db.WithContext(ctx), path)
	s.mu.Unlock()
	if err == nil {
		s.touch(path)
	}
	return err
}

func (s *LocalStore) Get(ctx context.Context, path string) (Document, error) {
	rec, err := getRecord(s.db.WithContext(ctx), path)
	if err != nil {
		return Document{}, err
	}
	return decode(rec)
}

func (s *LocalStore) All(ctx context.Context, collection string) ([]Document, error) {
	var recs []documentRecord
	if err := s.db.WithContext(ctx).Where("collection = ?", collection).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(recs))
	for _, rec := range recs {
		doc, err := decode(rec)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *LocalStore) Query(ctx context.Context, q Query) ([]Document, error) {
	docs, err := s.All(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	return applyQuery(docs, q), nil
}

// ArrayUnion appends the values that are not already present, atomically.
func (s *LocalStore) ArrayUnion(ctx context.Context, path, field string, values ...any) error {
	s.mu.Lock()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := getRecord(tx, path)
		if err != nil {
			return err
		}
		doc, err := decode(rec)
		if err != nil {
			return err
		}
		items, _ := doc.Data[field].([]any)
		for _, v := range values {
			n := normalize(v, nil)
			if !containsValue(items, n) {
				items = append(items, n)
			}
		}
		return s.updateRecord(tx, path, map[string]any{field: items})
	})
	s.mu.Unlock()
	if err == nil {
		s.touch(path)
	}
	return err
}

func (s *LocalStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	ltx := &localTx{store: s}
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		ltx.db = db
		return fn(ctx, ltx)
	})
	s.mu.Unlock()
	if err == nil {
		for _, p := range ltx.written {
			s.touch(p)
		}
	}
	return err
}

func (s *LocalStore) Close() error {
	s.watchMu.Lock()
	for _, set := range s.watchers {
		for it := range set {
			it.cancel()
		}
	}
	s.watchers = make(map[string]map[*localIterator]struct{})
	s.watchMu.Unlock()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type localTx struct {
	store   *LocalStore
	db      *gorm.DB
	written []string
}

func (t *localTx) Get(path string) (Document, error) {
	rec, err := getRecord(t.db, path)
	if err != nil {
		return Document{}, err
	}
	return decode(rec)
}

func (t *localTx) Create(path string, data map[string]any) error {
	if err := t.store.createRecord(t.db, path, data); err != nil {
		return err
	}
	t.written = append(t.written, path)
	return nil
}

func (t *localTx) Update(path string, fields map[string]any) error {
	if err := t.store.updateRecord(t.db, path, fields); err != nil {
		return err
	}
	t.written = append(t.written, path)
	return nil
}

func (t *localTx) Delete(path string) error {
	if err := deleteRecord(t.db, path); err != nil {
		return err
	}
	t.written = append(t.written, path)
	return nil
}

// touch wakes every iterator watching the collection that owns path.
func (s *LocalStore) touch(path string) {
	collection, _, err := splitDocPath(path)
	if err != nil {
		return
	}
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for it := range s.watchers[collection] {
		select {
		case it.changed <- struct{}{}:
		default:
		}
	}
}

func (s *LocalStore) Snapshots(ctx context.Context, q Query) SnapshotIterator {
	ctx, cancel := context.WithCancel(ctx)
	it := &localIterator{
		store:   s,
		query:   q,
		ctx:     ctx,
		cancel:  cancel,
		changed: make(chan struct{}, 1),
		first:   true,
	}
	s.watchMu.Lock()
	if s.watchers[q.Collection] == nil {
		s.watchers[q.Collection] = make(map[*localIterator]struct{})
	}
	s.watchers[q.Collection][it] = struct{}{}
	s.watchMu.Unlock()
	return it
}

type localIterator struct {
	store   *LocalStore
	query   Query
	ctx     context.Context
	cancel  context.CancelFunc
	changed chan struct{}
	first   bool
	once    sync.Once
}

func (it *localIterator) Next() ([]Document, error) {
	if it.first {
		it.first = false
		if it.ctx.Err() != nil {
			return nil, ErrIteratorStopped
		}
		return it.store.Query(it.ctx, it.query)
	}
	select {
	case <-it.ctx.Done():
		return nil, ErrIteratorStopped
	case <-it.changed:
	}
	docs, err := it.store.Query(it.ctx, it.query)
	if err != nil && it.ctx.Err() != nil {
		return nil, ErrIteratorStopped
	}
	return docs, err
}

func (it *localIterator) Stop() {
	it.once.Do(func() {
		it.cancel()
		it.store.watchMu.Lock()
		delete(it.store.watchers[it.query.Collection], it)
		it.store.watchMu.Unlock()
	})
}

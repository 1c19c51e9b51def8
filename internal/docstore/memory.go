package docstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process. It backs fake mode and tests.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memCollection
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]*memCollection{}}
}

// Collection implements Store.
func (s *MemoryStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{name: name, docs: map[string]Document{}, subs: map[int]*memSub{}}
		s.collections[name] = c
	}
	return c
}

// Close implements Store.
func (s *MemoryStore) Close() {}

type memSub struct {
	mu   sync.Mutex // serializes deliveries
	fn   func(Snapshot)
	seen uint64
}

type memCollection struct {
	name string

	mu      sync.Mutex
	docs    map[string]Document
	subs    map[int]*memSub
	nextID  int
	version uint64
}

func (c *memCollection) snapshotLocked() Snapshot {
	docs := make([]Document, 0, len(c.docs))
	for _, d := range c.docs {
		docs = append(docs, d)
	}
	slices.SortFunc(docs, func(a, b Document) int {
		if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return Snapshot{Collection: c.name, Docs: docs}
}

func (c *memCollection) Snapshot(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(), nil
}

func (c *memCollection) OnSnapshot(ctx context.Context, fn func(Snapshot)) (func(), error) {
	sub := &memSub{fn: fn}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = sub
	snap, version := c.snapshotLocked(), c.version
	c.mu.Unlock()

	sub.deliver(snap, version)

	var once sync.Once
	stop := make(chan struct{})
	unsubscribe := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(stop)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-stop:
		}
	}()
	return unsubscribe, nil
}

// deliver drops snapshots older than one already delivered, which happens when
// concurrent writers race to notify.
func (s *memSub) deliver(snap Snapshot, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version < s.seen {
		return
	}
	s.seen = version
	s.fn(snap)
	recordSnapshot(snap.Collection)
}

func (c *memCollection) Put(ctx context.Context, id string, data any) (string, error) {
	raw, err := encode(data)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	c.mu.Lock()
	doc, ok := c.docs[id]
	if !ok {
		doc = Document{ID: id, CreatedAt: now}
	}
	doc.Data = raw
	doc.UpdatedAt = now
	c.docs[id] = doc
	c.version++
	c.mu.Unlock()

	c.notify()
	return id, nil
}

func (c *memCollection) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	_, ok := c.docs[id]
	delete(c.docs, id)
	if ok {
		c.version++
	}
	c.mu.Unlock()

	if ok {
		c.notify()
	}
	return nil
}

func (c *memCollection) notify() {
	c.mu.Lock()
	snap, version := c.snapshotLocked(), c.version
	subs := make([]*memSub, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.deliver(snap, version)
	}
}

package driver

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// MemoryRepository keeps documents in process, in insertion order.
type MemoryRepository struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]Document
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]Document)}
}

func (m *MemoryRepository) FetchAll(ctx context.Context, f Filter) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for _, id := range m.order {
		d := m.docs[id]
		if f.Match(d) {
			out = append(out, clone(d))
		}
	}
	return out, nil
}

func (m *MemoryRepository) Get(id string) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, false
	}
	return clone(d), true
}

func (m *MemoryRepository) UpdatePartial(ctx context.Context, id string, set map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "update %s", id)
	}
	merge(d, set)
	return nil
}

func (m *MemoryRepository) Upsert(ctx context.Context, d Document) error {
	id := d.ID()
	if id == "" {
		return eris.New("upsert: document has no _id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.docs[id]
	if !ok {
		existing = Document{KeyID: id}
		m.docs[id] = existing
		m.order = append(m.order, id)
	}
	merge(existing, d)
	return nil
}

func (m *MemoryRepository) BuildIndices(ctx context.Context) error { return nil }

func (m *MemoryRepository) Close(ctx context.Context) error { return nil }

func clone(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

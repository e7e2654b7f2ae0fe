package store

import (
	"context"
	"fmt"
	"sync"

	"thea/api/internal/docpath"
)

// Memory is a map-backed Store used by tests and local runs. Documents are
// deep-copied on the way in and out so callers can't alias internal state.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]map[string]Document
}

func NewMemory() *Memory {
	return &Memory{tables: map[string]map[string]Document{}}
}

func (m *Memory) Get(ctx context.Context, table string, key Key, paths []string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.tables[table][key.canonical()]
	if !ok {
		return nil, fmt.Errorf("get %s %v: %w", table, key, ErrNotFound)
	}
	if len(paths) == 0 {
		return deepCopy(doc), nil
	}
	return docpath.Project(deepCopy(doc), paths), nil
}

func (m *Memory) Put(ctx context.Context, table string, key Key, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[table]
	if !ok {
		rows = map[string]Document{}
		m.tables[table] = rows
	}
	rows[key.canonical()] = deepCopy(doc)
	return nil
}

func (m *Memory) Update(ctx context.Context, table string, key Key, set map[string]any, remove []string) error {
	if len(set) == 0 && len(remove) == 0 {
		return fmt.Errorf("update %s %v: empty expression: %w", table, key, ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[table]
	if !ok {
		rows = map[string]Document{}
		m.tables[table] = rows
	}
	doc, ok := rows[key.canonical()]
	if !ok {
		// A missing document is created at the written paths, carrying
		// its key attributes.
		doc = Document{}
		for name, value := range key {
			doc[name] = value
		}
		rows[key.canonical()] = doc
	}
	for path, value := range set {
		docpath.Put(doc, path, deepCopyValue(value))
	}
	for _, path := range remove {
		docpath.Delete(doc, path)
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, table, index, value string, paths []string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for _, doc := range m.tables[table] {
		if attr, ok := doc[index].(string); !ok || attr != value {
			continue
		}
		if len(paths) == 0 {
			out = append(out, deepCopy(doc))
		} else {
			out = append(out, docpath.Project(deepCopy(doc), paths))
		}
	}
	return out, nil
}

func deepCopy(doc Document) Document {
	out := make(Document, len(doc))
	for key, value := range doc {
		out[key] = deepCopyValue(value)
	}
	return out
}

func deepCopyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return deepCopy(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

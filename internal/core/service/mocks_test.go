package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
)

// --- mock SchemaExplorer ---

type mockExplorer struct {
	tables  []port.TableInfo
	details map[string]*port.TableDetail
	err     error
}

func booksExplorer() *mockExplorer {
	return &mockExplorer{
		tables: []port.TableInfo{{Name: "books"}},
		details: map[string]*port.TableDetail{
			"books": {Name: "books", Columns: []port.ColumnInfo{
				{Name: "title", DataType: "VARCHAR"},
				{Name: "price", DataType: "DECIMAL(10,2)"},
			}},
		},
	}
}

func (m *mockExplorer) ListTables(context.Context) ([]port.TableInfo, error) {
	return m.tables, m.err
}

func (m *mockExplorer) DescribeTable(_ context.Context, name string) (*port.TableDetail, error) {
	d, ok := m.details[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

// --- mock SQLGenerator ---

type mockGenerator struct {
	sql          string
	explanation  string
	err          error
	generateCall int
	lastSchema   string
}

func (m *mockGenerator) GenerateSQL(_ context.Context, _, schema string) (string, error) {
	m.generateCall++
	m.lastSchema = schema
	return m.sql, m.err
}

func (m *mockGenerator) ExplainSQL(_ context.Context, _, schema string) (string, error) {
	m.lastSchema = schema
	return m.explanation, m.err
}

// --- in-memory SQLCache ---

type memCache struct {
	entries map[string]string
	getErr  error
	setErr  error
	lastTTL time.Duration
}

func newMemCache() *memCache { return &memCache{entries: map[string]string{}} }

func (c *memCache) Get(_ context.Context, q, schema string) (string, bool, error) {
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.entries[q+"\x00"+schema]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, q, schema, sql string, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.lastTTL = ttl
	c.entries[q+"\x00"+schema] = sql
	return nil
}

// --- in-memory SavedQueryStore ---

type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]domain.SavedQuery
}

func newMemStore() *memStore { return &memStore{rows: map[int64]domain.SavedQuery{}} }

func (s *memStore) Init(context.Context) error { return nil }

func (s *memStore) Save(_ context.Context, q domain.SavedQuery) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	q.ID = s.nextID
	q.CreatedAt = time.Unix(s.nextID, 0).UTC()
	s.rows[q.ID] = q
	return q.ID, nil
}

func (s *memStore) List(_ context.Context, search string) ([]domain.SavedQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(search)
	var out []domain.SavedQuery
	for _, q := range s.rows {
		hay := strings.ToLower(q.Name + "\n" + q.Question + "\n" + q.Tag)
		if needle == "" || strings.Contains(hay, needle) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memStore) Get(_ context.Context, id int64) (*domain.SavedQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("saved query %d: %w", id, domain.ErrNotFound)
	}
	return &q, nil
}

func (s *memStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return false, nil
	}
	delete(s.rows, id)
	return true, nil
}

func (s *memStore) Close() error { return nil }

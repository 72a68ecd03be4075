package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"shortlink/pkg/cache"
	"shortlink/pkg/storage"

	"github.com/google/uuid"
)

// memStore is an in-memory LinkStorage and ClickEventStorage. The unique
// code constraint is enforced under the mutex like the real index.
type memStore struct {
	mu      sync.Mutex
	links   map[string]*storage.Link
	events  []storage.ClickEvent
	creates int
	err     error
}

func newMemStore() *memStore {
	return &memStore{links: make(map[string]*storage.Link)}
}

func (m *memStore) Create(_ context.Context, link *storage.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.err != nil {
		return m.err
	}
	if _, ok := m.links[link.ShortCode]; ok {
		return storage.ErrCodeConflict
	}
	link.ID = uuid.New()
	cp := *link
	m.links[link.ShortCode] = &cp
	return nil
}

func (m *memStore) GetByCode(_ context.Context, code string) (*storage.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	link, ok := m.links[code]
	if !ok {
		return nil, nil
	}
	cp := *link
	return &cp, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]storage.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []storage.Link{}
	for _, l := range m.links {
		if l.OwnerID != nil && *l.OwnerID == ownerID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortCode < out[j].ShortCode })
	if offset >= len(out) {
		return []storage.Link{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, code)
	return nil
}

func (m *memStore) IncrementClicks(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if l, ok := m.links[code]; ok {
		l.Clicks++
	}
	return nil
}

func (m *memStore) InsertClickEvent(_ context.Context, event *storage.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	event.ID = int64(len(m.events) + 1)
	m.events = append(m.events, *event)
	return nil
}

func (m *memStore) ListClickEvents(_ context.Context, code string, limit int) ([]storage.ClickEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []storage.ClickEvent{}
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].ShortCode == code {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memStore) clicks(code string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.links[code]; ok {
		return l.Clicks
	}
	return -1
}

func (m *memStore) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *memStore) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]cache.CachedLink
	ttls    map[string]time.Duration
	err     error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]cache.CachedLink{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, code string) (*cache.CachedLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	e, ok := c.entries[code]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c *memCache) Set(_ context.Context, code string, link *cache.CachedLink, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[code] = *link
	c.ttls[code] = ttl
	return nil
}

func (c *memCache) SetIfAbsent(_ context.Context, code string, link *cache.CachedLink, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if _, ok := c.entries[code]; ok {
		return false, nil
	}
	c.entries[code] = *link
	c.ttls[code] = ttl
	return true, nil
}

func (c *memCache) entry(code string) (cache.CachedLink, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[code]
	return e, ok
}

// hookStore runs afterGet once, right after a GetByCode of code returns, to
// interleave a write with an in-flight lookup. The hook may itself read.
type hookStore struct {
	*memStore
	code     string
	mu       sync.Mutex
	afterGet func()
}

func (h *hookStore) GetByCode(ctx context.Context, code string) (*storage.Link, error) {
	link, err := h.memStore.GetByCode(ctx, code)
	if code == h.code {
		h.mu.Lock()
		hook := h.afterGet
		h.afterGet = nil
		h.mu.Unlock()
		if hook != nil {
			hook()
		}
	}
	return link, err
}

// recordingRecorder captures events synchronously.
type recordingRecorder struct {
	mu     sync.Mutex
	events []storage.ClickEvent
}

func (r *recordingRecorder) Record(_ context.Context, event storage.ClickEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingRecorder) Close(context.Context) error { return nil }

// fixedGenerator returns codes from a list, repeating the last one.
type fixedGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *fixedGenerator) NewCode() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	g.calls++
	return g.codes[i], nil
}

type fakeDeduper struct {
	seen map[string]bool
	err  error
}

func (d *fakeDeduper) FirstSeen(_ context.Context, fp string) (bool, error) {
	if d.err != nil {
		return true, d.err
	}
	if d.seen[fp] {
		return false, nil
	}
	d.seen[fp] = true
	return true, nil
}

var errStoreDown = errors.New("connection refused")

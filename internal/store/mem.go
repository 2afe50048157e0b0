package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"netdoc/internal/models"

	"github.com/google/uuid"
)

// MemStore keeps everything in process memory. Used when no database is
// configured, and by tests.
type MemStore struct {
	mu        sync.RWMutex
	seq       int64
	order     map[string]int64
	devices   map[string]models.Device
	racks     map[string]models.Rack
	branches  map[string]models.Branch
	templates map[string]models.DeviceTemplate
	now       func() time.Time
	events    *broker
}

func NewMemStore() *MemStore {
	return &MemStore{
		order:     make(map[string]int64),
		devices:   make(map[string]models.Device),
		racks:     make(map[string]models.Rack),
		branches:  make(map[string]models.Branch),
		templates: make(map[string]models.DeviceTemplate),
		now:       time.Now,
		events:    newBroker(),
	}
}

func (m *MemStore) Subscribe(ctx context.Context) <-chan Change { return m.events.subscribe(ctx) }

func (m *MemStore) nextID(id string) string {
	if id == "" {
		id = uuid.NewString()
	}
	m.seq++
	m.order[id] = m.seq
	return id
}

func sortByOrder[T any](m map[string]T, order map[string]int64) []T {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return order[ids[i]] < order[ids[j]] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// ── reads ───────────────────────────────────────────────────

func (m *MemStore) ListDevices(context.Context) ([]models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := sortByOrder(m.devices, m.order)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out, nil
}

func (m *MemStore) ListRacks(context.Context) ([]models.Rack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortByOrder(m.racks, m.order), nil
}

func (m *MemStore) ListBranches(context.Context) ([]models.Branch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortByOrder(m.branches, m.order), nil
}

func (m *MemStore) ListTemplates(context.Context) ([]models.DeviceTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortByOrder(m.templates, m.order), nil
}

// ── creates ─────────────────────────────────────────────────

func (m *MemStore) CreateDevice(_ context.Context, d *models.Device) error {
	m.mu.Lock()
	d.ID = m.nextID(d.ID)
	now := m.now()
	d.CreatedAt, d.UpdatedAt = now, now
	if d.Status == "" {
		d.Status = models.DeviceOnline
	}
	m.devices[d.ID] = d.Clone()
	cp := d.Clone()
	turn := m.events.ticket()
	m.mu.Unlock()

	m.events.publishInTurn(turn, Change{Kind: KindDevice, Op: OpCreated, ID: d.ID, Device: &cp})
	return nil
}

func (m *MemStore) CreateRack(_ context.Context, r *models.Rack) error {
	m.mu.Lock()
	r.ID = m.nextID(r.ID)
	r.CreatedAt = m.now()
	m.racks[r.ID] = *r
	cp := *r
	turn := m.events.ticket()
	m.mu.Unlock()

	m.events.publishInTurn(turn, Change{Kind: KindRack, Op: OpCreated, ID: r.ID, Rack: &cp})
	return nil
}

func (m *MemStore) CreateBranch(_ context.Context, b *models.Branch) error {
	m.mu.Lock()
	b.ID = m.nextID(b.ID)
	b.CreatedAt = m.now()
	m.branches[b.ID] = *b
	cp := *b
	turn := m.events.ticket()
	m.mu.Unlock()

	m.events.publishInTurn(turn, Change{Kind: KindBranch, Op: OpCreated, ID: b.ID, Branch: &cp})
	return nil
}

func (m *MemStore) CreateTemplate(_ context.Context, t *models.DeviceTemplate) error {
	m.mu.Lock()
	t.ID = m.nextID(t.ID)
	t.CreatedAt = m.now()
	m.templates[t.ID] = *t
	cp := *t
	turn := m.events.ticket()
	m.mu.Unlock()

	m.events.publishInTurn(turn, Change{Kind: KindTemplate, Op: OpCreated, ID: t.ID, Template: &cp})
	return nil
}

// ── updates ─────────────────────────────────────────────────

func (m *MemStore) UpdateRack(_ context.Context, r *models.Rack) error {
	m.mu.Lock()
	old, ok := m.racks[r.ID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("rack %s: %w", r.ID, ErrNotFound)
	}
	r.CreatedAt = old.CreatedAt
	m.racks[r.ID] = *r
	cp := *r
	turn := m.events.ticket()
	m.mu.Unlock()

	m.events.publishInTurn(turn, Change{Kind: KindRack, Op: OpUpdated, ID: r.ID, Rack: &cp})
	return nil
}

func (m *MemStore) UpdateBranch(_ context.Context, b *models.Branch) error {
	m.mu.Lock()
	old, ok := m.branches[b.ID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("branch %s: %w", b.ID, ErrNotFound)
	}
	b.CreatedAt = old.CreatedAt
	m.branches[b.ID] = *b
	cp := *b
	turn := m.events.ticket()
	m.mu.Unlock()

	m.events.publishInTurn(turn, Change{Kind: KindBranch, Op: OpUpdated, ID: b.ID, Branch: &cp})
	return nil
}

func (m *MemStore) UpdateTemplate(_ context.Context, t *models.DeviceTemplate) error {
	m.mu.Lock()
	old, ok := m.templates[t.ID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("template %s: %w", t.ID, ErrNotFound)
	}
	t.CreatedAt = old.CreatedAt
	m.templates[t.ID] = *t
	cp := *t
	turn := m.events.ticket()
	m.mu.Unlock()

	m.events.publishInTurn(turn, Change{Kind: KindTemplate, Op: OpUpdated, ID: t.ID, Template: &cp})
	return nil
}

// ── removals ────────────────────────────────────────────────

func (m *MemStore) RemoveBranch(_ context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.branches[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("branch %s: %w", id, ErrNotFound)
	}
	delete(m.branches, id)
	delete(m.order, id)
	turn := m.events.ticket()
	m.mu.Unlock()

	m.events.publishInTurn(turn, Change{Kind: KindBranch, Op: OpRemoved, ID: id})
	return nil
}

func (m *MemStore) RemoveTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.templates[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	delete(m.templates, id)
	delete(m.order, id)
	turn := m.events.ticket()
	m.mu.Unlock()

	m.events.publishInTurn(turn, Change{Kind: KindTemplate, Op: OpRemoved, ID: id})
	return nil
}

// Apply checks every referenced id before touching anything.
func (m *MemStore) Apply(_ context.Context, b Batch) error {
	if b.Empty() {
		return nil
	}
	m.mu.Lock()
	for _, u := range b.Devices {
		if _, ok := m.devices[u.ID]; !ok {
			m.mu.Unlock()
			return fmt.Errorf("device %s: %w", u.ID, ErrNotFound)
		}
	}
	for _, id := range b.RemoveDevices {
		if _, ok := m.devices[id]; !ok {
			m.mu.Unlock()
			return fmt.Errorf("device %s: %w", id, ErrNotFound)
		}
	}
	for _, id := range b.RemoveRacks {
		if _, ok := m.racks[id]; !ok {
			m.mu.Unlock()
			return fmt.Errorf("rack %s: %w", id, ErrNotFound)
		}
	}

	now := m.now()
	changes := make([]Change, 0, len(b.Devices)+len(b.RemoveDevices)+len(b.RemoveRacks))
	for _, u := range b.Devices {
		d := m.devices[u.ID]
		d.ApplyFields(u.Values, u.Fields)
		d.UpdatedAt = now
		m.devices[u.ID] = d
		cp := d.Clone()
		changes = append(changes, Change{Kind: KindDevice, Op: OpUpdated, ID: u.ID, Device: &cp})
	}
	for _, id := range b.RemoveDevices {
		delete(m.devices, id)
		delete(m.order, id)
		changes = append(changes, Change{Kind: KindDevice, Op: OpRemoved, ID: id})
	}
	for _, id := range b.RemoveRacks {
		delete(m.racks, id)
		delete(m.order, id)
		changes = append(changes, Change{Kind: KindRack, Op: OpRemoved, ID: id})
	}
	turn := m.events.ticket()
	m.mu.Unlock()

	m.events.publishInTurn(turn, changes...)
	return nil
}

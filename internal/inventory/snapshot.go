package inventory

import (
	"slices"

	"netdoc/internal/models"
	"netdoc/internal/store"
)

// Snapshot is a point-in-time copy of the collections. All planning works
// against a snapshot and never against live state.
type Snapshot struct {
	Devices   []models.Device
	Racks     []models.Rack
	Branches  []models.Branch
	Templates []models.DeviceTemplate

	devIdx  map[string]int
	rackIdx map[string]int
}

func NewSnapshot(devices []models.Device, racks []models.Rack) Snapshot {
	s := Snapshot{Devices: devices, Racks: racks}
	s.index()
	return s
}

func (s *Snapshot) index() {
	s.devIdx = make(map[string]int, len(s.Devices))
	for i, d := range s.Devices {
		s.devIdx[d.ID] = i
	}
	s.rackIdx = make(map[string]int, len(s.Racks))
	for i, r := range s.Racks {
		s.rackIdx[r.ID] = i
	}
}

// Device returns a deep copy of the device.
func (s Snapshot) Device(id string) (models.Device, bool) {
	i, ok := s.devIdx[id]
	if !ok {
		return models.Device{}, false
	}
	return s.Devices[i].Clone(), true
}

func (s Snapshot) Rack(id string) (models.Rack, bool) {
	i, ok := s.rackIdx[id]
	if !ok {
		return models.Rack{}, false
	}
	return s.Racks[i], true
}

func (s Snapshot) RackDevices(rackID string) []models.Device {
	var out []models.Device
	for _, d := range s.Devices {
		if d.InRack(rackID) {
			out = append(out, d)
		}
	}
	return out
}

// With returns the snapshot as it would look after b is applied.
func (s Snapshot) With(b store.Batch) Snapshot {
	removed := make(map[string]bool, len(b.RemoveDevices)+len(b.RemoveRacks))
	for _, id := range b.RemoveDevices {
		removed[id] = true
	}
	for _, id := range b.RemoveRacks {
		removed[id] = true
	}
	updates := make(map[string]store.DeviceUpdate, len(b.Devices))
	for _, u := range b.Devices {
		updates[u.ID] = u
	}

	out := Snapshot{Branches: s.Branches, Templates: s.Templates}
	for _, d := range s.Devices {
		if removed[d.ID] {
			continue
		}
		d = d.Clone()
		if u, ok := updates[d.ID]; ok {
			d.ApplyFields(u.Values, u.Fields)
		}
		out.Devices = append(out.Devices, d)
	}
	for _, r := range s.Racks {
		if !removed[r.ID] {
			out.Racks = append(out.Racks, r)
		}
	}
	out.index()
	return out
}

// patchSet accumulates record edits. Every device is loaded once, so two
// edits to the same record merge into a single update.
type patchSet struct {
	snap  Snapshot
	order []string
	devs  map[string]*pending
	drop  []string
	racks []string
}

type pending struct {
	dev    models.Device
	fields []string
}

func newPatchSet(s Snapshot) *patchSet {
	return &patchSet{snap: s, devs: make(map[string]*pending)}
}

func (p *patchSet) get(id string) (*models.Device, bool) {
	if pd, ok := p.devs[id]; ok {
		return &pd.dev, true
	}
	d, ok := p.snap.Device(id)
	if !ok {
		return nil, false
	}
	p.devs[id] = &pending{dev: d}
	p.order = append(p.order, id)
	return &p.devs[id].dev, true
}

func (p *patchSet) mark(id string, fields ...string) {
	pd, ok := p.devs[id]
	if !ok {
		return
	}
	for _, f := range fields {
		if !slices.Contains(pd.fields, f) {
			pd.fields = append(pd.fields, f)
		}
	}
}

func (p *patchSet) removeDevice(id string) { p.drop = append(p.drop, id) }
func (p *patchSet) removeRack(id string)   { p.racks = append(p.racks, id) }

func (p *patchSet) batch() store.Batch {
	var b store.Batch
	for _, id := range p.order {
		pd := p.devs[id]
		if len(pd.fields) == 0 || slices.Contains(p.drop, id) {
			continue
		}
		b.Devices = append(b.Devices, store.DeviceUpdate{ID: id, Fields: pd.fields, Values: pd.dev.Clone()})
	}
	b.RemoveDevices = append(b.RemoveDevices, p.drop...)
	b.RemoveRacks = append(b.RemoveRacks, p.racks...)
	return b
}

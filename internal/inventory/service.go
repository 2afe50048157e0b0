package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"netdoc/internal/metrics"
	"netdoc/internal/models"
	"netdoc/internal/store"

	"github.com/sirupsen/logrus"
)

type Options struct {
	// StrictConnect clears the old peer's back-reference when Connect
	// overwrites a port that is already linked.
	StrictConnect bool
}

// Service owns the in-memory collections and turns commands into store
// batches. Collections only change through store notifications, so reads
// are eventually consistent with the store.
type Service struct {
	repo store.Repository
	log  logrus.FieldLogger
	opts Options

	mu        sync.RWMutex
	devices   *collection[models.Device]
	racks     *collection[models.Rack]
	branches  *collection[models.Branch]
	templates *collection[models.DeviceTemplate]
}

func NewService(repo store.Repository, log logrus.FieldLogger, opts Options) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		repo:      repo,
		log:       log.WithField("component", "inventory"),
		opts:      opts,
		devices:   newCollection[models.Device](),
		racks:     newCollection[models.Rack](),
		branches:  newCollection[models.Branch](),
		templates: newCollection[models.DeviceTemplate](),
	}
}

// Refresh reloads every collection from the store.
func (s *Service) Refresh(ctx context.Context) error {
	devices, err := s.repo.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("load devices: %w", err)
	}
	racks, err := s.repo.ListRacks(ctx)
	if err != nil {
		return fmt.Errorf("load racks: %w", err)
	}
	branches, err := s.repo.ListBranches(ctx)
	if err != nil {
		return fmt.Errorf("load branches: %w", err)
	}
	templates, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices.reset(devices, func(d models.Device) string { return d.ID })
	s.racks.reset(racks, func(r models.Rack) string { return r.ID })
	s.branches.reset(branches, func(b models.Branch) string { return b.ID })
	s.templates.reset(templates, func(t models.DeviceTemplate) string { return t.ID })
	return nil
}

// Run subscribes to the store, loads the collections and then applies
// changes until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	changes := s.repo.Subscribe(ctx)
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	s.log.Info("inventory loaded, watching for changes")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
			s.Reconcile(c)
		}
	}
}

// Reconcile folds one store change into memory.
func (s *Service) Reconcile(c store.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	metrics.Change(string(c.Kind))
	switch c.Kind {
	case store.KindDevice:
		if c.Op == store.OpRemoved || c.Device == nil {
			s.devices.remove(c.ID)
			return
		}
		s.devices.upsert(c.ID, c.Device.Clone())
	case store.KindRack:
		if c.Op == store.OpRemoved || c.Rack == nil {
			s.racks.remove(c.ID)
			return
		}
		s.racks.upsert(c.ID, *c.Rack)
	case store.KindBranch:
		if c.Op == store.OpRemoved || c.Branch == nil {
			s.branches.remove(c.ID)
			return
		}
		s.branches.upsert(c.ID, *c.Branch)
	case store.KindTemplate:
		if c.Op == store.OpRemoved || c.Template == nil {
			s.templates.remove(c.ID)
			return
		}
		s.templates.upsert(c.ID, *c.Template)
	}
}

// Snapshot copies the current collections.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	devices := s.devices.list()
	for i := range devices {
		devices[i] = devices[i].Clone()
	}
	snap := Snapshot{
		Devices:   devices,
		Racks:     s.racks.list(),
		Branches:  s.branches.list(),
		Templates: s.templates.list(),
	}
	snap.index()
	return snap
}

// record logs and counts a command outcome and returns err unchanged.
func (s *Service) record(op string, err error) error {
	metrics.Mutation(op, err, ErrCapacity, ErrNotFound, ErrInvalid)
	if err == nil {
		return nil
	}
	entry := s.log.WithField("op", op).WithError(err)
	switch {
	case errors.Is(err, ErrNotFound):
		entry.Warn("stale reference, nothing written")
	case errors.Is(err, ErrCapacity):
		entry.Info("placement rejected")
	case errors.Is(err, ErrInvalid):
		entry.Debug("invalid request")
	default:
		entry.Error("inventory write failed")
	}
	return err
}

func (s *Service) apply(ctx context.Context, op string, b store.Batch) error {
	return s.record(op, s.repo.Apply(ctx, b))
}

// ── connection graph ────────────────────────────────────────

func (s *Service) Connect(ctx context.Context, srcDevice, srcPort, dstDevice, dstPort string) error {
	plan, err := PlanConnect(s.Snapshot(), srcDevice, srcPort, dstDevice, dstPort, s.opts.StrictConnect)
	if err != nil {
		return s.record("connect", err)
	}
	s.warnDisplaced(plan.Displaced)
	return s.apply(ctx, "connect", plan.Batch)
}

func (s *Service) warnDisplaced(links []Link) {
	for _, l := range links {
		s.log.WithFields(logrus.Fields{
			"device":    l.Source.DeviceID,
			"port":      l.Source.PortID,
			"old_peer":  l.Target.DeviceID,
			"old_port":  l.Target.PortID,
			"cleared":   s.opts.StrictConnect,
			"old_label": l.String(),
		}).Warn("connect overwrote an existing link")
	}
}

func (s *Service) Disconnect(ctx context.Context, deviceID, portID string) error {
	b, err := PlanDisconnect(s.Snapshot(), deviceID, portID)
	if err != nil {
		return s.record("disconnect", err)
	}
	return s.apply(ctx, "disconnect", b)
}

// EditConnection moves an existing link to new ports: a disconnect
// followed by a connect. Both steps are planned up front; if the connect
// write fails the link stays disconnected and ErrPartial is returned.
func (s *Service) EditConnection(ctx context.Context, old Link, newSrcPort, newDstPort string) error {
	if newSrcPort == "" {
		newSrcPort = old.Source.PortID
	}
	if newDstPort == "" {
		newDstPort = old.Target.PortID
	}
	snap := s.Snapshot()
	first, err := PlanDisconnect(snap, old.Source.DeviceID, old.Source.PortID)
	if err != nil {
		return s.record("edit_connection", err)
	}
	plan, err := PlanConnect(snap.With(first), old.Source.DeviceID, newSrcPort, old.Target.DeviceID, newDstPort, s.opts.StrictConnect)
	if err != nil {
		return s.record("edit_connection", err)
	}
	if err := s.apply(ctx, "edit_connection", first); err != nil {
		return err
	}
	s.warnDisplaced(plan.Displaced)
	if err := s.apply(ctx, "edit_connection", plan.Batch); err != nil {
		return fmt.Errorf("%w: link left disconnected: %w", ErrPartial, err)
	}
	return nil
}

// Links lists the branch's connections once each; an empty branch id
// means every device.
func (s *Service) Links(branchID string) []Link {
	return CollectLinks(s.Devices(branchID))
}

func (s *Service) Verify() []Issue { return Verify(s.Snapshot().Devices) }

// ── rack placement ──────────────────────────────────────────

func (s *Service) Mount(ctx context.Context, deviceID, rackID string, unit int) error {
	b, err := PlanMount(s.Snapshot(), deviceID, rackID, unit)
	if err != nil {
		return s.record("mount", err)
	}
	return s.apply(ctx, "mount", b)
}

func (s *Service) Unmount(ctx context.Context, deviceID string) error {
	b, err := PlanUnmount(s.Snapshot(), deviceID)
	if err != nil {
		return s.record("unmount", err)
	}
	return s.apply(ctx, "unmount", b)
}

func (s *Service) QuickCreate(ctx context.Context, kind QuickKind, rackID string, unit, height int) (models.Device, error) {
	d, err := NewQuickDevice(s.Snapshot(), kind, rackID, unit, height)
	if err != nil {
		return models.Device{}, s.record("quick_create", err)
	}
	if err := s.record("quick_create", s.repo.CreateDevice(ctx, &d)); err != nil {
		return models.Device{}, err
	}
	return d, nil
}

// OccupancyAt returns the device covering unit and the 0U devices there.
func (s *Service) OccupancyAt(rackID string, unit int) (*models.Device, []models.Device, error) {
	snap := s.Snapshot()
	rack, ok := snap.Rack(rackID)
	if !ok {
		return nil, nil, notFound("rack", rackID)
	}
	dev, zero := BuildOccupancy(rack, snap.RackDevices(rackID)).At(unit)
	return dev, zero, nil
}

func (s *Service) Elevation(rackID string) ([]UnitRow, error) {
	snap := s.Snapshot()
	rack, ok := snap.Rack(rackID)
	if !ok {
		return nil, notFound("rack", rackID)
	}
	return Elevation(rack, snap.Devices), nil
}

// ── derived views ───────────────────────────────────────────

func (s *Service) Topology(branchID string) Topology { return BuildTopology(s.Devices(branchID)) }
func (s *Service) Report(branchID string) Report     { return BuildReport(s.Devices(branchID)) }

// Filter searches the branch devices; see Filter.
func (s *Service) Filter(branchID, term string) []models.Device {
	return Filter(s.Devices(branchID), term)
}

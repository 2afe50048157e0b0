package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"netdoc/internal/models"

	"gorm.io/gorm"
)

// GormStore persists inventory records through gorm. Change notifications
// are published after a successful commit. Writes are serialized through
// the store so notifications go out in commit order.
type GormStore struct {
	db     *gorm.DB
	writes sync.Mutex
	events *broker
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, events: newBroker()}
}

func (s *GormStore) Subscribe(ctx context.Context) <-chan Change { return s.events.subscribe(ctx) }

func exists(tx *gorm.DB, model any, kind, id string) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return err
}

// ── reads ───────────────────────────────────────────────────

func (s *GormStore) ListDevices(ctx context.Context) ([]models.Device, error) {
	var out []models.Device
	err := s.db.WithContext(ctx).Order("created_at, id").Find(&out).Error
	return out, err
}

func (s *GormStore) ListRacks(ctx context.Context) ([]models.Rack, error) {
	var out []models.Rack
	err := s.db.WithContext(ctx).Order("created_at, id").Find(&out).Error
	return out, err
}

func (s *GormStore) ListBranches(ctx context.Context) ([]models.Branch, error) {
	var out []models.Branch
	err := s.db.WithContext(ctx).Order("created_at, id").Find(&out).Error
	return out, err
}

func (s *GormStore) ListTemplates(ctx context.Context) ([]models.DeviceTemplate, error) {
	var out []models.DeviceTemplate
	err := s.db.WithContext(ctx).Order("created_at, id").Find(&out).Error
	return out, err
}

// ── creates ─────────────────────────────────────────────────

func (s *GormStore) CreateDevice(ctx context.Context, d *models.Device) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	if d.Status == "" {
		d.Status = models.DeviceOnline
	}
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return err
	}
	cp := d.Clone()
	s.events.publish(Change{Kind: KindDevice, Op: OpCreated, ID: d.ID, Device: &cp})
	return nil
}

func (s *GormStore) CreateRack(ctx context.Context, r *models.Rack) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return err
	}
	cp := *r
	s.events.publish(Change{Kind: KindRack, Op: OpCreated, ID: r.ID, Rack: &cp})
	return nil
}

func (s *GormStore) CreateBranch(ctx context.Context, b *models.Branch) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return err
	}
	cp := *b
	s.events.publish(Change{Kind: KindBranch, Op: OpCreated, ID: b.ID, Branch: &cp})
	return nil
}

func (s *GormStore) CreateTemplate(ctx context.Context, t *models.DeviceTemplate) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return err
	}
	cp := *t
	s.events.publish(Change{Kind: KindTemplate, Op: OpCreated, ID: t.ID, Template: &cp})
	return nil
}

// ── updates ─────────────────────────────────────────────────

// save overwrites every column except created_at.
func (s *GormStore) save(ctx context.Context, kind string, model any, id string) error {
	db := s.db.WithContext(ctx)
	if err := exists(db, model, kind, id); err != nil {
		return err
	}
	if err := db.Model(model).Where("id = ?", id).Select("*").Omit("id", "created_at").Updates(model).Error; err != nil {
		return err
	}
	return db.First(model, "id = ?", id).Error
}

func (s *GormStore) UpdateRack(ctx context.Context, r *models.Rack) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	if err := s.save(ctx, "rack", r, r.ID); err != nil {
		return err
	}
	cp := *r
	s.events.publish(Change{Kind: KindRack, Op: OpUpdated, ID: r.ID, Rack: &cp})
	return nil
}

func (s *GormStore) UpdateBranch(ctx context.Context, b *models.Branch) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	if err := s.save(ctx, "branch", b, b.ID); err != nil {
		return err
	}
	cp := *b
	s.events.publish(Change{Kind: KindBranch, Op: OpUpdated, ID: b.ID, Branch: &cp})
	return nil
}

func (s *GormStore) UpdateTemplate(ctx context.Context, t *models.DeviceTemplate) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	if err := s.save(ctx, "template", t, t.ID); err != nil {
		return err
	}
	cp := *t
	s.events.publish(Change{Kind: KindTemplate, Op: OpUpdated, ID: t.ID, Template: &cp})
	return nil
}

// ── removals ────────────────────────────────────────────────

func (s *GormStore) RemoveBranch(ctx context.Context, id string) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	tx := s.db.WithContext(ctx).Delete(&models.Branch{}, "id = ?", id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("branch %s: %w", id, ErrNotFound)
	}
	s.events.publish(Change{Kind: KindBranch, Op: OpRemoved, ID: id})
	return nil
}

func (s *GormStore) RemoveTemplate(ctx context.Context, id string) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	tx := s.db.WithContext(ctx).Delete(&models.DeviceTemplate{}, "id = ?", id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	s.events.publish(Change{Kind: KindTemplate, Op: OpRemoved, ID: id})
	return nil
}

// Apply runs the whole batch in one transaction; any missing id rolls it back.
func (s *GormStore) Apply(ctx context.Context, b Batch) error {
	if b.Empty() {
		return nil
	}
	s.writes.Lock()
	defer s.writes.Unlock()
	var changes []Change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changes = changes[:0]
		now := time.Now()
		for _, u := range b.Devices {
			vals := u.Values.Clone()
			vals.ID = u.ID
			vals.UpdatedAt = now
			fields := append(append([]string(nil), u.Fields...), models.FieldUpdatedAt)
			if err := exists(tx, &models.Device{}, "device", u.ID); err != nil {
				return err
			}
			if err := tx.Model(&models.Device{}).Where("id = ?", u.ID).Select(fields).Updates(&vals).Error; err != nil {
				return err
			}
			var fresh models.Device
			if err := tx.First(&fresh, "id = ?", u.ID).Error; err != nil {
				return notFound("device", u.ID, err)
			}
			changes = append(changes, Change{Kind: KindDevice, Op: OpUpdated, ID: u.ID, Device: &fresh})
		}
		for _, id := range b.RemoveDevices {
			res := tx.Delete(&models.Device{}, "id = ?", id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("device %s: %w", id, ErrNotFound)
			}
			changes = append(changes, Change{Kind: KindDevice, Op: OpRemoved, ID: id})
		}
		for _, id := range b.RemoveRacks {
			res := tx.Delete(&models.Rack{}, "id = ?", id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("rack %s: %w", id, ErrNotFound)
			}
			changes = append(changes, Change{Kind: KindRack, Op: OpRemoved, ID: id})
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.events.publish(changes...)
	return nil
}

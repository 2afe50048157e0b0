package store

import (
	"context"
	"errors"

	"netdoc/internal/models"
)

var ErrNotFound = errors.New("record not found")

type Kind string

const (
	KindDevice   Kind = "devices"
	KindRack     Kind = "racks"
	KindBranch   Kind = "branches"
	KindTemplate Kind = "templates"
)

type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpRemoved Op = "removed"
)

// Change is one record-level notification. Removed records only carry ID.
type Change struct {
	Kind     Kind
	Op       Op
	ID       string
	Device   *models.Device
	Rack     *models.Rack
	Branch   *models.Branch
	Template *models.DeviceTemplate
}

// DeviceUpdate sets Fields of device ID to the matching values in Values.
type DeviceUpdate struct {
	ID     string
	Fields []string
	Values models.Device
}

// Batch is applied all-or-nothing. Updates run before removals.
type Batch struct {
	Devices       []DeviceUpdate
	RemoveDevices []string
	RemoveRacks   []string
}

func (b Batch) Empty() bool {
	return len(b.Devices) == 0 && len(b.RemoveDevices) == 0 && len(b.RemoveRacks) == 0
}

// Repository is the persistence boundary. It performs no cascades.
type Repository interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	ListRacks(ctx context.Context) ([]models.Rack, error)
	ListBranches(ctx context.Context) ([]models.Branch, error)
	ListTemplates(ctx context.Context) ([]models.DeviceTemplate, error)

	CreateDevice(ctx context.Context, d *models.Device) error
	CreateRack(ctx context.Context, r *models.Rack) error
	CreateBranch(ctx context.Context, b *models.Branch) error
	CreateTemplate(ctx context.Context, t *models.DeviceTemplate) error

	UpdateRack(ctx context.Context, r *models.Rack) error
	UpdateBranch(ctx context.Context, b *models.Branch) error
	UpdateTemplate(ctx context.Context, t *models.DeviceTemplate) error

	RemoveBranch(ctx context.Context, id string) error
	RemoveTemplate(ctx context.Context, id string) error

	// Apply writes device updates and device/rack removals in one transaction.
	Apply(ctx context.Context, b Batch) error

	// Subscribe streams changes until ctx is done.
	Subscribe(ctx context.Context) <-chan Change
}

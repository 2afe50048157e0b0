package store

import (
	"context"
	"fmt"
	"testing"

	"netdoc/internal/db"
	"netdoc/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func TestGormStoreRoundTrip(t *testing.T) {
	s := NewGormStore(openTestDB(t))
	ctx := context.Background()

	b := models.Branch{Name: "HQ", Location: "Lisbon"}
	require.NoError(t, s.CreateBranch(ctx, &b))
	r := models.Rack{BranchID: b.ID, Name: "R1", Height: 42}
	require.NoError(t, s.CreateRack(ctx, &r))

	d := models.Device{
		BranchID: models.String(b.ID),
		Name:     "core",
		Type:     models.TypeSwitch,
		Ports: []models.Port{
			{ID: "p1", Number: 1, Name: "Gi0/1", Status: models.PortActive},
			{ID: "p2", Number: 2, Name: "Gi0/2", Status: models.PortActive, ConnectedTo: &models.PortLink{DeviceID: "x", PortID: "y", PortNumber: 3}},
		},
	}
	require.NoError(t, s.CreateDevice(ctx, &d))

	devices, err := s.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	got := devices[0]
	assert.Equal(t, "core", got.Name)
	assert.Equal(t, models.DeviceOnline, got.Status)
	require.Len(t, got.Ports, 2)
	require.NotNil(t, got.Ports[1].ConnectedTo)
	assert.Equal(t, 3, got.Ports[1].ConnectedTo.PortNumber)

	tpl := models.DeviceTemplate{Name: "Edge", DefaultPorts: []models.PortTemplate{{Name: "wan"}, {Name: "lan"}}}
	require.NoError(t, s.CreateTemplate(ctx, &tpl))
	tpls, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, tpls, 1)
	assert.Len(t, tpls[0].DefaultPorts, 2)
}

func TestGormStoreApply(t *testing.T) {
	s := NewGormStore(openTestDB(t))
	ctx := context.Background()

	a := models.Device{Name: "a", Ports: []models.Port{{ID: "pa", Number: 1}}}
	b := models.Device{Name: "b", Ports: []models.Port{{ID: "pb", Number: 1}}}
	require.NoError(t, s.CreateDevice(ctx, &a))
	require.NoError(t, s.CreateDevice(ctx, &b))

	a.Ports[0].ConnectedTo = &models.PortLink{DeviceID: b.ID, PortID: "pb", PortNumber: 1}
	a.Name = "not written"
	err := s.Apply(ctx, Batch{Devices: []DeviceUpdate{{ID: a.ID, Fields: []string{models.FieldPorts}, Values: a}}})
	require.NoError(t, err)

	devices, err := s.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "a", devices[0].Name)
	require.NotNil(t, devices[0].Ports[0].ConnectedTo)
	assert.Equal(t, b.ID, devices[0].Ports[0].ConnectedTo.DeviceID)

	// a missing id rolls back the whole batch
	err = s.Apply(ctx, Batch{
		Devices:       []DeviceUpdate{{ID: b.ID, Fields: []string{models.FieldName}, Values: models.Device{Name: "renamed"}}},
		RemoveDevices: []string{"missing"},
	})
	require.ErrorIs(t, err, ErrNotFound)
	devices, _ = s.ListDevices(ctx)
	assert.Equal(t, "b", devices[1].Name)

	require.NoError(t, s.Apply(ctx, Batch{RemoveDevices: []string{a.ID}}))
	devices, _ = s.ListDevices(ctx)
	require.Len(t, devices, 1)
	assert.Equal(t, b.ID, devices[0].ID)
}

func TestGormStoreUpdateAndRemove(t *testing.T) {
	s := NewGormStore(openTestDB(t))
	ctx := context.Background()

	br := models.Branch{Name: "HQ"}
	require.NoError(t, s.CreateBranch(ctx, &br))
	r := models.Rack{BranchID: br.ID, Name: "R1", Height: 42}
	require.NoError(t, s.CreateRack(ctx, &r))

	upd := models.Rack{ID: r.ID, BranchID: br.ID, Name: "R1-renamed", Height: 24}
	require.NoError(t, s.UpdateRack(ctx, &upd))
	racks, err := s.ListRacks(ctx)
	require.NoError(t, err)
	require.Len(t, racks, 1)
	assert.Equal(t, "R1-renamed", racks[0].Name)
	assert.Equal(t, 24, racks[0].Height)

	assert.ErrorIs(t, s.UpdateRack(ctx, &models.Rack{ID: "missing", Name: "x", Height: 1}), ErrNotFound)
	assert.ErrorIs(t, s.RemoveBranch(ctx, "missing"), ErrNotFound)
	require.NoError(t, s.RemoveBranch(ctx, br.ID))
	branches, _ := s.ListBranches(ctx)
	assert.Empty(t, branches)
}

func TestGormStorePublishesInCommitOrder(t *testing.T) {
	final, got := renameConcurrently(t, NewGormStore(openTestDB(t)), 4, 10)

	last := got[len(got)-1]
	require.NotNil(t, last.Device)
	assert.Equal(t, final.Name, last.Device.Name, "last change carries the committed record")
}

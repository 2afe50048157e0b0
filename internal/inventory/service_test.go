package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"netdoc/internal/models"
	"netdoc/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyRepo fails the Nth Apply call.
type flakyRepo struct {
	*store.MemStore
	calls  int
	failOn int
}

var errInjected = errors.New("injected write failure")

func (f *flakyRepo) Apply(ctx context.Context, b store.Batch) error {
	f.calls++
	if f.calls == f.failOn {
		return errInjected
	}
	return f.MemStore.Apply(ctx, b)
}

type fixture struct {
	t    *testing.T
	ctx  context.Context
	repo store.Repository
	svc  *Service
	logs *test.Hook
}

func newFixture(t *testing.T, repo store.Repository, opts Options) *fixture {
	t.Helper()
	if repo == nil {
		repo = store.NewMemStore()
	}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f := &fixture{t: t, ctx: context.Background(), repo: repo, svc: NewService(repo, logger, opts), logs: hook}
	f.sync()
	return f
}

func (f *fixture) sync() {
	f.t.Helper()
	require.NoError(f.t, f.svc.Refresh(f.ctx))
}

func (f *fixture) branch(name string) models.Branch {
	f.t.Helper()
	b := models.Branch{Name: name, Location: name + " office"}
	require.NoError(f.t, f.svc.CreateBranch(f.ctx, &b))
	f.sync()
	return b
}

func (f *fixture) rack(branchID, name string, height int) models.Rack {
	f.t.Helper()
	r := models.Rack{BranchID: branchID, Name: name, Height: height}
	require.NoError(f.t, f.svc.CreateRack(f.ctx, &r))
	f.sync()
	return r
}

func (f *fixture) device(branchID, name, typ string, ports int, height *int) models.Device {
	f.t.Helper()
	d := models.Device{BranchID: models.String(branchID), Name: name, Type: typ, RackHeight: height}
	for i := 0; i < ports; i++ {
		d.Ports = append(d.Ports, models.Port{})
	}
	require.NoError(f.t, f.svc.CreateDevice(f.ctx, &d))
	f.sync()
	return d
}

func (f *fixture) get(id string) models.Device {
	f.t.Helper()
	d, err := f.svc.Device(id)
	require.NoError(f.t, err)
	return d
}

func TestConnectDisconnectScenario(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	a := f.device(br.ID, "A", models.TypeSwitch, 1, nil)
	b := f.device(br.ID, "B", models.TypeRouter, 1, nil)
	require.Equal(t, "Port 1", a.Ports[0].Name)

	require.NoError(t, f.svc.Connect(f.ctx, a.ID, a.Ports[0].ID, b.ID, b.Ports[0].ID))
	f.sync()

	links := f.svc.Links(br.ID)
	require.Len(t, links, 1)
	ends := []string{links[0].Source.DeviceID, links[0].Target.DeviceID}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ends)
	assert.Equal(t, b.ID, f.get(a.ID).Ports[0].ConnectedTo.DeviceID)
	assert.Equal(t, a.ID, f.get(b.ID).Ports[0].ConnectedTo.DeviceID)

	require.NoError(t, f.svc.Disconnect(f.ctx, a.ID, a.Ports[0].ID))
	f.sync()
	assert.Empty(t, f.svc.Links(br.ID))
	assert.Nil(t, f.get(b.ID).Ports[0].ConnectedTo)
}

func TestConnectStaleReferenceWritesNothing(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	a := f.device(br.ID, "A", models.TypeSwitch, 1, nil)

	err := f.svc.Connect(f.ctx, a.ID, a.Ports[0].ID, "gone", "gone-p1")
	require.ErrorIs(t, err, ErrNotFound)
	f.sync()
	assert.Nil(t, f.get(a.ID).Ports[0].ConnectedTo)

	require.NotEmpty(t, f.logs.AllEntries())
	assert.Equal(t, logrus.WarnLevel, f.logs.LastEntry().Level)
}

func TestConnectOverwriteIsLogged(t *testing.T) {
	for _, strict := range []bool{false, true} {
		f := newFixture(t, nil, Options{StrictConnect: strict})
		br := f.branch("HQ")
		a := f.device(br.ID, "A", models.TypeSwitch, 1, nil)
		b := f.device(br.ID, "B", models.TypeSwitch, 1, nil)
		c := f.device(br.ID, "C", models.TypeSwitch, 1, nil)

		require.NoError(t, f.svc.Connect(f.ctx, a.ID, a.Ports[0].ID, b.ID, b.Ports[0].ID))
		f.sync()
		f.logs.Reset()
		require.NoError(t, f.svc.Connect(f.ctx, a.ID, a.Ports[0].ID, c.ID, c.Ports[0].ID))
		f.sync()

		var warned bool
		for _, e := range f.logs.AllEntries() {
			if e.Level == logrus.WarnLevel && e.Message == "connect overwrote an existing link" {
				warned = true
			}
		}
		assert.True(t, warned)
		if strict {
			assert.Nil(t, f.get(b.ID).Ports[0].ConnectedTo)
			assert.Empty(t, f.svc.Verify())
		} else {
			assert.NotNil(t, f.get(b.ID).Ports[0].ConnectedTo)
			assert.Len(t, f.svc.Verify(), 1)
		}
	}
}

// moveEnd returns the EditConnection port arguments that move deviceID's
// end of old to portID.
func moveEnd(old Link, deviceID, portID string) (src, dst string) {
	if old.Source.DeviceID == deviceID {
		return portID, ""
	}
	return "", portID
}

func TestEditConnection(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	a := f.device(br.ID, "A", models.TypeSwitch, 2, nil)
	b := f.device(br.ID, "B", models.TypeSwitch, 2, nil)
	require.NoError(t, f.svc.Connect(f.ctx, a.ID, a.Ports[0].ID, b.ID, b.Ports[0].ID))
	f.sync()

	old := f.svc.Links(br.ID)[0]
	src, dst := moveEnd(old, b.ID, b.Ports[1].ID)
	require.NoError(t, f.svc.EditConnection(f.ctx, old, src, dst))
	f.sync()

	links := f.svc.Links(br.ID)
	require.Len(t, links, 1)
	assert.Nil(t, f.get(b.ID).Ports[0].ConnectedTo)
	assert.Equal(t, b.Ports[1].ID, f.get(a.ID).Ports[0].ConnectedTo.PortID)
	assert.Empty(t, f.svc.Verify())
}

func TestEditConnectionPartialFailure(t *testing.T) {
	repo := &flakyRepo{MemStore: store.NewMemStore()}
	f := newFixture(t, repo, Options{})
	br := f.branch("HQ")
	a := f.device(br.ID, "A", models.TypeSwitch, 2, nil)
	b := f.device(br.ID, "B", models.TypeSwitch, 2, nil)
	require.NoError(t, f.svc.Connect(f.ctx, a.ID, a.Ports[0].ID, b.ID, b.Ports[0].ID))
	f.sync()

	// connect was Apply #1, the disconnect step is #2, the reconnect #3
	repo.failOn = 3
	old := f.svc.Links(br.ID)[0]
	src, dst := moveEnd(old, a.ID, a.Ports[1].ID)
	err := f.svc.EditConnection(f.ctx, old, src, dst)
	require.ErrorIs(t, err, ErrPartial)
	require.ErrorIs(t, err, errInjected)

	f.sync()
	assert.Empty(t, f.svc.Links(br.ID), "left in the post-disconnect state")
}

func TestEditConnectionRejectsBeforeWriting(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	a := f.device(br.ID, "A", models.TypeSwitch, 1, nil)
	b := f.device(br.ID, "B", models.TypeSwitch, 1, nil)
	require.NoError(t, f.svc.Connect(f.ctx, a.ID, a.Ports[0].ID, b.ID, b.Ports[0].ID))
	f.sync()

	old := f.svc.Links(br.ID)[0]
	src, dst := moveEnd(old, a.ID, "nope")
	err := f.svc.EditConnection(f.ctx, old, src, dst)
	require.ErrorIs(t, err, ErrNotFound)
	f.sync()
	assert.Len(t, f.svc.Links(br.ID), 1)
}

func TestShelfScenario(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	rack := f.rack(br.ID, "Rack A", 42)

	shelf, err := f.svc.QuickCreate(f.ctx, QuickShelf, rack.ID, 10, 0)
	require.NoError(t, err)
	f.sync()
	assert.Equal(t, 4, *shelf.RackHeight)
	assert.Equal(t, 10, *shelf.RackPosition)

	var minis []models.Device
	for _, name := range []string{"m1", "m2", "m3", "m4", "m5"} {
		minis = append(minis, f.device(br.ID, name, "mini-pc", 1, models.Int(0)))
	}
	for _, m := range minis[:4] {
		require.NoError(t, f.svc.Mount(f.ctx, m.ID, rack.ID, 10))
		f.sync()
	}
	err = f.svc.Mount(f.ctx, minis[4].ID, rack.ID, 10)
	require.ErrorIs(t, err, ErrCapacity)
	assert.ErrorIs(t, err, ErrShelfFull)

	srv := f.device(br.ID, "srv", models.TypeServer, 0, nil)
	assert.ErrorIs(t, f.svc.Mount(f.ctx, srv.ID, rack.ID, 12), ErrShelfZeroUOnly)

	dev, shelved, err := f.svc.OccupancyAt(rack.ID, 11)
	require.NoError(t, err)
	require.NotNil(t, dev)
	assert.Equal(t, shelf.ID, dev.ID)
	assert.Empty(t, shelved)
	_, shelved, _ = f.svc.OccupancyAt(rack.ID, 10)
	assert.Len(t, shelved, 4)

	require.NoError(t, f.svc.Unmount(f.ctx, shelf.ID))
	f.sync()
	for _, m := range minis[:4] {
		got := f.get(m.ID)
		assert.False(t, got.Mounted())
		assert.Equal(t, 0, *got.RackHeight)
	}
}

func TestMountRejectsOverlap(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	rack := f.rack(br.ID, "R1", 42)
	a := f.device(br.ID, "a", models.TypeServer, 0, models.Int(2))
	b := f.device(br.ID, "b", models.TypeServer, 0, nil)

	require.NoError(t, f.svc.Mount(f.ctx, a.ID, rack.ID, 20))
	f.sync()
	require.ErrorIs(t, f.svc.Mount(f.ctx, b.ID, rack.ID, 21), ErrOccupied)
	require.NoError(t, f.svc.Mount(f.ctx, b.ID, rack.ID, 22))
	f.sync()

	for u := 1; u <= rack.Height; u++ {
		dev, _, err := f.svc.OccupancyAt(rack.ID, u)
		require.NoError(t, err)
		switch u {
		case 20, 21:
			assert.Equal(t, a.ID, dev.ID)
		case 22:
			assert.Equal(t, b.ID, dev.ID)
		default:
			assert.Nil(t, dev, "U%d", u)
		}
	}
}

func TestDeleteRackUnplacesDevices(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	rack := f.rack(br.ID, "R1", 42)
	d := f.device(br.ID, "sw", models.TypeSwitch, 0, nil)
	require.NoError(t, f.svc.Mount(f.ctx, d.ID, rack.ID, 1))
	f.sync()

	require.NoError(t, f.svc.DeleteRack(f.ctx, rack.ID))
	f.sync()

	got := f.get(d.ID)
	assert.Nil(t, got.RackID)
	assert.Nil(t, got.RackPosition)
	_, err := f.svc.Rack(rack.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteDeviceClearsPeers(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	a := f.device(br.ID, "A", models.TypeSwitch, 2, nil)
	b := f.device(br.ID, "B", models.TypeSwitch, 1, nil)
	c := f.device(br.ID, "C", models.TypeSwitch, 1, nil)
	require.NoError(t, f.svc.Connect(f.ctx, a.ID, a.Ports[0].ID, b.ID, b.Ports[0].ID))
	f.sync()
	require.NoError(t, f.svc.Connect(f.ctx, a.ID, a.Ports[1].ID, c.ID, c.Ports[0].ID))
	f.sync()

	require.NoError(t, f.svc.DeleteDevice(f.ctx, a.ID))
	f.sync()

	assert.Nil(t, f.get(b.ID).Ports[0].ConnectedTo)
	assert.Nil(t, f.get(c.ID).Ports[0].ConnectedTo)
	assert.Empty(t, f.svc.Verify())
	assert.ErrorIs(t, f.svc.DeleteDevice(f.ctx, a.ID), ErrNotFound)
}

func TestUpdateDevicePorts(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	a := f.device(br.ID, "A", models.TypeSwitch, 2, nil)
	b := f.device(br.ID, "B", models.TypeSwitch, 2, nil)
	require.NoError(t, f.svc.Connect(f.ctx, a.ID, a.Ports[0].ID, b.ID, b.Ports[0].ID))
	f.sync()
	require.NoError(t, f.svc.Connect(f.ctx, a.ID, a.Ports[1].ID, b.ID, b.Ports[1].ID))
	f.sync()

	// keep port 1 (renamed), drop port 2, add a new one
	ports := []models.Port{
		{ID: a.Ports[0].ID, Number: 1, Name: "uplink"},
		{Name: "new"},
	}
	err := f.svc.UpdateDevice(f.ctx, a.ID, []string{models.FieldPorts, models.FieldName}, models.Device{Name: "A2", Ports: ports})
	require.NoError(t, err)
	f.sync()

	got := f.get(a.ID)
	assert.Equal(t, "A2", got.Name)
	require.Len(t, got.Ports, 2)
	assert.Equal(t, "uplink", got.Ports[0].Name)
	require.NotNil(t, got.Ports[0].ConnectedTo, "surviving port keeps its link")
	assert.NotEmpty(t, got.Ports[1].ID)
	assert.Equal(t, 2, got.Ports[1].Number)
	assert.Nil(t, got.Ports[1].ConnectedTo)

	assert.Nil(t, f.get(b.ID).Ports[1].ConnectedTo, "peer of the removed port is cleared")
	assert.Empty(t, f.svc.Verify())
}

func TestUpdateDeviceRejects(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	rack := f.rack(br.ID, "R1", 42)
	a := f.device(br.ID, "A", models.TypeSwitch, 0, nil)
	require.NoError(t, f.svc.Mount(f.ctx, a.ID, rack.ID, 1))
	f.sync()

	assert.ErrorIs(t, f.svc.UpdateDevice(f.ctx, a.ID, []string{models.FieldRackID}, models.Device{}), ErrInvalid)
	assert.ErrorIs(t, f.svc.UpdateDevice(f.ctx, a.ID, []string{models.FieldName}, models.Device{Name: " "}), ErrInvalid)
	assert.ErrorIs(t, f.svc.UpdateDevice(f.ctx, a.ID, []string{models.FieldRackHeight}, models.Device{RackHeight: models.Int(3)}), ErrInvalid)
	assert.ErrorIs(t, f.svc.UpdateDevice(f.ctx, "gone", []string{models.FieldName}, models.Device{Name: "x"}), ErrNotFound)
}

func TestUpdateDeviceShelfType(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	rack := f.rack(br.ID, "R1", 42)
	shelf, err := f.svc.QuickCreate(f.ctx, QuickShelf, rack.ID, 10, 0)
	require.NoError(t, err)
	mini := f.device(br.ID, "mini", "mini-pc", 1, models.Int(0))
	require.NoError(t, f.svc.Mount(f.ctx, mini.ID, rack.ID, 10))
	f.sync()

	err = f.svc.UpdateDevice(f.ctx, shelf.ID, []string{models.FieldType}, models.Device{Type: models.TypeServer})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, f.svc.UpdateDevice(f.ctx, mini.ID, []string{models.FieldType}, models.Device{Type: models.TypeShelf}), ErrInvalid)
	assert.NoError(t, f.svc.UpdateDevice(f.ctx, mini.ID, []string{models.FieldType}, models.Device{Type: models.TypeServer}))

	require.NoError(t, f.svc.Unmount(f.ctx, shelf.ID))
	f.sync()
	assert.NoError(t, f.svc.UpdateDevice(f.ctx, shelf.ID, []string{models.FieldType}, models.Device{Type: models.TypeServer}))
}

func TestMoveShelfCarriesContents(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	rack := f.rack(br.ID, "R1", 42)
	shelf, err := f.svc.QuickCreate(f.ctx, QuickShelf, rack.ID, 10, 0)
	require.NoError(t, err)
	mini := f.device(br.ID, "mini", "mini-pc", 1, models.Int(0))
	require.NoError(t, f.svc.Mount(f.ctx, mini.ID, rack.ID, 10))
	f.sync()

	require.NoError(t, f.svc.Mount(f.ctx, shelf.ID, rack.ID, 20))
	f.sync()
	assert.Equal(t, 20, *f.get(mini.ID).RackPosition)

	require.NoError(t, f.svc.Unmount(f.ctx, shelf.ID))
	f.sync()
	assert.Nil(t, f.get(mini.ID).RackID)
}

func TestCreateDeviceMounted(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	rack := f.rack(br.ID, "R1", 10)
	f.device(br.ID, "first", models.TypeServer, 0, nil)
	require.NoError(t, f.svc.Mount(f.ctx, f.svc.Devices(br.ID)[0].ID, rack.ID, 5))
	f.sync()

	clash := models.Device{Name: "clash", Type: models.TypeServer, RackID: models.String(rack.ID), RackPosition: models.Int(5)}
	assert.ErrorIs(t, f.svc.CreateDevice(f.ctx, &clash), ErrOccupied)

	ok := models.Device{Name: "ok", Type: models.TypeServer, RackID: models.String(rack.ID), RackPosition: models.Int(6)}
	require.NoError(t, f.svc.CreateDevice(f.ctx, &ok))

	noPos := models.Device{Name: "nopos", RackID: models.String(rack.ID)}
	assert.ErrorIs(t, f.svc.CreateDevice(f.ctx, &noPos), ErrInvalid)
}

func TestUpdatePort(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	pp, err := f.svc.AddPatchPanel(f.ctx, br.ID, 24)
	require.NoError(t, err)
	f.sync()

	label := "desk 4"
	status := models.PortActive
	require.NoError(t, f.svc.UpdatePort(f.ctx, pp.ID, pp.Ports[3].ID, PortUpdate{Label: &label, Status: &status}))
	f.sync()

	got := f.get(pp.ID)
	assert.Equal(t, "desk 4", got.Ports[3].Label)
	assert.Equal(t, models.PortActive, got.Ports[3].Status)
	assert.Equal(t, "Port 4", got.Ports[3].Name)

	rep := f.svc.Report(br.ID)
	require.Len(t, rep.Panels, 1)
	assert.Equal(t, 1, rep.Panels[0].Configured)

	assert.ErrorIs(t, f.svc.UpdatePort(f.ctx, pp.ID, "nope", PortUpdate{}), ErrNotFound)
}

func TestPatchPanels(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")

	p1, err := f.svc.AddPatchPanel(f.ctx, br.ID, 24)
	require.NoError(t, err)
	f.sync()
	p2, err := f.svc.AddPatchPanel(f.ctx, br.ID, 48)
	require.NoError(t, err)
	f.sync()

	assert.Equal(t, "PATCH PANEL 1 (24P)", p1.Name)
	assert.Equal(t, 1, *p1.RackHeight)
	assert.Len(t, p1.Ports, 24)
	assert.Equal(t, "PATCH PANEL 2 (48P)", p2.Name)
	assert.Equal(t, 2, *p2.RackHeight)
	assert.Equal(t, models.KindPatchPanel, p2.Kind())

	_, err = f.svc.AddPatchPanel(f.ctx, br.ID, 12)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = f.svc.AddPatchPanel(f.ctx, "gone", 24)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInstantiateTemplate(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	tpl := models.DeviceTemplate{
		Name:         "Edge router",
		DefaultPorts: []models.PortTemplate{{Name: "wan", Label: "ISP"}, {}},
	}
	require.NoError(t, f.svc.CreateTemplate(f.ctx, &tpl))
	f.sync()

	d, err := f.svc.InstantiateTemplate(f.ctx, tpl.ID, br.ID, "", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "Edge router", d.Name)
	assert.Equal(t, models.TypeSwitch, d.Type)
	assert.Equal(t, "Unknown", d.Model)
	assert.Equal(t, "Unknown", d.Manufacturer)
	assert.Equal(t, "HQ office", d.Location)
	assert.Equal(t, 1, *d.RackHeight)
	assert.Equal(t, tpl.ID, *d.TemplateID)
	require.Len(t, d.Ports, 2)
	assert.Equal(t, "wan", d.Ports[0].Name)
	assert.Equal(t, "ISP", d.Ports[0].Label)
	assert.Equal(t, "Port 2", d.Ports[1].Name)
	assert.Equal(t, 2, d.Ports[1].Number)
	assert.NotEqual(t, d.Ports[0].ID, d.Ports[1].ID)

	require.NoError(t, f.svc.DeleteTemplate(f.ctx, tpl.ID))
	f.sync()
	assert.Equal(t, tpl.ID, *f.get(d.ID).TemplateID, "devices keep the dangling template id")

	_, err = f.svc.InstantiateTemplate(f.ctx, tpl.ID, br.ID, "x", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRackValidation(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	r := f.rack(br.ID, "R1", 42)

	assert.ErrorIs(t, f.svc.CreateRack(f.ctx, &models.Rack{BranchID: br.ID, Name: "r1", Height: 42}), ErrInvalid)
	assert.ErrorIs(t, f.svc.CreateRack(f.ctx, &models.Rack{BranchID: br.ID, Name: "R2", Height: 0}), ErrInvalid)
	assert.ErrorIs(t, f.svc.CreateRack(f.ctx, &models.Rack{BranchID: "gone", Name: "R2", Height: 42}), ErrNotFound)

	sw := f.device(br.ID, "sw", models.TypeSwitch, 0, nil)
	require.NoError(t, f.svc.Mount(f.ctx, sw.ID, r.ID, 30))
	f.sync()
	assert.ErrorIs(t, f.svc.UpdateRack(f.ctx, &models.Rack{ID: r.ID, Name: "R1", Height: 24}), ErrOutOfRange)
	require.NoError(t, f.svc.UpdateRack(f.ctx, &models.Rack{ID: r.ID, Name: "R1", Height: 30}))
	f.sync()
	got, err := f.svc.Rack(r.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Height)
	assert.Equal(t, br.ID, got.BranchID)
}

func TestDeleteBranchDoesNotCascade(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	d := f.device(br.ID, "sw", models.TypeSwitch, 0, nil)

	require.NoError(t, f.svc.DeleteBranch(f.ctx, br.ID))
	f.sync()
	assert.Empty(t, f.svc.Branches())
	assert.Equal(t, br.ID, *f.get(d.ID).BranchID)
	_, err := f.svc.BranchDevices(br.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTopologyScenario(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	v := f.device(br.ID, "V", models.TypeServer, 1, nil)
	s := f.device(br.ID, "S", models.TypeSwitch, 2, nil)
	fw := f.device(br.ID, "F", models.TypeFirewall, 1, nil)
	require.NoError(t, f.svc.Connect(f.ctx, fw.ID, fw.Ports[0].ID, s.ID, s.Ports[0].ID))
	f.sync()
	require.NoError(t, f.svc.Connect(f.ctx, s.ID, s.Ports[1].ID, v.ID, v.Ports[0].ID))
	f.sync()

	topo := f.svc.Topology(br.ID)
	require.Len(t, topo.Nodes, 3)
	y := map[string]float64{}
	for _, n := range topo.Nodes {
		y[n.Name] = n.Y
	}
	assert.Less(t, y["F"], y["S"])
	assert.Less(t, y["S"], y["V"])
	assert.Len(t, topo.Edges, 2)
}

func TestFilterScenario(t *testing.T) {
	f := newFixture(t, nil, Options{})
	br := f.branch("HQ")
	for _, d := range []models.Device{
		{Name: "a", IPAddress: "192.168.1.10"},
		{Name: "b", IPAddress: "10.0.0.1", SecondaryIP: models.String("192.168.1.20")},
		{Name: "c", IPAddress: "192.168.2.1"},
	} {
		d.BranchID = models.String(br.ID)
		require.NoError(t, f.svc.CreateDevice(f.ctx, &d))
	}
	f.sync()

	var names []string
	for _, d := range f.svc.Filter(br.ID, "192.168.1") {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestRunReconcilesChanges(t *testing.T) {
	repo := store.NewMemStore()
	b := models.Branch{Name: "HQ"}
	require.NoError(t, repo.CreateBranch(context.Background(), &b))

	svc := NewService(repo, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// writes before the subscription are picked up by the initial load
	d := models.Device{Name: "sw", BranchID: models.String(b.ID)}
	require.NoError(t, repo.CreateDevice(context.Background(), &d))
	require.Eventually(t, func() bool {
		_, err := svc.Branch(b.ID)
		return err == nil && len(svc.Devices(b.ID)) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, svc.DeleteDevice(context.Background(), d.ID))
	require.Eventually(t, func() bool {
		return len(svc.Devices("")) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

package inventory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"netdoc/internal/models"

	"github.com/google/uuid"
)

// ── queries ─────────────────────────────────────────────────

// Devices lists the devices of a branch in creation order; an empty
// branch id lists every device.
func (s *Service) Devices(branchID string) []models.Device {
	all := s.Snapshot().Devices
	if branchID == "" {
		return all
	}
	out := make([]models.Device, 0, len(all))
	for _, d := range all {
		if d.BranchID != nil && *d.BranchID == branchID {
			out = append(out, d)
		}
	}
	return out
}

// BranchDevices is Devices for a branch that must exist.
func (s *Service) BranchDevices(branchID string) ([]models.Device, error) {
	if _, err := s.Branch(branchID); err != nil {
		return nil, err
	}
	return s.Devices(branchID), nil
}

func (s *Service) Device(id string) (models.Device, error) {
	d, ok := s.Snapshot().Device(id)
	if !ok {
		return models.Device{}, notFound("device", id)
	}
	return d, nil
}

func (s *Service) Racks(branchID string) []models.Rack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Rack
	for _, r := range s.racks.list() {
		if branchID == "" || r.BranchID == branchID {
			out = append(out, r)
		}
	}
	return out
}

func (s *Service) Rack(id string) (models.Rack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.racks.get(id)
	if !ok {
		return models.Rack{}, notFound("rack", id)
	}
	return r, nil
}

func (s *Service) Branches() []models.Branch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.branches.list()
}

func (s *Service) Branch(id string) (models.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches.get(id)
	if !ok {
		return models.Branch{}, notFound("branch", id)
	}
	return b, nil
}

func (s *Service) Templates() []models.DeviceTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates.list()
}

func (s *Service) Template(id string) (models.DeviceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates.get(id)
	if !ok {
		return models.DeviceTemplate{}, notFound("template", id)
	}
	return t, nil
}

// MountCandidates lists the branch devices that can be mounted, and the
// 0U devices that can go on a shelf.
func (s *Service) MountCandidates(branchID string) (devices, shelved []models.Device) {
	all := s.Devices(branchID)
	return MountCandidates(all), ShelfCandidates(all)
}

// ── devices ─────────────────────────────────────────────────

// preparePorts numbers ports and gives them ids. Incoming links are
// dropped: links are only made through Connect.
func preparePorts(ports []models.Port) []models.Port {
	out := make([]models.Port, len(ports))
	for i, p := range ports {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Number == 0 {
			p.Number = i + 1
		}
		if p.Name == "" {
			p.Name = fmt.Sprintf("Port %d", p.Number)
		}
		if p.Status == "" {
			p.Status = models.PortActive
		}
		p.ConnectedTo = nil
		out[i] = p
	}
	return out
}

// checkPlacement validates the rack fields of a device that is created
// already mounted.
func checkPlacement(snap Snapshot, d models.Device) error {
	if !d.Mounted() {
		return nil
	}
	rack, ok := snap.Rack(*d.RackID)
	if !ok {
		return notFound("rack", *d.RackID)
	}
	if d.RackPosition == nil {
		return fmt.Errorf("%w: rack_position is required with rack_id", ErrInvalid)
	}
	pos, h := *d.RackPosition, d.Height()
	inRack := snap.RackDevices(rack.ID)
	if shelf, ok := ShelfAt(inRack, rack.ID, pos, ""); ok {
		if h != 0 {
			return ErrShelfZeroUOnly
		}
		if *shelf.RackPosition != pos {
			return fmt.Errorf("%w: shelved devices sit at U%d", ErrInvalid, *shelf.RackPosition)
		}
		if len(ShelfContents(inRack, shelf, "")) >= ShelfSlots {
			return ErrShelfFull
		}
		return nil
	}
	occ := BuildOccupancy(rack, inRack)
	if !occ.fits(pos, h) {
		return fmt.Errorf("%w: U%d height %d in %dU rack", ErrOutOfRange, pos, h, rack.Height)
	}
	if !occ.Free(pos, h, "") {
		return fmt.Errorf("%w: U%d-U%d", ErrOccupied, pos, pos+max(h, 1)-1)
	}
	return nil
}

func (s *Service) CreateDevice(ctx context.Context, d *models.Device) error {
	if strings.TrimSpace(d.Name) == "" {
		return s.record("create_device", fmt.Errorf("%w: device name is required", ErrInvalid))
	}
	d.Ports = preparePorts(d.Ports)
	if d.Status == "" {
		d.Status = models.DeviceOnline
	}
	if err := checkPlacement(s.Snapshot(), *d); err != nil {
		return s.record("create_device", err)
	}
	return s.record("create_device", s.repo.CreateDevice(ctx, d))
}

// editableFields are the device columns UpdateDevice accepts. Placement
// goes through Mount and Unmount.
var editableFields = []string{
	models.FieldName, models.FieldBranchID, models.FieldType, models.FieldModel,
	models.FieldManufacturer, models.FieldLocation, models.FieldIPAddress,
	models.FieldSecondaryIP, models.FieldPorts, models.FieldStatus,
	models.FieldDescription, models.FieldRackHeight,
}

// UpdateDevice edits descriptive fields. A new port list keeps the links
// of ports whose id survives; ports that disappear are disconnected from
// their peers in the same batch.
func (s *Service) UpdateDevice(ctx context.Context, id string, fields []string, values models.Device) error {
	const op = "update_device"
	for _, f := range fields {
		if !slices.Contains(editableFields, f) {
			return s.record(op, fmt.Errorf("%w: field %q cannot be updated", ErrInvalid, f))
		}
	}
	snap := s.Snapshot()
	ps := newPatchSet(snap)
	d, ok := ps.get(id)
	if !ok {
		return s.record(op, notFound("device", id))
	}
	if slices.Contains(fields, models.FieldName) && strings.TrimSpace(values.Name) == "" {
		return s.record(op, fmt.Errorf("%w: device name is required", ErrInvalid))
	}
	if slices.Contains(fields, models.FieldRackHeight) && d.Mounted() && !sameInt(d.RackHeight, values.RackHeight) {
		return s.record(op, fmt.Errorf("%w: unmount the device before changing its height", ErrInvalid))
	}
	if slices.Contains(fields, models.FieldType) && d.Mounted() &&
		(d.Kind() == models.KindShelf) != (models.ParseDeviceType(values.Type).Kind == models.KindShelf) {
		return s.record(op, fmt.Errorf("%w: unmount the device before turning it into or out of a shelf", ErrInvalid))
	}

	var rest []string
	for _, f := range fields {
		if f != models.FieldPorts {
			rest = append(rest, f)
		}
	}
	d.ApplyFields(values, rest)
	ps.mark(id, rest...)

	if slices.Contains(fields, models.FieldPorts) {
		old := d.Ports
		next := preparePorts(values.Ports)
		kept := make(map[string]bool, len(next))
		for i := range next {
			if j := d.Port(next[i].ID); j >= 0 {
				next[i].ConnectedTo = old[j].ConnectedTo
			}
			kept[next[i].ID] = true
		}
		d.Ports = next
		ps.mark(id, models.FieldPorts)
		for _, p := range old {
			if kept[p.ID] || p.ConnectedTo == nil {
				continue
			}
			peer, ok := ps.get(p.ConnectedTo.DeviceID)
			if !ok {
				continue
			}
			if j := peer.Port(p.ConnectedTo.PortID); j >= 0 && pointsAt(peer.Ports[j].ConnectedTo, id, p.ID) {
				peer.Ports[j].ConnectedTo = nil
				ps.mark(peer.ID, models.FieldPorts)
			}
		}
	}
	return s.apply(ctx, op, ps.batch())
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// PortUpdate carries the port attributes a user can edit. Nil leaves the
// attribute unchanged.
type PortUpdate struct {
	Name   *string
	Label  *string
	Status *models.PortStatus
	Speed  *string
	VLAN   *string
	Color  *string
}

func (s *Service) UpdatePort(ctx context.Context, deviceID, portID string, u PortUpdate) error {
	ps := newPatchSet(s.Snapshot())
	d, ok := ps.get(deviceID)
	if !ok {
		return s.record("update_port", notFound("device", deviceID))
	}
	i := d.Port(portID)
	if i < 0 {
		return s.record("update_port", notFound("port", portID))
	}
	p := &d.Ports[i]
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.Name, u.Name)
	set(&p.Label, u.Label)
	set(&p.Speed, u.Speed)
	set(&p.VLAN, u.VLAN)
	set(&p.Color, u.Color)
	if u.Status != nil {
		p.Status = *u.Status
	}
	ps.mark(deviceID, models.FieldPorts)
	return s.apply(ctx, "update_port", ps.batch())
}

// DeleteDevice removes a device, clears every port that links to it and
// releases the contents of a mounted shelf, all in one batch.
func (s *Service) DeleteDevice(ctx context.Context, id string) error {
	snap := s.Snapshot()
	ps := newPatchSet(snap)
	d, ok := ps.get(id)
	if !ok {
		return s.record("delete_device", notFound("device", id))
	}
	for _, other := range snap.Devices {
		if other.ID == id {
			continue
		}
		for j, p := range other.Ports {
			if p.ConnectedTo == nil || p.ConnectedTo.DeviceID != id {
				continue
			}
			od, _ := ps.get(other.ID)
			od.Ports[j].ConnectedTo = nil
			ps.mark(other.ID, models.FieldPorts)
		}
	}
	if d.Kind() == models.KindShelf && d.Mounted() {
		unmountShelfContents(ps, snap, *d)
	}
	ps.removeDevice(id)
	return s.apply(ctx, "delete_device", ps.batch())
}

// ── racks ───────────────────────────────────────────────────

func (s *Service) CreateRack(ctx context.Context, r *models.Rack) error {
	if strings.TrimSpace(r.Name) == "" || r.Height < 1 {
		return s.record("create_rack", fmt.Errorf("%w: rack needs a name and a height of at least 1U", ErrInvalid))
	}
	if _, err := s.Branch(r.BranchID); err != nil {
		return s.record("create_rack", err)
	}
	if s.rackNameTaken(r.BranchID, r.Name, "") {
		return s.record("create_rack", fmt.Errorf("%w: rack %q already exists in branch", ErrInvalid, r.Name))
	}
	return s.record("create_rack", s.repo.CreateRack(ctx, r))
}

// UpdateRack renames or resizes a rack. Shrinking below a mounted device
// is refused.
func (s *Service) UpdateRack(ctx context.Context, r *models.Rack) error {
	snap := s.Snapshot()
	cur, ok := snap.Rack(r.ID)
	if !ok {
		return s.record("update_rack", notFound("rack", r.ID))
	}
	if strings.TrimSpace(r.Name) == "" || r.Height < 1 {
		return s.record("update_rack", fmt.Errorf("%w: rack needs a name and a height of at least 1U", ErrInvalid))
	}
	if s.rackNameTaken(cur.BranchID, r.Name, r.ID) {
		return s.record("update_rack", fmt.Errorf("%w: rack %q already exists in branch", ErrInvalid, r.Name))
	}
	for _, d := range snap.RackDevices(r.ID) {
		if d.RackPosition == nil {
			continue
		}
		top := *d.RackPosition + max(d.Height(), 1) - 1
		if d.Kind() == models.KindShelf {
			top = *d.RackPosition + shelfSpan(d) - 1
		}
		if top > r.Height {
			return s.record("update_rack", fmt.Errorf("%w: %s reaches U%d", ErrOutOfRange, d.Name, top))
		}
	}
	r.BranchID = cur.BranchID
	r.CreatedAt = cur.CreatedAt
	return s.record("update_rack", s.repo.UpdateRack(ctx, r))
}

func (s *Service) rackNameTaken(branchID, name, skip string) bool {
	for _, r := range s.Racks(branchID) {
		if r.ID != skip && strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

// DeleteRack removes the rack and leaves its devices unplaced.
func (s *Service) DeleteRack(ctx context.Context, id string) error {
	snap := s.Snapshot()
	if _, ok := snap.Rack(id); !ok {
		return s.record("delete_rack", notFound("rack", id))
	}
	ps := newPatchSet(snap)
	for _, d := range snap.RackDevices(id) {
		pd, _ := ps.get(d.ID)
		pd.RackID = nil
		pd.RackPosition = nil
		ps.mark(d.ID, models.FieldRackID, models.FieldRackPosition)
	}
	ps.removeRack(id)
	return s.apply(ctx, "delete_rack", ps.batch())
}

// ── branches ────────────────────────────────────────────────

func (s *Service) CreateBranch(ctx context.Context, b *models.Branch) error {
	if strings.TrimSpace(b.Name) == "" {
		return s.record("create_branch", fmt.Errorf("%w: branch name is required", ErrInvalid))
	}
	return s.record("create_branch", s.repo.CreateBranch(ctx, b))
}

func (s *Service) UpdateBranch(ctx context.Context, b *models.Branch) error {
	if strings.TrimSpace(b.Name) == "" {
		return s.record("update_branch", fmt.Errorf("%w: branch name is required", ErrInvalid))
	}
	return s.record("update_branch", s.repo.UpdateBranch(ctx, b))
}

// DeleteBranch removes only the branch record. Its devices and racks keep
// the dangling branch id.
func (s *Service) DeleteBranch(ctx context.Context, id string) error {
	return s.record("delete_branch", s.repo.RemoveBranch(ctx, id))
}

// ── templates ───────────────────────────────────────────────

func (s *Service) CreateTemplate(ctx context.Context, t *models.DeviceTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return s.record("create_template", fmt.Errorf("%w: template name is required", ErrInvalid))
	}
	return s.record("create_template", s.repo.CreateTemplate(ctx, t))
}

func (s *Service) UpdateTemplate(ctx context.Context, t *models.DeviceTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return s.record("update_template", fmt.Errorf("%w: template name is required", ErrInvalid))
	}
	return s.record("update_template", s.repo.UpdateTemplate(ctx, t))
}

// DeleteTemplate leaves devices built from the template untouched.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	return s.record("delete_template", s.repo.RemoveTemplate(ctx, id))
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// FromTemplate builds an unsaved device from a template in a branch.
func FromTemplate(t models.DeviceTemplate, branch models.Branch, name, ip string) models.Device {
	ports := make([]models.Port, len(t.DefaultPorts))
	for i, pt := range t.DefaultPorts {
		ports[i] = models.Port{
			Number: i + 1,
			Name:   orDefault(pt.Name, fmt.Sprintf("Port %d", i+1)),
			Label:  pt.Label,
			Status: models.PortActive,
		}
	}
	height := 1
	if t.RackHeight != nil {
		height = *t.RackHeight
	}
	return models.Device{
		BranchID:     models.String(branch.ID),
		TemplateID:   models.String(t.ID),
		Name:         orDefault(name, t.Name),
		Type:         orDefault(t.Type, models.TypeSwitch),
		Model:        orDefault(t.Model, "Unknown"),
		Manufacturer: orDefault(t.Manufacturer, "Unknown"),
		Location:     branch.Location,
		IPAddress:    ip,
		Ports:        ports,
		Status:       models.DeviceOnline,
		RackHeight:   models.Int(height),
		Description:  t.Description,
	}
}

func (s *Service) InstantiateTemplate(ctx context.Context, templateID, branchID, name, ip string) (models.Device, error) {
	t, err := s.Template(templateID)
	if err != nil {
		return models.Device{}, s.record("instantiate_template", err)
	}
	b, err := s.Branch(branchID)
	if err != nil {
		return models.Device{}, s.record("instantiate_template", err)
	}
	d := FromTemplate(t, b, name, ip)
	if err := s.CreateDevice(ctx, &d); err != nil {
		return models.Device{}, err
	}
	return d, nil
}

// NewPatchPanel builds an unsaved patch panel. 24 ports take 1U and 48
// ports take 2U; the name is numbered after the panels already in the
// branch.
func NewPatchPanel(branch models.Branch, existing []models.Device, ports int) (models.Device, error) {
	var height int
	switch ports {
	case 24:
		height = 1
	case 48:
		height = 2
	default:
		return models.Device{}, fmt.Errorf("%w: patch panels have 24 or 48 ports, not %d", ErrInvalid, ports)
	}
	n := 1
	for _, d := range existing {
		if d.Kind() == models.KindPatchPanel && d.BranchID != nil && *d.BranchID == branch.ID {
			n++
		}
	}
	pp := make([]models.Port, ports)
	for i := range pp {
		pp[i] = models.Port{Number: i + 1, Name: fmt.Sprintf("Port %d", i+1), Status: models.PortInactive}
	}
	return models.Device{
		BranchID:     models.String(branch.ID),
		Name:         fmt.Sprintf("PATCH PANEL %d (%dP)", n, ports),
		Type:         models.TypePatchPanel,
		Model:        fmt.Sprintf("%d-Port", ports),
		Manufacturer: "Generic",
		Location:     branch.Location,
		Ports:        pp,
		Status:       models.DeviceOnline,
		RackHeight:   models.Int(height),
	}, nil
}

func (s *Service) AddPatchPanel(ctx context.Context, branchID string, ports int) (models.Device, error) {
	b, err := s.Branch(branchID)
	if err != nil {
		return models.Device{}, s.record("add_patch_panel", err)
	}
	d, err := NewPatchPanel(b, s.Devices(branchID), ports)
	if err != nil {
		return models.Device{}, s.record("add_patch_panel", err)
	}
	if err := s.CreateDevice(ctx, &d); err != nil {
		return models.Device{}, err
	}
	return d, nil
}

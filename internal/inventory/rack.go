package inventory

import (
	"fmt"

	"netdoc/internal/models"
	"netdoc/internal/store"
)

const (
	// ShelfSlots is how many 0U devices a shelf holds.
	ShelfSlots = 4
	// ShelfHeight is the rack height of a quick-created shelf.
	ShelfHeight = 4
)

// Occupancy maps rack units to the device covering them.
type Occupancy struct {
	Rack  models.Rack
	units map[int]models.Device
	zeroU map[int][]models.Device
}

// BuildOccupancy scans the devices placed in rack. Devices of height >= 1
// cover [position, position+height); 0U devices are listed by position.
func BuildOccupancy(rack models.Rack, devices []models.Device) Occupancy {
	o := Occupancy{Rack: rack, units: make(map[int]models.Device), zeroU: make(map[int][]models.Device)}
	for _, d := range devices {
		if !d.InRack(rack.ID) || d.RackPosition == nil {
			continue
		}
		pos, h := *d.RackPosition, d.Height()
		if h == 0 {
			o.zeroU[pos] = append(o.zeroU[pos], d)
			continue
		}
		for u := pos; u < pos+h; u++ {
			o.units[u] = d
		}
	}
	return o
}

// At returns the device covering unit and the 0U devices positioned there.
func (o Occupancy) At(unit int) (*models.Device, []models.Device) {
	var dev *models.Device
	if d, ok := o.units[unit]; ok {
		dev = &d
	}
	return dev, o.zeroU[unit]
}

// Free reports whether [unit, unit+height) is empty, ignoring device skip.
func (o Occupancy) Free(unit, height int, skip string) bool {
	for u := unit; u < unit+height; u++ {
		if d, ok := o.units[u]; ok && d.ID != skip {
			return false
		}
	}
	return true
}

// looseZeroU returns a 0U device positioned strictly inside
// (unit, unit+height), ignoring the ids in skip. A shelf spanning those
// units would hide it without counting it.
func (o Occupancy) looseZeroU(unit, height int, skip map[string]bool) (models.Device, bool) {
	for u := unit + 1; u < unit+height; u++ {
		for _, d := range o.zeroU[u] {
			if !skip[d.ID] {
				return d, true
			}
		}
	}
	return models.Device{}, false
}

func (o Occupancy) fits(unit, height int) bool {
	if height == 0 {
		height = 1
	}
	return unit >= 1 && unit+height-1 <= o.Rack.Height
}

// shelfSpan is the height a shelf covers; an unset or zero height means 4U.
func shelfSpan(d models.Device) int {
	if d.RackHeight == nil || *d.RackHeight == 0 {
		return ShelfHeight
	}
	return *d.RackHeight
}

// ShelfAt returns the shelf in the rack whose span covers unit.
func ShelfAt(devices []models.Device, rackID string, unit int, skip string) (models.Device, bool) {
	for _, d := range devices {
		if d.ID == skip || d.Kind() != models.KindShelf || !d.InRack(rackID) || d.RackPosition == nil {
			continue
		}
		pos := *d.RackPosition
		if unit >= pos && unit < pos+shelfSpan(d) {
			return d, true
		}
	}
	return models.Device{}, false
}

// ShelfContents lists the 0U devices sitting at the shelf's position.
func ShelfContents(devices []models.Device, shelf models.Device, skip string) []models.Device {
	if shelf.RackID == nil || shelf.RackPosition == nil {
		return nil
	}
	var out []models.Device
	for _, d := range devices {
		if d.ID == skip || d.ID == shelf.ID || !d.InRack(*shelf.RackID) {
			continue
		}
		if d.RackHeight != nil && *d.RackHeight == 0 && d.RackPosition != nil && *d.RackPosition == *shelf.RackPosition {
			out = append(out, d)
		}
	}
	return out
}

// PlanMount places a device at unit. Inside a shelf only 0U devices are
// accepted, up to ShelfSlots; elsewhere the span must be free and inside
// the rack.
func PlanMount(s Snapshot, deviceID, rackID string, unit int) (store.Batch, error) {
	ps := newPatchSet(s)
	d, ok := ps.get(deviceID)
	if !ok {
		return store.Batch{}, notFound("device", deviceID)
	}
	rack, ok := s.Rack(rackID)
	if !ok {
		return store.Batch{}, notFound("rack", rackID)
	}
	inRack := s.RackDevices(rackID)

	var pos, height int
	if shelf, ok := ShelfAt(inRack, rackID, unit, deviceID); ok {
		if d.Height() != 0 {
			return store.Batch{}, ErrShelfZeroUOnly
		}
		if len(ShelfContents(inRack, shelf, deviceID)) >= ShelfSlots {
			return store.Batch{}, ErrShelfFull
		}
		pos, height = *shelf.RackPosition, 0
	} else {
		pos, height = unit, d.Height()
		occ := BuildOccupancy(rack, inRack)
		if !occ.fits(pos, height) {
			return store.Batch{}, fmt.Errorf("%w: U%d height %d in %dU rack", ErrOutOfRange, pos, height, rack.Height)
		}
		if !occ.Free(pos, height, deviceID) {
			return store.Batch{}, fmt.Errorf("%w: U%d-U%d", ErrOccupied, pos, pos+max(height, 1)-1)
		}
	}

	var carried []models.Device
	if d.Kind() == models.KindShelf && height > 0 {
		var err error
		if carried, err = planShelfMove(s, *d, rack, inRack, pos, height); err != nil {
			return store.Batch{}, err
		}
	}

	d.RackID = models.String(rack.ID)
	d.RackPosition = models.Int(pos)
	d.RackHeight = models.Int(height)
	ps.mark(d.ID, models.FieldRackID, models.FieldRackPosition, models.FieldRackHeight)
	for _, c := range carried {
		cd, ok := ps.get(c.ID)
		if !ok {
			continue
		}
		cd.RackID = models.String(rack.ID)
		cd.RackPosition = models.Int(pos)
		cd.RackHeight = models.Int(0)
		ps.mark(cd.ID, models.FieldRackID, models.FieldRackPosition, models.FieldRackHeight)
	}
	return ps.batch(), nil
}

// planShelfMove checks a shelf landing at pos and returns the 0U devices
// it already holds, which travel with it. Loose 0U devices inside the new
// span are rejected, and those at pos join the shelf only if they fit.
func planShelfMove(s Snapshot, shelf models.Device, rack models.Rack, inRack []models.Device, pos, height int) ([]models.Device, error) {
	var carried []models.Device
	if shelf.Mounted() {
		carried = ShelfContents(s.RackDevices(*shelf.RackID), shelf, "")
	}
	skip := make(map[string]bool, len(carried))
	for _, c := range carried {
		skip[c.ID] = true
	}
	occ := BuildOccupancy(rack, inRack)
	if z, ok := occ.looseZeroU(pos, height, skip); ok {
		return nil, fmt.Errorf("%w: 0U device %q at U%d", ErrOccupied, z.Name, *z.RackPosition)
	}
	held := len(carried)
	for _, z := range occ.zeroU[pos] {
		if !skip[z.ID] {
			held++
		}
	}
	if held > ShelfSlots {
		return nil, ErrShelfFull
	}
	return carried, nil
}

// PlanUnmount takes a device out of its rack. A shelf releases its 0U
// devices first; they stay 0U so they can be shelved again.
func PlanUnmount(s Snapshot, deviceID string) (store.Batch, error) {
	ps := newPatchSet(s)
	d, ok := ps.get(deviceID)
	if !ok {
		return store.Batch{}, notFound("device", deviceID)
	}
	if d.Kind() == models.KindShelf && d.Mounted() {
		unmountShelfContents(ps, s, *d)
	}
	d.RackID = nil
	d.RackPosition = nil
	ps.mark(d.ID, models.FieldRackID, models.FieldRackPosition)
	return ps.batch(), nil
}

func unmountShelfContents(ps *patchSet, s Snapshot, shelf models.Device) {
	for _, c := range ShelfContents(s.RackDevices(*shelf.RackID), shelf, "") {
		cd, ok := ps.get(c.ID)
		if !ok {
			continue
		}
		cd.RackID = nil
		cd.RackPosition = nil
		cd.RackHeight = models.Int(0)
		ps.mark(cd.ID, models.FieldRackID, models.FieldRackPosition, models.FieldRackHeight)
	}
}

// QuickKind is the passive furniture that can be created straight into a rack.
type QuickKind string

const (
	QuickCableManager QuickKind = models.TypeCableManager
	QuickShelf        QuickKind = models.TypeShelf
)

// NewQuickDevice builds a portless passive device mounted at unit. Cable
// managers default to 1U; shelves are always 4U.
func NewQuickDevice(s Snapshot, kind QuickKind, rackID string, unit, height int) (models.Device, error) {
	rack, ok := s.Rack(rackID)
	if !ok {
		return models.Device{}, notFound("rack", rackID)
	}
	d := models.Device{
		BranchID:     models.String(rack.BranchID),
		Type:         string(kind),
		Manufacturer: "Generic",
		Location:     "Rack",
		Status:       models.DeviceOnline,
		Ports:        []models.Port{},
		RackID:       models.String(rack.ID),
		RackPosition: models.Int(unit),
	}
	switch kind {
	case QuickCableManager:
		if height <= 0 {
			height = 1
		}
		d.Name = fmt.Sprintf("Cable Manager U%d (%dU)", unit, height)
		d.Model = fmt.Sprintf("Horizontal %dU", height)
	case QuickShelf:
		height = ShelfHeight
		d.Name = fmt.Sprintf("Shelf U%d", unit)
		d.Model = "Equipment Shelf 4U"
	default:
		return models.Device{}, fmt.Errorf("%w: unknown quick device kind %q", ErrInvalid, kind)
	}
	d.RackHeight = models.Int(height)

	occ := BuildOccupancy(rack, s.RackDevices(rackID))
	if !occ.fits(unit, height) {
		return models.Device{}, fmt.Errorf("%w: U%d height %d in %dU rack", ErrOutOfRange, unit, height, rack.Height)
	}
	if !occ.Free(unit, height, "") {
		return models.Device{}, fmt.Errorf("%w: U%d-U%d", ErrOccupied, unit, unit+height-1)
	}
	if kind == QuickShelf {
		if z, ok := occ.looseZeroU(unit, height, nil); ok {
			return models.Device{}, fmt.Errorf("%w: 0U device %q at U%d", ErrOccupied, z.Name, *z.RackPosition)
		}
	}
	return d, nil
}

// UnitRow is one rack unit in an elevation, listed top to bottom.
type UnitRow struct {
	Unit   int             `json:"unit"`
	Device *models.Device  `json:"device,omitempty"`
	Start  bool            `json:"start,omitempty"`
	ZeroU  []models.Device `json:"zero_u,omitempty"`
	Shelf  *ShelfView      `json:"shelf,omitempty"`
}

type ShelfView struct {
	Devices []models.Device `json:"devices"`
	Free    int             `json:"free"`
}

// Elevation lays the rack out unit by unit from the top.
func Elevation(rack models.Rack, devices []models.Device) []UnitRow {
	inRack := make([]models.Device, 0, len(devices))
	for _, d := range devices {
		if d.InRack(rack.ID) {
			inRack = append(inRack, d)
		}
	}
	occ := BuildOccupancy(rack, inRack)
	rows := make([]UnitRow, 0, rack.Height)
	for u := rack.Height; u >= 1; u-- {
		dev, zero := occ.At(u)
		row := UnitRow{Unit: u, Device: dev, ZeroU: zero}
		if dev != nil && dev.RackPosition != nil && *dev.RackPosition == u {
			row.Start = true
			if dev.Kind() == models.KindShelf {
				content := ShelfContents(inRack, *dev, "")
				row.Shelf = &ShelfView{Devices: content, Free: max(ShelfSlots-len(content), 0)}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// MountCandidates are unplaced devices that are not rack furniture.
func MountCandidates(devices []models.Device) []models.Device {
	var out []models.Device
	for _, d := range devices {
		k := d.Kind()
		if !d.Mounted() && k != models.KindShelf && k != models.KindCableManager {
			out = append(out, d)
		}
	}
	return out
}

// ShelfCandidates are unplaced devices explicitly marked 0U.
func ShelfCandidates(devices []models.Device) []models.Device {
	var out []models.Device
	for _, d := range devices {
		if !d.Mounted() && d.RackHeight != nil && *d.RackHeight == 0 {
			out = append(out, d)
		}
	}
	return out
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
	DeviceWarning DeviceStatus = "warning"
)

type PortStatus string

const (
	PortActive   PortStatus = "active"
	PortInactive PortStatus = "inactive"
	PortError    PortStatus = "error"
)

// PortLink describes the peer end of a cable. Name and number are snapshots
// taken when the link was made.
type PortLink struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	PortID     string `json:"port_id"`
	PortNumber int    `json:"port_number"`
}

type Port struct {
	ID          string     `json:"id"`
	Number      int        `json:"number"`
	Name        string     `json:"name"`
	Label       string     `json:"label,omitempty"`
	ConnectedTo *PortLink  `json:"connected_to,omitempty"`
	Status      PortStatus `json:"status"`
	Speed       string     `json:"speed,omitempty"`
	VLAN        string     `json:"vlan,omitempty"`
	Color       string     `json:"color,omitempty"`
}

// Device is any catalogued rack or network element. Ports live in a JSON
// column; they are owned by the device and never shared.
type Device struct {
	ID           string                    `gorm:"primaryKey;size:36" json:"id"`
	BranchID     *string                   `gorm:"size:36;index" json:"branch_id,omitempty"`
	TemplateID   *string                   `gorm:"size:36" json:"template_id,omitempty"`
	Name         string                    `gorm:"size:255" json:"name"`
	Type         string                    `gorm:"size:64;index" json:"type"`
	Model        string                    `gorm:"size:255" json:"model"`
	Manufacturer string                    `gorm:"size:255" json:"manufacturer"`
	Location     string                    `gorm:"size:255" json:"location"`
	IPAddress    string                    `gorm:"column:ip_address;size:64" json:"ip_address"`
	SecondaryIP  *string                   `gorm:"column:secondary_ip_address;size:64" json:"secondary_ip_address,omitempty"`
	Ports        datatypes.JSONSlice[Port] `gorm:"type:json" json:"ports"`
	Status       DeviceStatus              `gorm:"size:16;default:'online'" json:"status"`
	Description  string                    `gorm:"type:text" json:"description,omitempty"`
	RackID       *string                   `gorm:"size:36;index" json:"rack_id,omitempty"`
	RackPosition *int                      `json:"rack_position,omitempty"`
	RackHeight   *int                      `json:"rack_height,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// Updatable device columns. Store updates name the columns they touch.
const (
	FieldName         = "name"
	FieldBranchID     = "branch_id"
	FieldType         = "type"
	FieldModel        = "model"
	FieldManufacturer = "manufacturer"
	FieldLocation     = "location"
	FieldIPAddress    = "ip_address"
	FieldSecondaryIP  = "secondary_ip_address"
	FieldPorts        = "ports"
	FieldStatus       = "status"
	FieldDescription  = "description"
	FieldRackID       = "rack_id"
	FieldRackPosition = "rack_position"
	FieldRackHeight   = "rack_height"
	FieldUpdatedAt    = "updated_at"
)

func (d *Device) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// Height returns the rack height in units; an unset height counts as 1U.
func (d Device) Height() int {
	if d.RackHeight == nil {
		return 1
	}
	return *d.RackHeight
}

// Mounted reports whether the device is placed in a rack.
func (d Device) Mounted() bool { return d.RackID != nil && *d.RackID != "" }

func (d Device) InRack(rackID string) bool { return d.Mounted() && *d.RackID == rackID }

func (d Device) Kind() Kind { return ParseDeviceType(d.Type).Kind }

// Port returns the index of the port with the given id, or -1.
func (d Device) Port(id string) int {
	for i := range d.Ports {
		if d.Ports[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can edit ports and pointers freely.
func (d Device) Clone() Device {
	out := d
	out.BranchID = cloneString(d.BranchID)
	out.TemplateID = cloneString(d.TemplateID)
	out.SecondaryIP = cloneString(d.SecondaryIP)
	out.RackID = cloneString(d.RackID)
	out.RackPosition = cloneInt(d.RackPosition)
	out.RackHeight = cloneInt(d.RackHeight)
	if d.Ports != nil {
		out.Ports = make(datatypes.JSONSlice[Port], len(d.Ports))
		for i, p := range d.Ports {
			if p.ConnectedTo != nil {
				link := *p.ConnectedTo
				p.ConnectedTo = &link
			}
			out.Ports[i] = p
		}
	}
	return out
}

// ApplyFields copies the named columns from src onto d.
func (d *Device) ApplyFields(src Device, fields []string) {
	src = src.Clone()
	for _, f := range fields {
		switch f {
		case FieldName:
			d.Name = src.Name
		case FieldBranchID:
			d.BranchID = src.BranchID
		case FieldType:
			d.Type = src.Type
		case FieldModel:
			d.Model = src.Model
		case FieldManufacturer:
			d.Manufacturer = src.Manufacturer
		case FieldLocation:
			d.Location = src.Location
		case FieldIPAddress:
			d.IPAddress = src.IPAddress
		case FieldSecondaryIP:
			d.SecondaryIP = src.SecondaryIP
		case FieldPorts:
			d.Ports = src.Ports
		case FieldStatus:
			d.Status = src.Status
		case FieldDescription:
			d.Description = src.Description
		case FieldRackID:
			d.RackID = src.RackID
		case FieldRackPosition:
			d.RackPosition = src.RackPosition
		case FieldRackHeight:
			d.RackHeight = src.RackHeight
		case FieldUpdatedAt:
			d.UpdatedAt = src.UpdatedAt
		}
	}
}

func String(s string) *string { return &s }
func Int(n int) *int          { return &n }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

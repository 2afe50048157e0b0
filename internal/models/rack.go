package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Rack struct {
	ID                      string    `gorm:"primaryKey;size:36" json:"id"`
	BranchID                string    `gorm:"size:36;index" json:"branch_id"`
	Name                    string    `gorm:"size:255" json:"name"`
	Height                  int       `json:"height"`
	HasVerticalCableManager bool      `json:"has_vertical_cable_manager,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
}

func (r *Rack) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type Branch struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:255" json:"name"`
	Location    string    `gorm:"size:255" json:"location"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (b *Branch) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

type PortTemplate struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
}

// DeviceTemplate pre-populates new devices. Devices keep only its id.
type DeviceTemplate struct {
	ID           string                            `gorm:"primaryKey;size:36" json:"id"`
	Name         string                            `gorm:"size:255" json:"name"`
	Type         string                            `gorm:"size:64" json:"type"`
	Model        string                            `gorm:"size:255" json:"model"`
	Manufacturer string                            `gorm:"size:255" json:"manufacturer"`
	DefaultPorts datatypes.JSONSlice[PortTemplate] `gorm:"type:json" json:"default_ports"`
	RackHeight   *int                              `json:"rack_height,omitempty"`
	Description  string                            `gorm:"type:text" json:"description,omitempty"`
	CreatedAt    time.Time                         `json:"created_at"`
}

func (t *DeviceTemplate) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

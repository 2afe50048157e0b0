package models

import "strings"

// Kind is the closed set of device types the inventory knows about.
// Anything else is KindCustom and keeps the operator's string.
type Kind int

const (
	KindCustom Kind = iota
	KindFirewall
	KindRouter
	KindSwitch
	KindServer
	KindAccessPoint
	KindPatchPanel
	KindShelf
	KindCableManager
)

const (
	TypeFirewall     = "firewall"
	TypeRouter       = "router"
	TypeSwitch       = "switch"
	TypeServer       = "server"
	TypeAccessPoint  = "access-point"
	TypePatchPanel   = "patch-panel"
	TypeShelf        = "shelf"
	TypeCableManager = "cable-manager"
)

// DeviceType pairs a Kind with the raw type string it was parsed from.
type DeviceType struct {
	Kind   Kind
	Custom string
}

// ParseDeviceType maps a free-form type tag to its variant. Passive rack
// furniture only matches the exact literal; the active kinds are matched
// case-insensitively.
func ParseDeviceType(s string) DeviceType {
	switch s {
	case TypePatchPanel:
		return DeviceType{Kind: KindPatchPanel}
	case TypeShelf:
		return DeviceType{Kind: KindShelf}
	case TypeCableManager:
		return DeviceType{Kind: KindCableManager}
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case TypeFirewall:
		return DeviceType{Kind: KindFirewall}
	case TypeRouter:
		return DeviceType{Kind: KindRouter}
	case TypeSwitch:
		return DeviceType{Kind: KindSwitch}
	case TypeServer:
		return DeviceType{Kind: KindServer}
	case TypeAccessPoint:
		return DeviceType{Kind: KindAccessPoint}
	}
	return DeviceType{Kind: KindCustom, Custom: s}
}

func (t DeviceType) String() string {
	if t.Kind == KindCustom {
		return t.Custom
	}
	return t.Kind.String()
}

func (k Kind) String() string {
	switch k {
	case KindFirewall:
		return TypeFirewall
	case KindRouter:
		return TypeRouter
	case KindSwitch:
		return TypeSwitch
	case KindServer:
		return TypeServer
	case KindAccessPoint:
		return TypeAccessPoint
	case KindPatchPanel:
		return TypePatchPanel
	case KindShelf:
		return TypeShelf
	case KindCableManager:
		return TypeCableManager
	default:
		return "custom"
	}
}

// Layer is the topology layer: firewalls on top, unknown types at the bottom.
func (k Kind) Layer() int {
	switch k {
	case KindFirewall:
		return 0
	case KindRouter:
		return 1
	case KindSwitch:
		return 2
	case KindServer:
		return 3
	case KindAccessPoint:
		return 4
	case KindPatchPanel:
		return 5
	default:
		return 6
	}
}

// Rank orders link endpoints for display; higher goes on the left.
func (k Kind) Rank() int {
	switch k {
	case KindFirewall:
		return 5
	case KindRouter:
		return 4
	case KindSwitch:
		return 3
	case KindServer:
		return 2
	case KindAccessPoint:
		return 1
	default:
		return 0
	}
}

// Passive kinds are rack furniture and never appear in the topology.
func (k Kind) Passive() bool {
	return k == KindPatchPanel || k == KindShelf || k == KindCableManager
}

func (k Kind) Color() string {
	switch k {
	case KindFirewall:
		return "#ef4444"
	case KindRouter:
		return "#f97316"
	case KindSwitch:
		return "#3b82f6"
	case KindServer:
		return "#8b5cf6"
	case KindAccessPoint:
		return "#10b981"
	case KindPatchPanel:
		return "#64748b"
	case KindCableManager:
		return "#1a1a1a"
	case KindShelf:
		return "#a855f7"
	default:
		return "#525252"
	}
}

package inventory

import (
	"fmt"
	"sort"
	"strings"

	"netdoc/internal/models"
)

// Topology layout constants, in diagram pixels.
const (
	nodeWidth = 200
	nodeGap   = 50
	levelGap  = 180
	centerX   = 400
)

type Node struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Layer  int     `json:"layer"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color"`
	Status string  `json:"status"`
	IP     string  `json:"ip_address,omitempty"`
}

type Edge struct {
	ID               string `json:"id"`
	Source           string `json:"source"`
	Target           string `json:"target"`
	SourceDevice     string `json:"source_device"`
	TargetDevice     string `json:"target_device"`
	SourcePort       string `json:"source_port"`
	TargetPort       string `json:"target_port"`
	SourcePortNumber int    `json:"source_port_number"`
	TargetPortNumber int    `json:"target_port_number"`
}

type Topology struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func portLabel(p models.Port) string {
	if p.Label != "" {
		return p.Label
	}
	return fmt.Sprintf("Port %d", p.Number)
}

// BuildTopology projects the active devices into a layered graph. Passive
// furniture is dropped. Each connected device pair gets a single edge
// labelled with the first port found between them.
func BuildTopology(devices []models.Device) Topology {
	var active []models.Device
	in := make(map[string]models.Device)
	for _, d := range devices {
		if d.Kind().Passive() {
			continue
		}
		active = append(active, d)
		in[d.ID] = d
	}

	sorted := append([]models.Device(nil), active...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Kind().Layer() < sorted[j].Kind().Layer() })

	levels := make(map[int]int)
	for _, d := range sorted {
		levels[d.Kind().Layer()]++
	}
	seen := make(map[int]int)
	topo := Topology{Nodes: make([]Node, 0, len(sorted)), Edges: []Edge{}}
	for _, d := range sorted {
		k := d.Kind()
		layer := k.Layer()
		idx := seen[layer]
		seen[layer]++
		levelWidth := float64(levels[layer] * (nodeWidth + nodeGap))
		topo.Nodes = append(topo.Nodes, Node{
			ID:     d.ID,
			Name:   d.Name,
			Type:   d.Type,
			Layer:  layer,
			X:      float64(idx*(nodeWidth+nodeGap)) - levelWidth/2 + centerX,
			Y:      float64(layer * levelGap),
			Color:  k.Color(),
			Status: string(d.Status),
			IP:     d.IPAddress,
		})
	}

	added := make(map[[2]string]bool)
	for _, d := range active {
		for _, p := range d.Ports {
			l := p.ConnectedTo
			if l == nil {
				continue
			}
			target, ok := in[l.DeviceID]
			if !ok {
				continue
			}
			key := [2]string{d.ID, l.DeviceID}
			if key[1] < key[0] {
				key[0], key[1] = key[1], key[0]
			}
			if added[key] {
				continue
			}
			added[key] = true

			targetPort := fmt.Sprintf("Port %d", l.PortNumber)
			if j := target.Port(l.PortID); j >= 0 {
				targetPort = portLabel(target.Ports[j])
			}
			topo.Edges = append(topo.Edges, Edge{
				ID:               d.ID + "-" + l.DeviceID + "-" + p.ID,
				Source:           d.ID,
				Target:           l.DeviceID,
				SourceDevice:     d.Name,
				TargetDevice:     target.Name,
				SourcePort:       portLabel(p),
				TargetPort:       targetPort,
				SourcePortNumber: p.Number,
				TargetPortNumber: l.PortNumber,
			})
		}
	}
	return topo
}

type PanelRow struct {
	PortID     string            `json:"port_id"`
	PortNumber int               `json:"port_number"`
	PortName   string            `json:"port_name"`
	Label      string            `json:"label,omitempty"`
	Status     models.PortStatus `json:"status"`
	Peer       *models.PortLink  `json:"peer,omitempty"`
}

type PanelTable struct {
	DeviceID   string     `json:"device_id"`
	Name       string     `json:"name"`
	Configured int        `json:"configured"`
	Total      int        `json:"total"`
	Rows       []PanelRow `json:"rows"`
}

type Report struct {
	ActiveDevices int             `json:"active_devices"`
	PatchPanels   int             `json:"patch_panels"`
	Connections   int             `json:"connections"`
	Devices       []models.Device `json:"devices"`
	Links         []Link          `json:"links"`
	Panels        []PanelTable    `json:"panels"`
}

// BuildReport summarises a branch. Patch panel tables only list ports
// that carry a label or a link, and panels with no such port are skipped.
func BuildReport(devices []models.Device) Report {
	r := Report{Devices: []models.Device{}, Panels: []PanelTable{}}
	for _, d := range devices {
		k := d.Kind()
		if k == models.KindPatchPanel {
			r.PatchPanels++
			if t, ok := panelTable(d); ok {
				r.Panels = append(r.Panels, t)
			}
		}
		if !k.Passive() {
			r.ActiveDevices++
			r.Devices = append(r.Devices, d)
		}
	}
	r.Links = CollectLinks(devices)
	if r.Links == nil {
		r.Links = []Link{}
	}
	r.Connections = len(r.Links)
	return r
}

func panelTable(d models.Device) (PanelTable, bool) {
	t := PanelTable{DeviceID: d.ID, Name: d.Name, Total: len(d.Ports)}
	for _, p := range d.Ports {
		if p.Label == "" && p.ConnectedTo == nil {
			continue
		}
		t.Rows = append(t.Rows, PanelRow{
			PortID:     p.ID,
			PortNumber: p.Number,
			PortName:   p.Name,
			Label:      p.Label,
			Status:     p.Status,
			Peer:       p.ConnectedTo,
		})
	}
	t.Configured = len(t.Rows)
	return t, t.Configured > 0
}

// Filter keeps devices where term is a case-insensitive substring of any
// descriptive field. An empty term keeps everything.
func Filter(devices []models.Device, term string) []models.Device {
	if term == "" {
		return devices
	}
	needle := strings.ToLower(term)
	out := []models.Device{}
	for _, d := range devices {
		fields := []string{d.Name, d.IPAddress, d.Model, d.Manufacturer, d.Type, d.Location, d.Description}
		if d.SecondaryIP != nil {
			fields = append(fields, *d.SecondaryIP)
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), needle) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

package inventory

import (
	"fmt"
	"iter"
	"sort"

	"netdoc/internal/models"
	"netdoc/internal/store"
)

// Endpoint is one side of a cable.
type Endpoint struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type,omitempty"`
	PortID     string `json:"port_id"`
	PortNumber int    `json:"port_number"`
	PortName   string `json:"port_name,omitempty"`
	PortLabel  string `json:"port_label,omitempty"`
}

// Link is a physical connection between two ports.
type Link struct {
	Source Endpoint `json:"source"`
	Target Endpoint `json:"target"`
}

func (l Link) String() string {
	return fmt.Sprintf("%s:%d <-> %s:%d", l.Source.DeviceName, l.Source.PortNumber, l.Target.DeviceName, l.Target.PortNumber)
}

func (l Link) reversed() Link { return Link{Source: l.Target, Target: l.Source} }

func endpointOf(d models.Device, p models.Port) Endpoint {
	return Endpoint{
		DeviceID:   d.ID,
		DeviceName: d.Name,
		DeviceType: d.Type,
		PortID:     p.ID,
		PortNumber: p.Number,
		PortName:   p.Name,
		PortLabel:  p.Label,
	}
}

func linkTo(d models.Device, p models.Port) *models.PortLink {
	return &models.PortLink{DeviceID: d.ID, DeviceName: d.Name, PortID: p.ID, PortNumber: p.Number}
}

func pointsAt(l *models.PortLink, deviceID, portID string) bool {
	return l != nil && l.DeviceID == deviceID && l.PortID == portID
}

// canonical reports whether the port on deviceID is the side a link is
// listed from: the smaller device id, or the smaller port id on a loop.
func canonical(deviceID, portID string, peer *models.PortLink) bool {
	if deviceID != peer.DeviceID {
		return deviceID < peer.DeviceID
	}
	return portID < peer.PortID
}

// Links yields every connection once, from its canonical side.
func Links(devices []models.Device) iter.Seq[Link] {
	return func(yield func(Link) bool) {
		byID := make(map[string]models.Device, len(devices))
		for _, d := range devices {
			byID[d.ID] = d
		}
		for _, d := range devices {
			for _, p := range d.Ports {
				peer := p.ConnectedTo
				if peer == nil || !canonical(d.ID, p.ID, peer) {
					continue
				}
				target := Endpoint{
					DeviceID:   peer.DeviceID,
					DeviceName: peer.DeviceName,
					PortID:     peer.PortID,
					PortNumber: peer.PortNumber,
				}
				if td, ok := byID[peer.DeviceID]; ok {
					target.DeviceName = td.Name
					target.DeviceType = td.Type
					if i := td.Port(peer.PortID); i >= 0 {
						target = endpointOf(td, td.Ports[i])
					}
				}
				if !yield(Link{Source: endpointOf(d, p), Target: target}) {
					return
				}
			}
		}
	}
}

// CollectLinks drains Links into a slice.
func CollectLinks(devices []models.Device) []Link {
	var out []Link
	for l := range Links(devices) {
		out = append(out, l)
	}
	return out
}

// DisplayOrder orients each link so the higher ranked device type is the
// source, then sorts by rank. It changes presentation only.
func DisplayOrder(links []Link) []Link {
	rank := func(e Endpoint) int { return models.ParseDeviceType(e.DeviceType).Kind.Rank() }
	out := make([]Link, len(links))
	for i, l := range links {
		rs, rt := rank(l.Source), rank(l.Target)
		if rt > rs || (rt == rs && l.Target.DeviceID < l.Source.DeviceID) {
			l = l.reversed()
		}
		out[i] = l
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i].Source), rank(out[j].Source)
		if ri != rj {
			return ri > rj
		}
		if out[i].Source.DeviceName != out[j].Source.DeviceName {
			return out[i].Source.DeviceName < out[j].Source.DeviceName
		}
		return out[i].Source.PortNumber < out[j].Source.PortNumber
	})
	return out
}

// ConnectPlan is the outcome of planning a Connect.
type ConnectPlan struct {
	Batch store.Batch
	// Displaced lists links that were on either port before and were
	// overwritten by this connect.
	Displaced []Link
}

// PlanConnect links two ports symmetrically. A port that already has a
// different peer is overwritten; the old peer keeps its back-reference
// unless strict is set.
func PlanConnect(s Snapshot, srcDevice, srcPort, dstDevice, dstPort string, strict bool) (ConnectPlan, error) {
	if srcDevice == dstDevice && srcPort == dstPort {
		return ConnectPlan{}, fmt.Errorf("%w: port cannot be linked to itself", ErrInvalid)
	}
	ps := newPatchSet(s)
	src, ok := ps.get(srcDevice)
	if !ok {
		return ConnectPlan{}, notFound("device", srcDevice)
	}
	dst, ok := ps.get(dstDevice)
	if !ok {
		return ConnectPlan{}, notFound("device", dstDevice)
	}
	si, ti := src.Port(srcPort), dst.Port(dstPort)
	if si < 0 {
		return ConnectPlan{}, notFound("port", srcPort)
	}
	if ti < 0 {
		return ConnectPlan{}, notFound("port", dstPort)
	}
	sp, tp := src.Ports[si], dst.Ports[ti]

	var plan ConnectPlan
	displace := func(d *models.Device, p models.Port, wantDevice, wantPort string) {
		old := p.ConnectedTo
		if old == nil || pointsAt(old, wantDevice, wantPort) {
			return
		}
		plan.Displaced = append(plan.Displaced, Link{
			Source: endpointOf(*d, p),
			Target: Endpoint{DeviceID: old.DeviceID, DeviceName: old.DeviceName, PortID: old.PortID, PortNumber: old.PortNumber},
		})
		if !strict {
			return
		}
		peer, ok := ps.get(old.DeviceID)
		if !ok {
			return
		}
		if j := peer.Port(old.PortID); j >= 0 && pointsAt(peer.Ports[j].ConnectedTo, d.ID, p.ID) {
			peer.Ports[j].ConnectedTo = nil
			ps.mark(peer.ID, models.FieldPorts)
		}
	}
	displace(src, sp, dst.ID, tp.ID)
	displace(dst, tp, src.ID, sp.ID)

	// src and dst are the same pointer on a loop, so both writes land on
	// one record.
	src.Ports[si].ConnectedTo = linkTo(*dst, tp)
	dst.Ports[ti].ConnectedTo = linkTo(*src, sp)
	ps.mark(src.ID, models.FieldPorts)
	ps.mark(dst.ID, models.FieldPorts)

	plan.Batch = ps.batch()
	return plan, nil
}

// PlanDisconnect clears a port's link and the peer's back-reference. A
// port without a link yields an empty batch.
func PlanDisconnect(s Snapshot, deviceID, portID string) (store.Batch, error) {
	ps := newPatchSet(s)
	d, ok := ps.get(deviceID)
	if !ok {
		return store.Batch{}, notFound("device", deviceID)
	}
	i := d.Port(portID)
	if i < 0 {
		return store.Batch{}, notFound("port", portID)
	}
	link := d.Ports[i].ConnectedTo
	if link == nil {
		return store.Batch{}, nil
	}
	if peer, ok := ps.get(link.DeviceID); ok {
		if j := peer.Port(link.PortID); j >= 0 && pointsAt(peer.Ports[j].ConnectedTo, deviceID, portID) {
			peer.Ports[j].ConnectedTo = nil
			ps.mark(peer.ID, models.FieldPorts)
		}
	}
	d.Ports[i].ConnectedTo = nil
	ps.mark(d.ID, models.FieldPorts)
	return ps.batch(), nil
}

// Issue is an asymmetric or dangling link found by Verify.
type Issue struct {
	DeviceID string `json:"device_id"`
	PortID   string `json:"port_id"`
	Problem  string `json:"problem"`
}

const (
	IssueMissingDevice = "peer device missing"
	IssueMissingPort   = "peer port missing"
	IssueAsymmetric    = "peer does not point back"
)

// Verify checks the symmetry of every link.
func Verify(devices []models.Device) []Issue {
	byID := make(map[string]models.Device, len(devices))
	for _, d := range devices {
		byID[d.ID] = d
	}
	var out []Issue
	for _, d := range devices {
		for _, p := range d.Ports {
			l := p.ConnectedTo
			if l == nil {
				continue
			}
			peer, ok := byID[l.DeviceID]
			if !ok {
				out = append(out, Issue{DeviceID: d.ID, PortID: p.ID, Problem: IssueMissingDevice})
				continue
			}
			j := peer.Port(l.PortID)
			switch {
			case j < 0:
				out = append(out, Issue{DeviceID: d.ID, PortID: p.ID, Problem: IssueMissingPort})
			case !pointsAt(peer.Ports[j].ConnectedTo, d.ID, p.ID):
				out = append(out, Issue{DeviceID: d.ID, PortID: p.ID, Problem: IssueAsymmetric})
			}
		}
	}
	return out
}

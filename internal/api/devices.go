package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"netdoc/internal/inventory"
	"netdoc/internal/models"

	"github.com/gorilla/mux"
)

type portIn struct {
	ID     string            `json:"id"`
	Number int               `json:"number" validate:"min=0"`
	Name   string            `json:"name" validate:"max=64"`
	Label  string            `json:"label" validate:"max=255"`
	Status models.PortStatus `json:"status" validate:"omitempty,oneof=active inactive error"`
	Speed  string            `json:"speed"`
	VLAN   string            `json:"vlan"`
	Color  string            `json:"color"`
}

func (p portIn) model() models.Port {
	return models.Port{
		ID: p.ID, Number: p.Number, Name: p.Name, Label: p.Label,
		Status: p.Status, Speed: p.Speed, VLAN: p.VLAN, Color: p.Color,
	}
}

type createDeviceReq struct {
	BranchID     *string             `json:"branch_id"`
	Name         string              `json:"name" validate:"required,max=255"`
	Type         string              `json:"type" validate:"required,max=64"`
	Model        string              `json:"model" validate:"max=255"`
	Manufacturer string              `json:"manufacturer" validate:"max=255"`
	Location     string              `json:"location" validate:"max=255"`
	IPAddress    string              `json:"ip_address" validate:"omitempty,max=64"`
	SecondaryIP  *string             `json:"secondary_ip_address" validate:"omitempty,max=64"`
	Status       models.DeviceStatus `json:"status" validate:"omitempty,oneof=online offline warning"`
	Description  string              `json:"description"`
	Ports        []portIn            `json:"ports" validate:"dive"`
	RackID       *string             `json:"rack_id"`
	RackPosition *int                `json:"rack_position" validate:"omitempty,min=1"`
	RackHeight   *int                `json:"rack_height" validate:"omitempty,min=0,max=60"`
}

func (h *HTTP) listDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.inv.Filter(q.Get("branch_id"), q.Get("q")))
}

func (h *HTTP) branchDevices(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ds, err := h.inv.BranchDevices(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		ds = inventory.Filter(ds, q)
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *HTTP) getDevice(w http.ResponseWriter, r *http.Request) {
	d, err := h.inv.Device(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *HTTP) createDevice(w http.ResponseWriter, r *http.Request) {
	var in createDeviceReq
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	d := &models.Device{
		BranchID:     in.BranchID,
		Name:         in.Name,
		Type:         in.Type,
		Model:        in.Model,
		Manufacturer: in.Manufacturer,
		Location:     in.Location,
		IPAddress:    in.IPAddress,
		SecondaryIP:  in.SecondaryIP,
		Status:       in.Status,
		Description:  in.Description,
		RackID:       in.RackID,
		RackPosition: in.RackPosition,
		RackHeight:   in.RackHeight,
	}
	for _, p := range in.Ports {
		d.Ports = append(d.Ports, p.model())
	}
	if err := h.inv.CreateDevice(r.Context(), d); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// updateDevice applies a partial update: only the keys present in the
// body are written.
func (h *HTTP) updateDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		writeError(w, fmt.Errorf("%w: %v", inventory.ErrInvalid, err))
		return
	}
	var in createDeviceReq
	if err := json.Unmarshal(body, &in); err != nil {
		writeError(w, fmt.Errorf("%w: %v", inventory.ErrInvalid, err))
		return
	}
	if err := validate.StructExcept(in, "Name", "Type"); err != nil {
		writeError(w, err)
		return
	}
	fields := make([]string, 0, len(keys))
	for k := range keys {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	vals := models.Device{
		BranchID:     in.BranchID,
		Name:         in.Name,
		Type:         in.Type,
		Model:        in.Model,
		Manufacturer: in.Manufacturer,
		Location:     in.Location,
		IPAddress:    in.IPAddress,
		SecondaryIP:  in.SecondaryIP,
		Status:       in.Status,
		Description:  in.Description,
		RackHeight:   in.RackHeight,
	}
	for _, p := range in.Ports {
		vals.Ports = append(vals.Ports, p.model())
	}
	if err := h.inv.UpdateDevice(r.Context(), id, fields, vals); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) deleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.inv.DeleteDevice(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) updatePort(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var in struct {
		Name   *string            `json:"name" validate:"omitempty,max=64"`
		Label  *string            `json:"label" validate:"omitempty,max=255"`
		Status *models.PortStatus `json:"status" validate:"omitempty,oneof=active inactive error"`
		Speed  *string            `json:"speed"`
		VLAN   *string            `json:"vlan"`
		Color  *string            `json:"color"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	u := inventory.PortUpdate{Name: in.Name, Label: in.Label, Status: in.Status, Speed: in.Speed, VLAN: in.VLAN, Color: in.Color}
	if err := h.inv.UpdatePort(r.Context(), vars["id"], vars["port"], u); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) mount(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RackID string `json:"rack_id" validate:"required"`
		Unit   int    `json:"unit" validate:"required,min=1"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if err := h.inv.Mount(r.Context(), mux.Vars(r)["id"], in.RackID, in.Unit); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) unmount(w http.ResponseWriter, r *http.Request) {
	if err := h.inv.Unmount(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"net/http"

	"netdoc/internal/models"

	"github.com/gorilla/mux"
)

type branchReq struct {
	Name        string `json:"name" validate:"required,max=255"`
	Location    string `json:"location" validate:"max=255"`
	Description string `json:"description"`
}

func (h *HTTP) listBranches(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.inv.Branches())
}

func (h *HTTP) getBranch(w http.ResponseWriter, r *http.Request) {
	b, err := h.inv.Branch(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *HTTP) createBranch(w http.ResponseWriter, r *http.Request) {
	var in branchReq
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	b := &models.Branch{Name: in.Name, Location: in.Location, Description: in.Description}
	if err := h.inv.CreateBranch(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *HTTP) updateBranch(w http.ResponseWriter, r *http.Request) {
	var in branchReq
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	b := &models.Branch{ID: mux.Vars(r)["id"], Name: in.Name, Location: in.Location, Description: in.Description}
	if err := h.inv.UpdateBranch(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *HTTP) deleteBranch(w http.ResponseWriter, r *http.Request) {
	if err := h.inv.DeleteBranch(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) addPatchPanel(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Ports int `json:"ports" validate:"required,oneof=24 48"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.inv.AddPatchPanel(r.Context(), mux.Vars(r)["id"], in.Ports)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

type templateReq struct {
	Name         string                `json:"name" validate:"required,max=255"`
	Type         string                `json:"type" validate:"max=64"`
	Model        string                `json:"model" validate:"max=255"`
	Manufacturer string                `json:"manufacturer" validate:"max=255"`
	DefaultPorts []models.PortTemplate `json:"default_ports"`
	RackHeight   *int                  `json:"rack_height" validate:"omitempty,min=0,max=60"`
	Description  string                `json:"description"`
}

func (in templateReq) model(id string) *models.DeviceTemplate {
	return &models.DeviceTemplate{
		ID:           id,
		Name:         in.Name,
		Type:         in.Type,
		Model:        in.Model,
		Manufacturer: in.Manufacturer,
		DefaultPorts: in.DefaultPorts,
		RackHeight:   in.RackHeight,
		Description:  in.Description,
	}
}

func (h *HTTP) listTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.inv.Templates())
}

func (h *HTTP) createTemplate(w http.ResponseWriter, r *http.Request) {
	var in templateReq
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	t := in.model("")
	if err := h.inv.CreateTemplate(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *HTTP) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var in templateReq
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	t := in.model(mux.Vars(r)["id"])
	if err := h.inv.UpdateTemplate(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *HTTP) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.inv.DeleteTemplate(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) instantiate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BranchID  string `json:"branch_id" validate:"required"`
		Name      string `json:"name" validate:"max=255"`
		IPAddress string `json:"ip_address" validate:"omitempty,max=64"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.inv.InstantiateTemplate(r.Context(), mux.Vars(r)["id"], in.BranchID, in.Name, in.IPAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

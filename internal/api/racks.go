package api

import (
	"net/http"
	"strconv"

	"netdoc/internal/inventory"
	"netdoc/internal/models"

	"github.com/gorilla/mux"
)

type rackReq struct {
	BranchID                string `json:"branch_id"`
	Name                    string `json:"name" validate:"required,max=255"`
	Height                  int    `json:"height" validate:"required,min=1,max=60"`
	HasVerticalCableManager bool   `json:"has_vertical_cable_manager"`
}

func (h *HTTP) listRacks(w http.ResponseWriter, r *http.Request) {
	racks := h.inv.Racks(r.URL.Query().Get("branch_id"))
	if racks == nil {
		racks = []models.Rack{}
	}
	writeJSON(w, http.StatusOK, racks)
}

func (h *HTTP) getRack(w http.ResponseWriter, r *http.Request) {
	rack, err := h.inv.Rack(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rack)
}

func (h *HTTP) createRack(w http.ResponseWriter, r *http.Request) {
	var in rackReq
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	rack := &models.Rack{BranchID: in.BranchID, Name: in.Name, Height: in.Height, HasVerticalCableManager: in.HasVerticalCableManager}
	if err := h.inv.CreateRack(r.Context(), rack); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rack)
}

func (h *HTTP) updateRack(w http.ResponseWriter, r *http.Request) {
	var in rackReq
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	rack := &models.Rack{ID: mux.Vars(r)["id"], Name: in.Name, Height: in.Height, HasVerticalCableManager: in.HasVerticalCableManager}
	if err := h.inv.UpdateRack(r.Context(), rack); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rack)
}

func (h *HTTP) deleteRack(w http.ResponseWriter, r *http.Request) {
	if err := h.inv.DeleteRack(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) elevation(w http.ResponseWriter, r *http.Request) {
	rows, err := h.inv.Elevation(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *HTTP) occupancyAt(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	unit, _ := strconv.Atoi(vars["unit"])
	dev, zero, err := h.inv.OccupancyAt(vars["id"], unit)
	if err != nil {
		writeError(w, err)
		return
	}
	if zero == nil {
		zero = []models.Device{}
	}
	writeJSON(w, http.StatusOK, struct {
		Unit   int             `json:"unit"`
		Device *models.Device  `json:"device"`
		ZeroU  []models.Device `json:"zero_u"`
	}{unit, dev, zero})
}

func (h *HTTP) quickCreate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Kind   string `json:"kind" validate:"required,oneof=cable-manager shelf"`
		Unit   int    `json:"unit" validate:"required,min=1"`
		Height int    `json:"height" validate:"min=0,max=60"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.inv.QuickCreate(r.Context(), inventory.QuickKind(in.Kind), mux.Vars(r)["id"], in.Unit, in.Height)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

package api

import (
	"net/http"

	"netdoc/internal/inventory"

	"github.com/gorilla/mux"
)

type portRef struct {
	DeviceID string `json:"device_id" validate:"required"`
	PortID   string `json:"port_id" validate:"required"`
}

func (h *HTTP) listLinks(w http.ResponseWriter, r *http.Request) {
	links := h.inv.Links(r.URL.Query().Get("branch_id"))
	if r.URL.Query().Get("order") == "display" {
		links = inventory.DisplayOrder(links)
	}
	if links == nil {
		links = []inventory.Link{}
	}
	writeJSON(w, http.StatusOK, links)
}

func (h *HTTP) connect(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Source portRef `json:"source"`
		Target portRef `json:"target"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if err := h.inv.Connect(r.Context(), in.Source.DeviceID, in.Source.PortID, in.Target.DeviceID, in.Target.PortID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// editLink moves an existing link. Empty new port ids keep that side.
func (h *HTTP) editLink(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Source       portRef `json:"source"`
		Target       portRef `json:"target"`
		SourcePortID string  `json:"new_source_port_id"`
		TargetPortID string  `json:"new_target_port_id"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	old := inventory.Link{
		Source: inventory.Endpoint{DeviceID: in.Source.DeviceID, PortID: in.Source.PortID},
		Target: inventory.Endpoint{DeviceID: in.Target.DeviceID, PortID: in.Target.PortID},
	}
	if err := h.inv.EditConnection(r.Context(), old, in.SourcePortID, in.TargetPortID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) disconnect(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.inv.Disconnect(r.Context(), vars["id"], vars["port"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) verify(w http.ResponseWriter, _ *http.Request) {
	issues := h.inv.Verify()
	if issues == nil {
		issues = []inventory.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

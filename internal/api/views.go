package api

import (
	"fmt"
	"net/http"

	"netdoc/internal/inventory"
	"netdoc/internal/models"
	"netdoc/internal/report"

	"github.com/gorilla/mux"
)

func (h *HTTP) branchReport(w http.ResponseWriter, r *http.Request) (inventory.Report, bool) {
	id := mux.Vars(r)["id"]
	if _, err := h.inv.Branch(id); err != nil {
		writeError(w, err)
		return inventory.Report{}, false
	}
	return h.inv.Report(id), true
}

func (h *HTTP) topology(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.inv.Branch(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.inv.Topology(id))
}

func (h *HTTP) report(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.branchReport(w, r)
	if !ok {
		return
	}
	rep.Links = inventory.DisplayOrder(rep.Links)
	writeJSON(w, http.StatusOK, rep)
}

func (h *HTTP) reportCSV(w http.ResponseWriter, r *http.Request) {
	table := report.TableConnections
	if q := r.URL.Query().Get("table"); q != "" {
		t, err := report.ParseTable(q)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", inventory.ErrInvalid, err))
			return
		}
		table = t
	}
	rep, ok := h.branchReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", table))
	_ = report.WriteCSV(w, rep, table)
}

func (h *HTTP) reportXLSX(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.branchReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=report.xlsx")
	_ = report.WriteXLSX(w, rep)
}

func (h *HTTP) mountCandidates(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.inv.Branch(id); err != nil {
		writeError(w, err)
		return
	}
	devices, shelved := h.inv.MountCandidates(id)
	if devices == nil {
		devices = []models.Device{}
	}
	if shelved == nil {
		shelved = []models.Device{}
	}
	writeJSON(w, http.StatusOK, map[string][]models.Device{"devices": devices, "shelf": shelved})
}

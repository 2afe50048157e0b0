package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"netdoc/internal/inventory"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

var validate = validator.New()

type HTTP struct{ inv *inventory.Service }

func NewHTTP(inv *inventory.Service) *HTTP { return &HTTP{inv: inv} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	// branches
	api.HandleFunc("/branches", h.listBranches).Methods(http.MethodGet)
	api.HandleFunc("/branches", h.createBranch).Methods(http.MethodPost)
	api.HandleFunc("/branches/{id}", h.getBranch).Methods(http.MethodGet)
	api.HandleFunc("/branches/{id}", h.updateBranch).Methods(http.MethodPut)
	api.HandleFunc("/branches/{id}", h.deleteBranch).Methods(http.MethodDelete)
	api.HandleFunc("/branches/{id}/devices", h.branchDevices).Methods(http.MethodGet)
	api.HandleFunc("/branches/{id}/patch-panels", h.addPatchPanel).Methods(http.MethodPost)
	api.HandleFunc("/branches/{id}/mount-candidates", h.mountCandidates).Methods(http.MethodGet)

	// derived views
	api.HandleFunc("/branches/{id}/topology", h.topology).Methods(http.MethodGet)
	api.HandleFunc("/branches/{id}/report", h.report).Methods(http.MethodGet)
	api.HandleFunc("/branches/{id}/report.csv", h.reportCSV).Methods(http.MethodGet)
	api.HandleFunc("/branches/{id}/report.xlsx", h.reportXLSX).Methods(http.MethodGet)

	// devices
	api.HandleFunc("/devices", h.listDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices", h.createDevice).Methods(http.MethodPost)
	api.HandleFunc("/devices/{id}", h.getDevice).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}", h.updateDevice).Methods(http.MethodPatch)
	api.HandleFunc("/devices/{id}", h.deleteDevice).Methods(http.MethodDelete)
	api.HandleFunc("/devices/{id}/ports/{port}", h.updatePort).Methods(http.MethodPatch)
	api.HandleFunc("/devices/{id}/ports/{port}/link", h.disconnect).Methods(http.MethodDelete)
	api.HandleFunc("/devices/{id}/mount", h.mount).Methods(http.MethodPost)
	api.HandleFunc("/devices/{id}/unmount", h.unmount).Methods(http.MethodPost)

	// connection graph
	api.HandleFunc("/links", h.listLinks).Methods(http.MethodGet)
	api.HandleFunc("/links", h.connect).Methods(http.MethodPost)
	api.HandleFunc("/links", h.editLink).Methods(http.MethodPut)
	api.HandleFunc("/links/verify", h.verify).Methods(http.MethodGet)

	// racks
	api.HandleFunc("/racks", h.listRacks).Methods(http.MethodGet)
	api.HandleFunc("/racks", h.createRack).Methods(http.MethodPost)
	api.HandleFunc("/racks/{id}", h.getRack).Methods(http.MethodGet)
	api.HandleFunc("/racks/{id}", h.updateRack).Methods(http.MethodPut)
	api.HandleFunc("/racks/{id}", h.deleteRack).Methods(http.MethodDelete)
	api.HandleFunc("/racks/{id}/elevation", h.elevation).Methods(http.MethodGet)
	api.HandleFunc("/racks/{id}/units/{unit:[0-9]+}", h.occupancyAt).Methods(http.MethodGet)
	api.HandleFunc("/racks/{id}/quick", h.quickCreate).Methods(http.MethodPost)

	// templates
	api.HandleFunc("/templates", h.listTemplates).Methods(http.MethodGet)
	api.HandleFunc("/templates", h.createTemplate).Methods(http.MethodPost)
	api.HandleFunc("/templates/{id}", h.updateTemplate).Methods(http.MethodPut)
	api.HandleFunc("/templates/{id}", h.deleteTemplate).Methods(http.MethodDelete)
	api.HandleFunc("/templates/{id}/instantiate", h.instantiate).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	State string `json:"state,omitempty"`
}

// writeError maps inventory errors to status codes. A partial edit reports
// that the link was left disconnected.
func writeError(w http.ResponseWriter, err error) {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, inventory.ErrPartial):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), State: "disconnected"})
	case errors.Is(err, inventory.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, inventory.ErrCapacity):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, inventory.ErrInvalid), errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", inventory.ErrInvalid, err)
	}
	return validate.Struct(dst)
}

package consoleweb

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/oxidecomputer/spgw/wire"
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.client.State(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, state)
}

func (s *Server) handleGetPower(w http.ResponseWriter, r *http.Request) {
	state, err := s.client.PowerState(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, struct {
		PowerState wire.PowerState `json:"power_state"`
	}{state})
}

func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PowerState wire.PowerState `json:"power_state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.client.SetPowerState(r.Context(), body.PowerState); err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	devices, err := s.client.Inventory(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, devices)
}

func (s *Server) handleIgnitionState(w http.ResponseWriter, r *http.Request) {
	target, err := strconv.ParseUint(mux.Vars(r)["target"], 10, 8)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	state, err := s.client.IgnitionState(r.Context(), uint8(target))
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, state)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	component := wire.SpComponent{ID: mux.Vars(r)["component"]}
	status, err := s.client.UpdateStatus(r.Context(), component)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, status)
}

func (s *Server) handleUpdateAbort(w http.ResponseWriter, r *http.Request) {
	component := wire.SpComponent{ID: mux.Vars(r)["component"]}
	var body struct {
		UpdateID string `json:"update_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	id, err := parseUUID(body.UpdateID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.client.UpdateAbort(r.Context(), component, id); err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"teamboard/microservices/collab-service/logging"
	"teamboard/microservices/collab-service/services"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logging.Logger.Errorf("Event ID: RESPONSE_ENCODE_FAILED, Description: %v", err)
		}
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError maps the service error taxonomy onto HTTP statuses. Anything
// internal is logged in full and surfaced as a generic server error.
func writeError(w http.ResponseWriter, err error) {
	switch services.KindOf(err) {
	case services.KindNotFound:
		writeMessage(w, http.StatusNotFound, err.Error())
	case services.KindForbidden:
		writeMessage(w, http.StatusForbidden, err.Error())
	case services.KindConflict:
		writeMessage(w, http.StatusConflict, err.Error())
	case services.KindValidation:
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		logging.Logger.Errorf("Event ID: INTERNAL_ERROR, Description: %v", err)
		writeMessage(w, http.StatusInternalServerError, "server error")
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"liaptui/internal/log"
	"liaptui/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service errors to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrResourceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrRoomFull),
		errors.Is(err, model.ErrNameTaken),
		errors.Is(err, model.ErrGameAlreadyStarted),
		errors.Is(err, model.ErrGameNotInProgress),
		errors.Is(err, model.ErrNotEnoughPlayers):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes an optional JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

// durationParam reads a duration query parameter, accepting either Go
// duration syntax ("90s") or plain seconds ("90"). Missing means zero.
func durationParam(r *http.Request, name string) (time.Duration, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"liaptui/internal/service"
	"liaptui/internal/transport/rest/middleware"
)

// RoomHandler handles room endpoints
type RoomHandler struct {
	roomSvc   *service.RoomService
	reconnect *service.ReconnectionService
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(roomSvc *service.RoomService, reconnect *service.ReconnectionService) *RoomHandler {
	return &RoomHandler{roomSvc: roomSvc, reconnect: reconnect}
}

// CreateRoomRequest is the request body for creating a room
type CreateRoomRequest struct {
	HostName   string `json:"hostName"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
}

// Create handles POST /v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.roomSvc.CreateRoom(r.Context(), req.HostName, req.MaxPlayers)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// Get handles GET /v1/rooms/{id}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	details, err := h.roomSvc.GetRoom(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// JoinRequest is the request body for joining a room
type JoinRequest struct {
	Name  string `json:"name"`
	IsBot bool   `json:"isBot,omitempty"`
}

// Join handles POST /v1/rooms/{id}/join
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.roomSvc.JoinRoom(r.Context(), mux.Vars(r)["id"], req.Name, req.IsBot)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Start handles POST /v1/rooms/{id}/start
func (h *RoomHandler) Start(w http.ResponseWriter, r *http.Request) {
	game, err := h.roomSvc.StartGame(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, game)
}

// Turn handles POST /v1/rooms/{id}/turn
func (h *RoomHandler) Turn(w http.ResponseWriter, r *http.Request) {
	game, err := h.roomSvc.AdvanceTurn(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, game)
}

// End handles POST /v1/rooms/{id}/end
func (h *RoomHandler) End(w http.ResponseWriter, r *http.Request) {
	game, err := h.roomSvc.EndGame(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, game)
}

// Close handles DELETE /v1/rooms/{id}
func (h *RoomHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.roomSvc.CloseRoom(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LeaveRequest is the optional body of a voluntary leave.
type LeaveRequest struct {
	ActivateBot *bool `json:"activateBot,omitempty"`
}

// Leave handles POST /v1/rooms/{id}/leave for the player in the bearer
// token. The seat stays reserved; a bot takes it unless activateBot is false.
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	var req LeaveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	activateBot := true
	if req.ActivateBot != nil {
		activateBot = *req.ActivateBot
	}

	claims := middleware.GetPlayer(r.Context())
	if err := h.reconnect.HandleDisconnect(r.Context(), claims.RoomID, claims.PlayerName, activateBot); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

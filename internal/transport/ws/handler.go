package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"liaptui/internal/log"
	"liaptui/internal/model"
	"liaptui/internal/realtime"
	"liaptui/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 40 * time.Second
	pingPeriod     = 20 * time.Second
	maxMessageSize = 512
	closeTimeout   = 5 * time.Second
)

// Frame types the server pushes on connect.
const (
	FrameQueued    = "queued_message"
	FrameGameState = "game_state"
	FrameRoomState = "room_state"
	FrameError     = "error"
	FramePong      = "pong"
)

// QueuedPayload wraps a message that was buffered while the player was away.
type QueuedPayload struct {
	EventType  string         `json:"eventType"`
	Data       map[string]any `json:"data"`
	Timestamp  time.Time      `json:"timestamp"`
	IsCritical bool           `json:"isCritical"`
}

type inbound struct {
	Type string `json:"type"`
}

// Handler handles WebSocket connections
type Handler struct {
	registry  *realtime.Registry
	reconnect *service.ReconnectionService
	authSvc   *service.AuthService
	upgrader  websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. allowedOrigins is a comma
// separated list; "*" or empty accepts any origin.
func NewHandler(registry *realtime.Registry, reconnect *service.ReconnectionService, authSvc *service.AuthService, allowedOrigins string) *Handler {
	return &Handler{
		registry:  registry,
		reconnect: reconnect,
		authSvc:   authSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed string) func(r *http.Request) bool {
	if allowed == "" || allowed == "*" {
		return func(*http.Request) bool { return true }
	}
	set := map[string]bool{}
	for _, o := range strings.Split(allowed, ",") {
		set[strings.TrimSpace(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// PlayerWS handles GET /v1/ws/rooms/{id}?token=...
func (h *Handler) PlayerWS(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	token := r.URL.Query().Get("token")

	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidatePlayerToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if claims.RoomID != roomID {
		http.Error(w, "token not valid for this room", http.StatusForbidden)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade error: %v", err)
		return
	}

	conn := NewConnection(uuid.New().String(), roomID, claims.PlayerName)
	if err := h.registry.Register(conn.ID, conn, roomID); err != nil {
		closeWith(wsConn, websocket.CloseGoingAway, "server_shutdown")
		return
	}

	result, err := h.reconnect.HandleReconnect(r.Context(), roomID, claims.PlayerName, conn.ID)
	if err != nil {
		h.registry.Unregister(conn.ID)
		// The reconnect may have committed before failing; release the seat
		// if it is still bound to this session.
		h.sessionClosed(conn)
		reason := "internal_error"
		if errors.Is(err, model.ErrResourceNotFound) {
			reason = "not_found"
		}
		log.Warn("reject websocket for %s in room %s: %v", claims.PlayerName, roomID, err)
		writeFrame(wsConn, realtime.Frame{Type: FrameError, Payload: map[string]string{"error": err.Error()}})
		closeWith(wsConn, websocket.ClosePolicyViolation, reason)
		return
	}

	if result.PreviousWebsocketID != "" {
		h.registry.Disconnect(result.PreviousWebsocketID, "disconnected_elsewhere")
	}

	frames, err := catchUpFrames(result)
	if err == nil {
		err = conn.Prime(frames)
	}
	if err != nil {
		log.Error("prime connection %s: %v", conn.ID, err)
		h.registry.Unregister(conn.ID)
		conn.Close("catch_up_failed")
		h.sessionClosed(conn)
		closeWith(wsConn, websocket.CloseInternalServerErr, "catch_up_failed")
		return
	}

	log.Info("player %s connected to room %s via websocket %s", claims.PlayerName, roomID, conn.ID)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

// catchUpFrames orders the reconnect payload: missed messages in queue
// order, then game state, then room state.
func catchUpFrames(result *model.ReconnectResult) ([][]byte, error) {
	frames := make([]realtime.Frame, 0, len(result.QueuedMessages)+2)
	for _, m := range result.QueuedMessages {
		frames = append(frames, realtime.Frame{Type: FrameQueued, Payload: QueuedPayload{
			EventType:  m.EventType,
			Data:       m.Data,
			Timestamp:  m.Timestamp,
			IsCritical: m.IsCritical,
		}})
	}
	if result.GameState != nil {
		frames = append(frames, realtime.Frame{Type: FrameGameState, Payload: result.GameState})
	}
	frames = append(frames, realtime.Frame{Type: FrameRoomState, Payload: result.RoomState})

	out := make([][]byte, 0, len(frames))
	for _, f := range frames {
		data, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.registry.Unregister(conn.ID)
		conn.Close("")
		wsConn.Close()
		h.sessionClosed(conn)
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		h.touch(conn)
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn("websocket error: %v", err)
			}
			break
		}
		h.touch(conn)

		var msg inbound
		if json.Unmarshal(data, &msg) == nil && msg.Type == "ping" {
			if pong, err := json.Marshal(realtime.Frame{Type: FramePong}); err == nil {
				_ = conn.Send(context.Background(), pong)
			}
		}
	}
}

func (h *Handler) sessionClosed(conn *Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if _, err := h.reconnect.HandleSessionClosed(ctx, conn.RoomID, conn.PlayerName, conn.ID); err != nil {
		log.Warn("session close for %s in room %s: %v", conn.PlayerName, conn.RoomID, err)
	}
}

func (h *Handler) touch(conn *Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := h.reconnect.RecordActivity(ctx, conn.RoomID, conn.PlayerName); err != nil {
		log.Debug("record activity for %s: %v", conn.PlayerName, err)
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		if message, ok := conn.nextBacklog(); ok {
			select {
			case <-conn.done:
				closeWith(wsConn, websocket.CloseNormalClosure, conn.reason())
				return
			default:
			}
			if err := writeText(wsConn, message); err != nil {
				return
			}
			continue
		}

		select {
		case message := <-conn.send:
			if err := writeText(wsConn, message); err != nil {
				return
			}

		case <-conn.wake:

		case <-conn.done:
			closeWith(wsConn, websocket.CloseNormalClosure, conn.reason())
			return

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeText(wsConn *websocket.Conn, message []byte) error {
	wsConn.SetWriteDeadline(time.Now().Add(writeWait))
	w, err := wsConn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	w.Write(message)
	return w.Close()
}

func writeFrame(wsConn *websocket.Conn, f realtime.Frame) {
	wsConn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := wsConn.WriteJSON(f); err != nil {
		log.Debug("write frame: %v", err)
	}
}

func closeWith(wsConn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = wsConn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	wsConn.Close()
}

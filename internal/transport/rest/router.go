package rest

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"liaptui/internal/realtime"
	"liaptui/internal/service"
	"liaptui/internal/transport/rest/handler"
	"liaptui/internal/transport/rest/middleware"
	"liaptui/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService         *service.AuthService
	RoomService         *service.RoomService
	MessageQueueService *service.MessageQueueService
	ReconnectionService *service.ReconnectionService
	Registry            *realtime.Registry
	AllowedOrigins      string
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	roomHandler := handler.NewRoomHandler(c.RoomService, c.ReconnectionService)
	queueHandler := handler.NewQueueHandler(c.MessageQueueService)
	connHandler := handler.NewConnectionHandler(c.ReconnectionService)
	wsHandler := ws.NewHandler(c.Registry, c.ReconnectionService, c.AuthService, c.AllowedOrigins)

	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.AllowedOrigins))

	v1 := r.PathPrefix("/v1").Subrouter()

	// Rooms
	v1.HandleFunc("/rooms", roomHandler.Create).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{id}", roomHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/rooms/{id}", roomHandler.Close).Methods("DELETE", "OPTIONS")
	v1.HandleFunc("/rooms/{id}/join", roomHandler.Join).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{id}/start", roomHandler.Start).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{id}/turn", roomHandler.Turn).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{id}/end", roomHandler.End).Methods("POST", "OPTIONS")

	// Queues
	v1.HandleFunc("/rooms/{id}/queues", queueHandler.Stats).Methods("GET", "OPTIONS")
	v1.HandleFunc("/rooms/{id}/queues/cleanup", queueHandler.Cleanup).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{id}/queues/{player}/prioritize", queueHandler.Prioritize).Methods("POST", "OPTIONS")

	// Connections
	v1.HandleFunc("/rooms/{id}/connections/health", connHandler.Health).Methods("GET", "OPTIONS")
	v1.HandleFunc("/rooms/{id}/connections/cleanup", connHandler.Cleanup).Methods("POST", "OPTIONS")

	// Player routes (require player token)
	playerRoutes := v1.NewRoute().Subrouter()
	playerRoutes.Use(authMW.RequirePlayer)
	playerRoutes.HandleFunc("/rooms/{id}/leave", roomHandler.Leave).Methods("POST", "OPTIONS")

	// WebSocket route (token in query param)
	v1.HandleFunc("/ws/rooms/{id}", wsHandler.PlayerWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}

func corsMiddleware(allowedOrigins string) mux.MiddlewareFunc {
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin(allowedOrigins, r.Header.Get("Origin")))
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allowOrigin echoes origin when it is in the comma separated allow list.
func allowOrigin(allowed, origin string) string {
	if allowed == "*" {
		return "*"
	}
	for _, o := range strings.Split(allowed, ",") {
		if strings.TrimSpace(o) == origin {
			return origin
		}
	}
	return ""
}

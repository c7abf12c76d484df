// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/soloqueue/inhouse/internal/core"
	"github.com/soloqueue/inhouse/internal/middleware"
	"github.com/soloqueue/inhouse/internal/models"
)

// Server wires the admin HTTP surface to the orchestration core. Every
// mutating route goes through the core's event queue, so handlers never
// touch lobby state directly.
type Server struct {
	Core *core.Core

	// OnBotRegistered is called after a bot account row is written so
	// the process can dial a session for it without restarting.
	OnBotRegistered func(account models.BotAccount, password string) error
}

func NewServer(c *core.Core) *Server {
	return &Server{Core: c}
}

// Routes builds the admin mux. Login is the only unauthenticated route.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /admin/login", LoginHandler())

	admin := http.NewServeMux()
	admin.HandleFunc("POST /league/create", CreateLeagueHandler(s))
	admin.HandleFunc("GET /league/list", ListLeaguesHandler(s))
	admin.HandleFunc("GET /lobby/list", ListLobbiesHandler(s))
	admin.HandleFunc("GET /queue", QueueStatusHandler(s))
	admin.HandleFunc("POST /lobby/kill", KillLobbyHandler(s))
	admin.HandleFunc("POST /match/complete", CompleteMatchHandler(s))
	admin.HandleFunc("POST /bot/register", RegisterBotHandler(s))
	admin.HandleFunc("POST /bot/unregister", UnregisterBotHandler(s))

	mux.Handle("/", middleware.RequireAdmin(admin))
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

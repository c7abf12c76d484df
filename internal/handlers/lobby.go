// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/soloqueue/inhouse/internal/core"
	"github.com/soloqueue/inhouse/internal/models"
)

func parseLeagueID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.URL.Query().Get("league"))
}

// ListLobbiesHandler returns snapshots of every live lobby in a league.
func ListLobbiesHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leagueID, err := parseLeagueID(r)
		if err != nil {
			http.Error(w, "invalid league id", http.StatusBadRequest)
			return
		}
		writeJSON(w, s.Core.LobbySnapshots(leagueID))
	}
}

// QueueStatusHandler returns the waiting queue for a league.
func QueueStatusHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leagueID, err := parseLeagueID(r)
		if err != nil {
			http.Error(w, "invalid league id", http.StatusBadRequest)
			return
		}
		writeJSON(w, s.Core.QueueSnapshot(leagueID))
	}
}

// KillLobbyHandler terminates a lobby from any non-terminal state.
func KillLobbyHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			LobbyID uuid.UUID `json:"lobbyId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad kill request payload", http.StatusBadRequest)
			return
		}
		if err := s.Core.KillLobby(req.LobbyID); err != nil {
			status := http.StatusConflict
			if errors.Is(err, core.ErrUnknownLobby) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, map[string]string{"status": "killed"})
	}
}

// CompleteMatchHandler records the external match-end signal.
func CompleteMatchHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			LobbyID uuid.UUID   `json:"lobbyId"`
			Winner  models.Team `json:"winner"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad complete request payload", http.StatusBadRequest)
			return
		}
		if req.Winner != models.TeamBlue && req.Winner != models.TeamRed {
			http.Error(w, "winner must be blue or red", http.StatusBadRequest)
			return
		}
		if err := s.Core.CompleteMatch(req.LobbyID, req.Winner); err != nil {
			status := http.StatusConflict
			if errors.Is(err, core.ErrUnknownLobby) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, map[string]string{"status": "completed"})
	}
}

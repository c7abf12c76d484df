// internal/handlers/league.go
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/soloqueue/inhouse/internal/models"
)

var validQueueTypes = map[models.QueueType]bool{
	models.QueueAutoBalance: true,
	models.QueueDraft:       true,
	models.QueueChallenge:   true,
}

// CreateLeagueHandler registers a new league and brings its live
// instance online.
func CreateLeagueHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			GuildID                string           `json:"guildId"`
			Name                   string           `json:"name"`
			QueueType              models.QueueType `json:"queueType"`
			RosterSize             int              `json:"rosterSize"`
			ReadyCheckTimeoutMS    int64            `json:"readyCheckTimeoutMs"`
			CaptainRatingThreshold int              `json:"captainRatingThreshold"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad league request payload", http.StatusBadRequest)
			return
		}
		if req.GuildID == "" || req.Name == "" {
			http.Error(w, "guildId and name are required", http.StatusBadRequest)
			return
		}
		if !validQueueTypes[req.QueueType] {
			http.Error(w, "invalid queue type", http.StatusBadRequest)
			return
		}
		if req.RosterSize <= 0 || req.RosterSize%2 != 0 {
			http.Error(w, "roster size must be a positive even number", http.StatusBadRequest)
			return
		}

		league := models.League{
			ID:         uuid.New(),
			GuildID:    req.GuildID,
			Name:       req.Name,
			QueueType:  req.QueueType,
			RosterSize: req.RosterSize,
			Config: models.LeagueConfig{
				ReadyCheckTimeout:      time.Duration(req.ReadyCheckTimeoutMS) * time.Millisecond,
				CaptainRatingThreshold: req.CaptainRatingThreshold,
			},
			CreatedAt: time.Now(),
		}
		if err := s.Core.AddLeague(league); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, league)
	}
}

// ListLeaguesHandler returns every live league instance.
func ListLeaguesHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.Core.Leagues())
	}
}

// internal/handlers/bot.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/soloqueue/inhouse/internal/database"
	"github.com/soloqueue/inhouse/internal/models"
)

// RegisterBotHandler stores a new bot account and, when the server has
// a dialer wired, brings its session online immediately.
func RegisterBotHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AccountName string `json:"accountName"`
			Password    string `json:"password"`
			GatewayURL  string `json:"gatewayUrl"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad bot request payload", http.StatusBadRequest)
			return
		}
		if req.AccountName == "" || req.Password == "" || req.GatewayURL == "" {
			http.Error(w, "accountName, password and gatewayUrl are required", http.StatusBadRequest)
			return
		}

		account := models.BotAccount{
			AccountName: req.AccountName,
			GatewayURL:  req.GatewayURL,
		}
		if err := database.CreateBotAccount(r.Context(), &account, req.Password); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if s.OnBotRegistered != nil {
			if err := s.OnBotRegistered(account, req.Password); err != nil {
				log.Warnf("bot %s registered but session dial failed: %v", account.AccountName, err)
			}
		}
		writeJSON(w, account)
	}
}

// UnregisterBotHandler deletes a bot account row. Any live session for
// the account keeps running until its connection drops; it will not be
// redialed on the next boot.
func UnregisterBotHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AccountID string `json:"accountId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad bot request payload", http.StatusBadRequest)
			return
		}
		id, err := uuid.Parse(req.AccountID)
		if err != nil {
			http.Error(w, "accountId must be a uuid", http.StatusBadRequest)
			return
		}
		if err := database.DeleteBotAccount(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

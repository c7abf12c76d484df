// internal/handlers/admin.go
package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/soloqueue/inhouse/internal/auth"
)

// LoginHandler authenticates an operator against the ADMIN_OPERATOR and
// ADMIN_PASSWORD_HASH environment pair and issues an admin token.
func LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Operator string `json:"operator"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad login payload", http.StatusBadRequest)
			return
		}

		operator := os.Getenv("ADMIN_OPERATOR")
		hash := os.Getenv("ADMIN_PASSWORD_HASH")
		if operator == "" || hash == "" {
			http.Error(w, "admin login not configured", http.StatusServiceUnavailable)
			return
		}
		if req.Operator != operator {
			http.Error(w, "invalid credentials", http.StatusForbidden)
			return
		}
		match, err := auth.ComparePasswordAndHash(req.Password, hash)
		if err != nil || !match {
			http.Error(w, "invalid credentials", http.StatusForbidden)
			return
		}

		token, err := auth.CreateAdminJWT(req.Operator)
		if err != nil {
			http.Error(w, "failed to create token", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"token": token})
	}
}

// internal/handlers/league_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/soloqueue/inhouse/internal/auth"
	"github.com/soloqueue/inhouse/internal/core"
	"github.com/soloqueue/inhouse/internal/models"
	"github.com/soloqueue/inhouse/internal/session"
)

// nullStore satisfies the persistence surface without a database.
type nullStore struct{}

func (nullStore) Leagues(context.Context) ([]models.League, error)          { return nil, nil }
func (nullStore) InsertLeague(context.Context, models.League) error         { return nil }
func (nullStore) UpsertLobby(context.Context, models.LobbyRecord) error     { return nil }
func (nullStore) OpenLobbies(context.Context) ([]models.LobbyRecord, error) { return nil, nil }
func (nullStore) MarkLobbyKilled(context.Context, models.LobbyRecord) error { return nil }
func (nullStore) ArchiveMatch(context.Context, models.MatchRecord) error    { return nil }
func (nullStore) QueueEntries(context.Context, uuid.UUID) ([]models.Participant, error) {
	return nil, nil
}
func (nullStore) SaveQueueEntry(context.Context, uuid.UUID, models.Participant) error { return nil }
func (nullStore) DeleteQueueEntry(context.Context, uuid.UUID, string) error           { return nil }
func (nullStore) Bans(context.Context, uuid.UUID) ([]models.Ban, error)               { return nil, nil }
func (nullStore) UpsertBan(context.Context, uuid.UUID, models.Ban) error              { return nil }

func newTestServer() *Server {
	c := core.New(nullStore{}, core.NopNotifier{}, session.NewPool())
	return NewServer(c)
}

// TestCreateLeague checks that /league/create brings a live league online.
func TestCreateLeague(t *testing.T) {
	s := newTestServer()

	body := `{"guildId":"g1","name":"inhouse","queueType":"draft","rosterSize":10}`
	req := httptest.NewRequest("POST", "/league/create", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h := CreateLeagueHandler(s)
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var league models.League
	if err := json.Unmarshal(w.Body.Bytes(), &league); err != nil {
		t.Fatalf("failed to decode league: %v", err)
	}
	if league.ID == uuid.Nil {
		t.Fatalf("league has no ID")
	}
	if got := len(s.Core.Leagues()); got != 1 {
		t.Fatalf("expected 1 live league, got %d", got)
	}
}

func TestCreateLeagueRejectsOddRoster(t *testing.T) {
	s := newTestServer()

	body := `{"guildId":"g1","name":"inhouse","queueType":"draft","rosterSize":9}`
	req := httptest.NewRequest("POST", "/league/create", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	CreateLeagueHandler(s).ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestKillUnknownLobbyIs404(t *testing.T) {
	s := newTestServer()

	body, _ := json.Marshal(map[string]string{"lobbyId": uuid.NewString()})
	req := httptest.NewRequest("POST", "/lobby/kill", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	KillLobbyHandler(s).ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

// TestLoginIssuesAdminToken checks the operator login round trip.
func TestLoginIssuesAdminToken(t *testing.T) {
	if err := auth.Init(); err != nil {
		t.Fatalf("auth init: %v", err)
	}
	hash, err := auth.CreateHash("hunter2", auth.Params)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	t.Setenv("ADMIN_OPERATOR", "ops")
	t.Setenv("ADMIN_PASSWORD_HASH", hash)

	body := `{"operator":"ops","password":"hunter2"}`
	req := httptest.NewRequest("POST", "/admin/login", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	LoginHandler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	operator, err := auth.AuthenticateAdminJWT(resp["token"])
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if operator != "ops" {
		t.Fatalf("expected operator ops, got %s", operator)
	}

	// Wrong password is rejected.
	req = httptest.NewRequest("POST", "/admin/login", bytes.NewBufferString(`{"operator":"ops","password":"nope"}`))
	w = httptest.NewRecorder()
	LoginHandler().ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyState enumerates the lifecycle states of a match lobby.
type LobbyState string

const (
	StateNew               LobbyState = "new"
	StateWaitingForQueue   LobbyState = "waiting_for_queue"
	StateCheckingReady     LobbyState = "checking_ready"
	StateSelectionPriority LobbyState = "selection_priority"
	StateDraftingPlayers   LobbyState = "drafting_players"
	StateWaitingForBot     LobbyState = "waiting_for_bot"
	StateBotAssigned       LobbyState = "bot_assigned"
	StateMatchInProgress   LobbyState = "match_in_progress"
	StateCompleted         LobbyState = "completed"
	StateKilled            LobbyState = "killed"
)

// Terminal reports whether the state ends the lobby's lifecycle.
func (s LobbyState) Terminal() bool {
	return s == StateCompleted || s == StateKilled
}

// QueueType selects how a full lobby turns its roster into two teams.
type QueueType string

const (
	QueueAutoBalance QueueType = "auto_balance"
	QueueDraft       QueueType = "draft"
	QueueChallenge   QueueType = "challenge"
)

// Drafted reports whether this queue type goes through captain drafting.
func (q QueueType) Drafted() bool {
	return q == QueueDraft || q == QueueChallenge
}

// LobbyRecord is the persisted shape of a lobby, upserted after every
// committed state transition and finalized on archival.
type LobbyRecord struct {
	ID            uuid.UUID  `json:"id"`
	LeagueID      uuid.UUID  `json:"leagueId"`
	Name          string     `json:"name"`
	State         LobbyState `json:"state"`
	QueueType     QueueType  `json:"queueType"`
	CaptainBlue   string     `json:"captainBlue,omitempty"`
	CaptainRed    string     `json:"captainRed,omitempty"`
	MatchID       string     `json:"matchId,omitempty"`
	ReadyDeadline time.Time  `json:"readyDeadline,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

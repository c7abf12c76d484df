// internal/core/events.go
package core

import (
	"github.com/google/uuid"

	"github.com/soloqueue/inhouse/internal/lobby"
	"github.com/soloqueue/inhouse/internal/models"
)

// NotifyType is the closed set of transition-completion events the core
// fans out. The notification layer owns all text formatting; the core
// only names what happened and hands over snapshots.
type NotifyType string

const (
	NotifyQueueJoined       NotifyType = "queue_joined"
	NotifyQueueLeft         NotifyType = "queue_left"
	NotifyQueueBanned       NotifyType = "queue_banned"
	NotifyReadyCheckStarted NotifyType = "ready_check_started"
	NotifyPlayersReady      NotifyType = "players_ready"
	NotifyReadyCheckFailed  NotifyType = "ready_check_failed"
	NotifySelectionStarted  NotifyType = "selection_started"
	NotifyDraftTurn         NotifyType = "draft_turn"
	NotifyPlayerDrafted     NotifyType = "player_drafted"
	NotifyBotAssigned       NotifyType = "bot_assigned"
	NotifyMatchStarted      NotifyType = "match_started"
	NotifyMatchEnded        NotifyType = "match_ended"
	NotifyLobbyKilled       NotifyType = "lobby_killed"
)

// Notification carries one completed transition to the notification
// collaborator. Lobby is a snapshot, never a live pointer.
type Notification struct {
	Type        NotifyType
	LeagueID    uuid.UUID
	Lobby       *lobby.Snapshot
	Participant *models.Participant
	Extra       map[string]interface{}
}

// Notifier is the user-facing notification surface. Implementations own
// delivery and formatting; failures are theirs to absorb.
type Notifier interface {
	Notify(Notification)
}

// NopNotifier discards everything; useful in tests and headless runs.
type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}

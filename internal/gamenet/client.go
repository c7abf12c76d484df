// internal/gamenet/client.go

// Package gamenet is the low-level transport to the external game
// network. It exposes the connect/authenticate/launch primitives and a
// stream of roster snapshots; everything above it (retry policy, roster
// reconciliation, command pacing) lives in the session controller.
package gamenet

import (
	"context"

	"github.com/soloqueue/inhouse/internal/models"
)

// Member is one occupant of the remote practice lobby as the network
// reports it. ID is the participant identity key; Slot is the raw seat
// index within the team, informational only.
type Member struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Team models.Team `json:"team"`
	Slot int         `json:"slot"`
}

// RosterSnapshot is a full membership listing at one point in time.
// Snapshots are absolute, not deltas.
type RosterSnapshot struct {
	Members []Member `json:"members"`
}

// LobbyConfig scopes a launched practice lobby.
type LobbyConfig struct {
	Name      string      `json:"name"`
	Password  string      `json:"password"`
	GameMode  string      `json:"gameMode"`
	FirstPick models.Team `json:"firstPick"`
}

// Client is one connection-capable game-network identity. A Client is
// not safe for concurrent command use; the session controller serializes
// all calls through its command queue.
type Client interface {
	// Connect establishes the low-level transport.
	Connect(ctx context.Context) error
	// Authenticate logs the bot account in over an open transport.
	Authenticate(ctx context.Context) error
	// WaitReady blocks until the application layer reports the account
	// usable (game coordinator session established).
	WaitReady(ctx context.Context) error

	LaunchLobby(ctx context.Context, cfg LobbyConfig) error
	JoinLobby(ctx context.Context, name, password string) error
	LeaveLobby(ctx context.Context) error

	Invite(ctx context.Context, participantID string) error
	Kick(ctx context.Context, participantID string) error
	Configure(ctx context.Context, cfg LobbyConfig) error
	FlipSides(ctx context.Context) error

	// StartMatch launches the game and returns the network's match id.
	StartMatch(ctx context.Context) (string, error)

	// Snapshots yields roster updates while in a lobby. The channel is
	// closed when the connection dies.
	Snapshots() <-chan RosterSnapshot

	Close() error
}

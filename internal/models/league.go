// internal/models/league.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// League is one community's matchmaking context, persisted per guild.
// The in-memory instance built from it owns the live lobbies and queue.
type League struct {
	ID      uuid.UUID `json:"id"`
	GuildID string    `json:"guildId"`
	Name    string    `json:"name"`

	QueueType  QueueType    `json:"queueType"`
	RosterSize int          `json:"rosterSize"`
	Config     LeagueConfig `json:"config"`

	CreatedAt time.Time `json:"createdAt"`
}

// LeagueConfig holds the tunables an admin can set per league.
type LeagueConfig struct {
	// ReadyCheckTimeout bounds the ready-check phase. Stored in
	// milliseconds in the DB; zero falls back to DefaultReadyCheckTimeout.
	ReadyCheckTimeout time.Duration `json:"readyCheckTimeout"`

	// CaptainRatingThreshold is the minimum rating a participant needs
	// to be eligible as captain in draft queues.
	CaptainRatingThreshold int `json:"captainRatingThreshold"`
}

const DefaultReadyCheckTimeout = 5 * time.Second

// ReadyTimeout returns the configured ready-check timeout or the default.
func (c LeagueConfig) ReadyTimeout() time.Duration {
	if c.ReadyCheckTimeout <= 0 {
		return DefaultReadyCheckTimeout
	}
	return c.ReadyCheckTimeout
}

// BotAccount is one registered game-network identity the session pool
// can dial. PasswordHash is an argon2id encoded hash, never plaintext.
type BotAccount struct {
	ID           uuid.UUID `json:"id"`
	AccountName  string    `json:"accountName"`
	PasswordHash string    `json:"-"`
	GatewayURL   string    `json:"gatewayUrl"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MatchRecord is the archival row for a finished match.
type MatchRecord struct {
	MatchID    string        `json:"matchId"`
	LobbyID    uuid.UUID     `json:"lobbyId"`
	LeagueID   uuid.UUID     `json:"leagueId"`
	Winner     Team          `json:"winner,omitempty"`
	BluePlayer []string      `json:"bluePlayers"`
	RedPlayer  []string      `json:"redPlayers"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration,omitempty"`
}

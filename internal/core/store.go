// internal/core/store.go
package core

import (
	"context"

	"github.com/google/uuid"

	"github.com/soloqueue/inhouse/internal/models"
)

// Store is the persistence collaborator. Writes happen from inside a
// drained event; single-row upserts only, no cross-step transactions.
type Store interface {
	Leagues(ctx context.Context) ([]models.League, error)
	InsertLeague(ctx context.Context, league models.League) error

	UpsertLobby(ctx context.Context, rec models.LobbyRecord) error
	OpenLobbies(ctx context.Context) ([]models.LobbyRecord, error)
	MarkLobbyKilled(ctx context.Context, rec models.LobbyRecord) error
	ArchiveMatch(ctx context.Context, rec models.MatchRecord) error

	QueueEntries(ctx context.Context, leagueID uuid.UUID) ([]models.Participant, error)
	SaveQueueEntry(ctx context.Context, leagueID uuid.UUID, p models.Participant) error
	DeleteQueueEntry(ctx context.Context, leagueID uuid.UUID, participantID string) error

	Bans(ctx context.Context, leagueID uuid.UUID) ([]models.Ban, error)
	UpsertBan(ctx context.Context, leagueID uuid.UUID, ban models.Ban) error
}

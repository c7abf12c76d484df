// internal/database/store.go
package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/soloqueue/inhouse/internal/models"
)

// Store adapts the package-level query functions to the persistence
// surface the orchestration core consumes.
type Store struct{}

func NewStore() *Store { return &Store{} }

func (Store) Leagues(ctx context.Context) ([]models.League, error) {
	return GetLeagues(ctx)
}

func (Store) InsertLeague(ctx context.Context, league models.League) error {
	return InsertLeague(ctx, league)
}

func (Store) UpsertLobby(ctx context.Context, rec models.LobbyRecord) error {
	return UpsertLobby(ctx, rec)
}

func (Store) OpenLobbies(ctx context.Context) ([]models.LobbyRecord, error) {
	return GetOpenLobbies(ctx)
}

func (Store) MarkLobbyKilled(ctx context.Context, rec models.LobbyRecord) error {
	return MarkLobbyKilled(ctx, rec)
}

func (Store) ArchiveMatch(ctx context.Context, rec models.MatchRecord) error {
	return ArchiveMatch(ctx, rec)
}

func (Store) QueueEntries(ctx context.Context, leagueID uuid.UUID) ([]models.Participant, error) {
	return GetQueueEntries(ctx, leagueID)
}

func (Store) SaveQueueEntry(ctx context.Context, leagueID uuid.UUID, p models.Participant) error {
	return SaveQueueEntry(ctx, leagueID, p)
}

func (Store) DeleteQueueEntry(ctx context.Context, leagueID uuid.UUID, participantID string) error {
	return DeleteQueueEntry(ctx, leagueID, participantID)
}

func (Store) Bans(ctx context.Context, leagueID uuid.UUID) ([]models.Ban, error) {
	return GetBans(ctx, leagueID)
}

func (Store) UpsertBan(ctx context.Context, leagueID uuid.UUID, ban models.Ban) error {
	return UpsertBan(ctx, leagueID, ban)
}

// internal/database/match.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/soloqueue/inhouse/internal/models"
)

// ArchiveMatch writes the final outcome row for a finished match.
func ArchiveMatch(ctx context.Context, rec models.MatchRecord) error {
	q := `
		INSERT INTO matches (match_id, lobby_id, league_id, winner,
		    blue_players, red_players, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (match_id) DO UPDATE SET
		    winner = EXCLUDED.winner,
		    duration_ms = EXCLUDED.duration_ms
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q,
			rec.MatchID, rec.LobbyID, rec.LeagueID, rec.Winner,
			rec.BluePlayer, rec.RedPlayer,
			rec.StartedAt, rec.Duration.Milliseconds(),
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to archive match: %w", err)
	}
	return nil
}

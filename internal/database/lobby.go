// internal/database/lobby.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/soloqueue/inhouse/internal/models"
)

// UpsertLobby writes the persisted shape of a lobby after a committed
// state transition. The row survives process restarts so in-flight
// lobbies can be rebuilt or reconciled on boot.
func UpsertLobby(ctx context.Context, rec models.LobbyRecord) error {
	q := `
		INSERT INTO lobbies (id, league_id, name, state, queue_type,
		    captain_blue, captain_red, match_id, ready_deadline, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
		    state = EXCLUDED.state,
		    captain_blue = EXCLUDED.captain_blue,
		    captain_red = EXCLUDED.captain_red,
		    match_id = EXCLUDED.match_id,
		    ready_deadline = EXCLUDED.ready_deadline
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q,
			rec.ID, rec.LeagueID, rec.Name, rec.State, rec.QueueType,
			rec.CaptainBlue, rec.CaptainRed, rec.MatchID,
			rec.ReadyDeadline, rec.CreatedAt,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to upsert lobby: %w", err)
	}
	return nil
}

// GetOpenLobbies returns lobby rows whose state is not terminal, used
// to reconcile orphaned lobbies on startup.
func GetOpenLobbies(ctx context.Context) ([]models.LobbyRecord, error) {
	q := `
	SELECT id, league_id, name, state, queue_type,
	       captain_blue, captain_red, match_id, ready_deadline, created_at
	FROM lobbies
	WHERE state NOT IN ('completed', 'killed')
	`
	rows, err := DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []models.LobbyRecord
	for rows.Next() {
		var r models.LobbyRecord
		if err := rows.Scan(
			&r.ID, &r.LeagueID, &r.Name, &r.State, &r.QueueType,
			&r.CaptainBlue, &r.CaptainRed, &r.MatchID,
			&r.ReadyDeadline, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// MarkLobbyKilled flags an orphaned lobby row terminal without going
// through the live state machine.
func MarkLobbyKilled(ctx context.Context, rec models.LobbyRecord) error {
	q := `UPDATE lobbies SET state = $1 WHERE id = $2`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, models.StateKilled, rec.ID)
		return e
	})
}

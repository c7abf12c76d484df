// internal/database/ban.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/soloqueue/inhouse/internal/models"
)

func UpsertBan(ctx context.Context, leagueID uuid.UUID, ban models.Ban) error {
	q := `
		INSERT INTO bans (league_id, participant_id, reason, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (league_id, participant_id) DO UPDATE SET
		    reason = EXCLUDED.reason,
		    expires_at = EXCLUDED.expires_at
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, leagueID, ban.ParticipantID, ban.Reason, ban.Expires)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to upsert ban: %w", err)
	}
	return nil
}

// GetBans returns every ban row for a league, expired ones included;
// expiry is evaluated by the caller against the current clock.
func GetBans(ctx context.Context, leagueID uuid.UUID) ([]models.Ban, error) {
	q := `
	SELECT participant_id, reason, expires_at
	FROM bans
	WHERE league_id = $1
	`
	rows, err := DB.Query(ctx, q, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bans []models.Ban
	for rows.Next() {
		var b models.Ban
		if err := rows.Scan(&b.ParticipantID, &b.Reason, &b.Expires); err != nil {
			return nil, err
		}
		bans = append(bans, b)
	}
	return bans, rows.Err()
}

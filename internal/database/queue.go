// internal/database/queue.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/soloqueue/inhouse/internal/models"
)

// SaveQueueEntry persists one waiting participant so the queue can be
// rebuilt after a restart.
func SaveQueueEntry(ctx context.Context, leagueID uuid.UUID, p models.Participant) error {
	q := `
		INSERT INTO queue_entries (league_id, participant_id, name, rating)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (league_id, participant_id) DO UPDATE SET
		    name = EXCLUDED.name,
		    rating = EXCLUDED.rating
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, leagueID, p.ID, p.Name, p.Rating)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to save queue entry: %w", err)
	}
	return nil
}

func DeleteQueueEntry(ctx context.Context, leagueID uuid.UUID, participantID string) error {
	q := `DELETE FROM queue_entries WHERE league_id = $1 AND participant_id = $2`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, leagueID, participantID)
		return e
	})
}

// GetQueueEntries returns the waiting queue for a league in join order.
func GetQueueEntries(ctx context.Context, leagueID uuid.UUID) ([]models.Participant, error) {
	q := `
	SELECT participant_id, name, rating
	FROM queue_entries
	WHERE league_id = $1
	ORDER BY joined_at
	`
	rows, err := DB.Query(ctx, q, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Rating); err != nil {
			return nil, err
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

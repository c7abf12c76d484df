package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/soloqueue/inhouse/internal/models"
)

func InsertLeague(ctx context.Context, league models.League) error {
	if league.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate league id: %w", err)
		}
		league.ID = id
	}

	q := `INSERT INTO leagues (id, guild_id, name, queue_type, roster_size,
	          ready_check_timeout_ms, captain_rating_threshold)
	      VALUES ($1, $2, $3, $4, $5, $6, $7)
	      ON CONFLICT (id) DO UPDATE SET
	          name = EXCLUDED.name,
	          queue_type = EXCLUDED.queue_type,
	          roster_size = EXCLUDED.roster_size,
	          ready_check_timeout_ms = EXCLUDED.ready_check_timeout_ms,
	          captain_rating_threshold = EXCLUDED.captain_rating_threshold`

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			league.ID, league.GuildID, league.Name,
			league.QueueType, league.RosterSize,
			league.Config.ReadyCheckTimeout.Milliseconds(),
			league.Config.CaptainRatingThreshold,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert league: %w", err)
	}
	return nil
}

func GetLeagues(ctx context.Context) ([]models.League, error) {
	q := `
	SELECT id, guild_id, name, queue_type, roster_size,
	       ready_check_timeout_ms, captain_rating_threshold, created_at
	FROM leagues
	`
	rows, err := DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leagues []models.League
	for rows.Next() {
		var l models.League
		var timeoutMS int64
		if err := rows.Scan(
			&l.ID, &l.GuildID, &l.Name, &l.QueueType, &l.RosterSize,
			&timeoutMS, &l.Config.CaptainRatingThreshold, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		l.Config.ReadyCheckTimeout = time.Duration(timeoutMS) * time.Millisecond
		leagues = append(leagues, l)
	}
	return leagues, rows.Err()
}

// internal/database/bot.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/soloqueue/inhouse/internal/auth"
	"github.com/soloqueue/inhouse/internal/models"
)

// CreateBotAccount registers one game-network identity for the session
// pool. The plaintext password is hashed before it touches the DB.
func CreateBotAccount(ctx context.Context, account *models.BotAccount, password string) error {
	if account.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate bot account id: %w", err)
		}
		account.ID = id
	}

	hash, err := auth.CreateHash(password, auth.Params)
	if err != nil {
		return fmt.Errorf("failed to hash bot password: %w", err)
	}
	account.PasswordHash = hash

	q := `INSERT INTO bot_accounts (id, account_name, password_hash, gateway_url)
	      VALUES ($1, $2, $3, $4)`

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			account.ID, account.AccountName, account.PasswordHash, account.GatewayURL,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert bot account: %w", err)
	}
	return nil
}

func GetBotAccounts(ctx context.Context) ([]models.BotAccount, error) {
	q := `
	SELECT id, account_name, password_hash, gateway_url, created_at
	FROM bot_accounts
	`
	rows, err := DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.BotAccount
	for rows.Next() {
		var a models.BotAccount
		if err := rows.Scan(&a.ID, &a.AccountName, &a.PasswordHash, &a.GatewayURL, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func DeleteBotAccount(ctx context.Context, id uuid.UUID) error {
	q := `DELETE FROM bot_accounts WHERE id = $1`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, id)
		return e
	})
}

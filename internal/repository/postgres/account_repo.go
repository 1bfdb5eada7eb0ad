package postgres

import (
	"context"
	"errors"

	"github.com/and161185/manus-bridge/internal/errs"
	"github.com/and161185/manus-bridge/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const accountColumns = `id, user_id, name, encrypted_api_key, base_url, is_default, created_at`

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, user_id, name, encrypted_api_key, base_url, is_default)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, a.ID, a.UserID, a.Name, a.EncryptedAPIKey, a.BaseURL, a.IsDefault)
	return err
}

// Get selects one account scoped by owning user.
func (r *AccountRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE user_id=$1 AND id=$2`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, userID, id))
}

// GetDefault selects the user's default account.
func (r *AccountRepo) GetDefault(ctx context.Context, userID uuid.UUID) (*model.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE user_id=$1 AND is_default`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, userID))
}

func (r *AccountRepo) scanOne(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.EncryptedAPIKey, &a.BaseURL, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListByUser returns the user's accounts, default first, then newest first.
func (r *AccountRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM accounts
WHERE user_id=$1
ORDER BY is_default DESC, created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.EncryptedAPIKey, &a.BaseURL, &a.IsDefault, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete removes one account. Tasks referencing it are left in place.
func (r *AccountRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	const q = `DELETE FROM accounts WHERE user_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetDefault clears the user's current default and marks the given account.
// Uniqueness of the default flag is enforced here, not by a DB constraint.
func (r *AccountRepo) SetDefault(ctx context.Context, userID, id uuid.UUID) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const clear = `UPDATE accounts SET is_default=false WHERE user_id=$1 AND is_default`
	const set = `UPDATE accounts SET is_default=true WHERE user_id=$1 AND id=$2`

	if _, err = tx.Exec(ctx, clear, userID); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, set, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

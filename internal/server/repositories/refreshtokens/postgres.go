package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/dbx"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// PostgresRepository implements Repository over the refresh_tokens table.
// Per-user atomicity comes from locking the owning users row; single use
// comes from locking the token row during rotation.
type PostgresRepository struct {
	db       dbx.DB
	validity time.Duration
	newToken func() (string, error)
}

// NewPostgresRepository constructs a repository bound to db. Tokens it issues
// are valid for validity.
func NewPostgresRepository(db dbx.DB, validity time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, validity: validity, newToken: newToken}
}

func dbError(err error) error {
	return fmt.Errorf("db error: %w: %w", common.ErrUnavailable, err)
}

// txError reports begin/commit failures as unavailable and passes errors
// from inside the transaction through untouched.
func txError(err error) error {
	if errors.Is(err, dbx.ErrTx) {
		return dbError(err)
	}
	return err
}

func (r *PostgresRepository) Issue(ctx context.Context, userID string, now time.Time) (string, error) {
	token, err := r.newToken()
	if err != nil {
		return "", fmt.Errorf("error generating refresh token: %w", err)
	}

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var id string
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return dbError(err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
			return dbError(err)
		}

		query :=
			`INSERT INTO refresh_tokens (user_id, token, expires_at, created_at)
			 VALUES ($1, $2, $3, $4)
			 `
		if _, err := tx.ExecContext(ctx, query, userID, token, now.Add(r.validity), now); err != nil {
			return dbError(err)
		}
		return nil
	})
	if err != nil {
		return "", txError(err)
	}

	return token, nil
}

func (r *PostgresRepository) Rotate(ctx context.Context, token string, now time.Time) (string, string, error) {
	next, err := r.newToken()
	if err != nil {
		return "", "", fmt.Errorf("error generating refresh token: %w", err)
	}

	var userID string
	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query :=
			`SELECT id, user_id, expires_at FROM refresh_tokens
			 WHERE token = $1
			 FOR UPDATE
			 `
		current := &models.RefreshToken{}
		if err := tx.QueryRowContext(ctx, query, token).
			Scan(&current.ID, &current.UserID, &current.Expires); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrRefreshTokenNotFound
			}
			return dbError(err)
		}

		if current.Expired(now) {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM refresh_tokens WHERE id = $1`, current.ID); err != nil {
				return dbError(err)
			}
			return dbx.Commit(common.ErrRefreshTokenExpired)
		}

		query =
			`UPDATE refresh_tokens SET token = $2, expires_at = $3
			 WHERE id = $1
			 `
		if _, err := tx.ExecContext(ctx, query, current.ID, next, now.Add(r.validity)); err != nil {
			return dbError(err)
		}

		userID = current.UserID
		return nil
	})
	if err != nil {
		return "", "", txError(err)
	}

	return userID, next, nil
}

func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query :=
		`SELECT id, user_id, token, expires_at, created_at FROM refresh_tokens
		 WHERE token = $1
		 `
	t := &models.RefreshToken{}
	if err := r.db.QueryRowContext(ctx, query, token).
		Scan(&t.ID, &t.UserID, &t.Token, &t.Expires, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrRefreshTokenNotFound
		}
		return nil, dbError(err)
	}
	return t, nil
}

func (r *PostgresRepository) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return r.delete(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.delete(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
}

func (r *PostgresRepository) delete(ctx context.Context, query string, arg any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbError(err)
	}
	return n, nil
}

func (r *PostgresRepository) CountForUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM refresh_tokens WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, dbError(err)
	}
	return n, nil
}

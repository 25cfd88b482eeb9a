package users

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

const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

// PostgresRepository implements Repository over the users and user_roles tables.
type PostgresRepository struct {
	db dbx.DB
}

// NewPostgresRepository constructs a repository bound to db.
func NewPostgresRepository(db dbx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
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

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query :=
			`INSERT INTO users (username, email, password_hash)
			 VALUES ($1, $2, $3)
			 RETURNING id, created_at
			 `
		err := tx.QueryRowContext(ctx, query, user.UserName, user.Email, user.PasswordHash).
			Scan(&user.ID, &user.CreatedAt)
		if err != nil {
			if constraint, ok := dbx.UniqueViolation(err); ok {
				switch constraint {
				case usernameConstraint:
					return common.ErrUsernameTaken
				case emailConstraint:
					return common.ErrEmailTaken
				}
			}
			return dbError(err)
		}

		for _, role := range user.Roles {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, user.ID, role); err != nil {
				return dbError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, userName string) (*models.User, error) {
	query :=
		`SELECT id, username, email, password_hash, created_at, last_login_at FROM users
		 WHERE username = $1
		 `
	return r.getOne(ctx, query, userName)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, username, email, password_hash, created_at, last_login_at FROM users
		 WHERE id = $1
		 `
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	var lastLogin sql.NullTime

	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.UserName, &user.Email, &user.PasswordHash, &user.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbError(err)
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}

	roles, err := r.roles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return user, nil
}

func (r *PostgresRepository) roles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, dbError(err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}

	return roles, nil
}

func (r *PostgresRepository) ExistsByUsername(ctx context.Context, userName string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, userName)
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *PostgresRepository) exists(ctx context.Context, query string, arg string) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, dbError(err)
	}
	return found, nil
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE users SET last_login_at = $2
		 WHERE id = $1
		 `
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return dbError(err)
	}
	return nil
}

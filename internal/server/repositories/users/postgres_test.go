package users

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	insertUserQ = `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*email,\s*password_hash\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id,\s*created_at\s*$`
	insertRoleQ = `(?s)^INSERT\s+INTO\s+user_roles\s*\(user_id,\s*role\)\s*VALUES\s*\(\$1,\s*\$2\)\s*$`
	byNameQ     = `(?s)^SELECT\s+id,\s*username,\s*email,\s*password_hash,\s*created_at,\s*last_login_at\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s*$`
	byIDQ       = `(?s)^SELECT\s+id,\s*username,\s*email,\s*password_hash,\s*created_at,\s*last_login_at\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`
	rolesQ      = `(?s)^SELECT\s+role\s+FROM\s+user_roles\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+role\s*$`
)

var userCols = []string{"id", "username", "email", "password_hash", "created_at", "last_login_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(insertUserQ).
		WithArgs("alice", "a@x.io", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("u-1", created))
	mock.ExpectExec(insertRoleQ).
		WithArgs("u-1", "ROLE_USER").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u := &models.User{UserName: "alice", Email: "a@x.io", PasswordHash: "hash", Roles: []string{"ROLE_USER"}}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "u-1" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_BeginFails_Unavailable(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(driver.ErrBadConn)

	_, err := repo.Create(context.Background(), &models.User{UserName: "alice", Email: "alice@example.com", PasswordHash: "h"})
	if !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_Conflicts(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{usernameConstraint, common.ErrUsernameTaken},
		{emailConstraint, common.ErrEmailTaken},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectBegin()
			mock.ExpectQuery(insertUserQ).
				WithArgs("alice", "a@x.io", "hash").
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})
			mock.ExpectRollback()

			_, err := repo.Create(context.Background(), &models.User{UserName: "alice", Email: "a@x.io", PasswordHash: "hash"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestCreate_RoleInsertFails_RollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(insertUserQ).
		WithArgs("alice", "a@x.io", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("u-1", time.Now()))
	mock.ExpectExec(insertRoleQ).
		WithArgs("u-1", "ROLE_USER").
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(),
		&models.User{UserName: "alice", Email: "a@x.io", PasswordHash: "hash", Roles: []string{"ROLE_USER"}})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGetByUsername_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	login := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(byNameQ).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "alice", "a@x.io", "hash", time.Now(), login))
	mock.ExpectQuery(rolesQ).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("ROLE_ADMIN").AddRow("ROLE_USER"))

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername error: %v", err)
	}
	if got.ID != "u-1" || got.Email != "a@x.io" || len(got.Roles) != 2 {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(login) {
		t.Fatalf("unexpected last login: %v", got.LastLoginAt)
	}
}

func TestGetByUsername_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byNameQ).
		WithArgs("bob").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUsername(context.Background(), "bob")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestGetByID_NullLastLogin(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "alice", "a@x.io", "hash", time.Now(), nil))
	mock.ExpectQuery(rolesQ).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}))

	got, err := repo.GetByID(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.LastLoginAt != nil {
		t.Fatalf("expected nil last login, got %v", got.LastLoginAt)
	}
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).
		WithArgs("u-1").
		WillReturnError(errors.New("db down"))

	_, err := repo.GetByID(context.Background(), "u-1")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestExists(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\)\s*$`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\)\s*$`).
		WithArgs("b@x.io").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.ExistsByUsername(context.Background(), "alice")
	if err != nil || !ok {
		t.Fatalf("ExistsByUsername = %v, %v", ok, err)
	}
	ok, err = repo.ExistsByEmail(context.Background(), "b@x.io")
	if err != nil || ok {
		t.Fatalf("ExistsByEmail = %v, %v", ok, err)
	}
}

func TestTouchLastLogin(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+last_login_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs("u-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.TouchLastLogin(context.Background(), "u-1", at); err != nil {
		t.Fatalf("TouchLastLogin error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

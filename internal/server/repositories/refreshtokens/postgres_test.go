package refreshtokens

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
)

const (
	lockUserQ    = `(?s)^SELECT\s+id\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE\s*$`
	deleteUserQ  = `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s*$`
	insertTokenQ = `(?s)^INSERT\s+INTO\s+refresh_tokens\s*\(user_id,\s*token,\s*expires_at,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*$`
	lockTokenQ   = `(?s)^SELECT\s+id,\s*user_id,\s*expires_at\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s+FOR\s+UPDATE\s*$`
	deleteByIDQ  = `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+id\s*=\s*\$1\s*$`
	updateTokenQ = `(?s)^UPDATE\s+refresh_tokens\s+SET\s+token\s*=\s*\$2,\s*expires_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1\s*$`
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	repo := NewPostgresRepository(db, time.Hour)
	repo.newToken = func() (string, error) { return "tok-new", nil }
	return repo, mock, db
}

func TestIssue_ReplacesInOneTx(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserQ).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectExec(deleteUserQ).WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTokenQ).WithArgs("u1", "tok-new", now.Add(time.Hour), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tok, err := repo.Issue(context.Background(), "u1", now)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if tok != "tok-new" {
		t.Fatalf("unexpected token %q", tok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIssue_UnknownUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserQ).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Issue(context.Background(), "ghost", now)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestIssue_InsertFails_RollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserQ).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectExec(deleteUserQ).WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTokenQ).WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, err := repo.Issue(context.Background(), "u1", now)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIssue_BeginFails_Unavailable(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(driver.ErrBadConn)

	_, err := repo.Issue(context.Background(), "u1", now)
	if !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotate_CommitFails_Unavailable(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockTokenQ).WithArgs("tok-old").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at"}).
			AddRow(int64(7), "u1", now.Add(time.Hour)))
	mock.ExpectExec(updateTokenQ).WithArgs(int64(7), "tok-new", now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	_, _, err := repo.Rotate(context.Background(), "tok-old", now)
	if !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockTokenQ).WithArgs("tok-old").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at"}).AddRow(int64(7), "u1", now.Add(time.Minute)))
	mock.ExpectExec(updateTokenQ).WithArgs(int64(7), "tok-new", now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	userID, next, err := repo.Rotate(context.Background(), "tok-old", now)
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}
	if userID != "u1" || next != "tok-new" {
		t.Fatalf("unexpected result %q %q", userID, next)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotate_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockTokenQ).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := repo.Rotate(context.Background(), "nope", now)
	if !errors.Is(err, common.ErrRefreshTokenNotFound) {
		t.Fatalf("expected ErrRefreshTokenNotFound, got %v", err)
	}
}

func TestRotate_ExpiredDeletesAndCommits(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockTokenQ).WithArgs("tok-old").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at"}).AddRow(int64(7), "u1", now))
	mock.ExpectExec(deleteByIDQ).WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, _, err := repo.Rotate(context.Background(), "tok-old", now)
	if !errors.Is(err, common.ErrRefreshTokenExpired) {
		t.Fatalf("expected ErrRefreshTokenExpired, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFind(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*user_id,\s*token,\s*expires_at,\s*created_at\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at"}).
			AddRow(int64(1), "u1", "tok", now.Add(time.Hour), now))
	mock.ExpectQuery(q).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	got, err := repo.Find(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if got.UserID != "u1" || !got.Expires.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected row %+v", got)
	}

	if _, err := repo.Find(context.Background(), "missing"); !errors.Is(err, common.ErrRefreshTokenNotFound) {
		t.Fatalf("expected ErrRefreshTokenNotFound, got %v", err)
	}
}

func TestRevokeAll_And_DeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(deleteUserQ).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expires_at\s*<=\s*\$1\s*$`).
		WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAll(context.Background(), "u1")
	if err != nil || n != 0 {
		t.Fatalf("RevokeAll = %d, %v", n, err)
	}
	n, err = repo.DeleteExpired(context.Background(), now)
	if err != nil || n != 3 {
		t.Fatalf("DeleteExpired = %d, %v", n, err)
	}
}

func TestCountForUser_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+count\(\*\)\s+FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s*$`).
		WithArgs("u1").WillReturnError(errors.New("db down"))

	if _, err := repo.CountForUser(context.Background(), "u1"); !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

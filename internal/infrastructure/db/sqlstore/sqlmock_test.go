package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

// newPostgresMock returns a store whose queries are rebound with $N placeholders.
func newPostgresMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(sqlx.NewDb(db, "pgx")), mock
}

func TestPostgres_CreateAccount_UniqueViolation(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO accounts`) + `.*VALUES \(\$1, \$2, .*\$13\)`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	err := store.Accounts().Create(context.Background(), newAccount("a1", "dup@example.com", domain.RoleUser))
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateAccount_OtherError(t *testing.T) {
	store, mock := newPostgresMock(t)
	mock.ExpectExec(`INSERT INTO accounts`).WillReturnError(&pgconn.PgError{Code: "23503"})

	err := store.Accounts().Create(context.Background(), newAccount("a1", "x@example.com", domain.RoleUser))
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrEmailTaken))
}

func TestPostgres_RegisterWithInvite_ExhaustedRollsBack(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO accounts`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE invite_codes SET current_uses = current_uses + 1 WHERE code = $1 AND is_active = $2`)).
		WithArgs("ONCE", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Registrar().RegisterWithInvite(context.Background(), newAccount("u1", "u1@example.com", domain.RoleUser), "ONCE", t0)
	assert.ErrorIs(t, err, domain.ErrInviteCodeExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RegisterWithInvite_Commits(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO accounts`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE invite_codes SET current_uses`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Registrar().RegisterWithInvite(context.Background(), newAccount("u1", "u1@example.com", domain.RoleUser), "OPEN", t0)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordFailedLogin_Locked(t *testing.T) {
	store, mock := newPostgresMock(t)
	cols := []string{"id", "email", "name", "password_hash", "role", "is_active", "email_verified",
		"failed_login_attempts", "locked_until", "last_login", "invite_code_used", "created_at", "updated_at"}
	lockedUntil := t0.Add(10 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET`)+`.*WHERE id = \$4 AND \(locked_until IS NULL OR locked_until <= \$5\)`).
		WithArgs(domain.MaxFailedAttempts, sqlmock.AnyArg(), t0, "a1", t0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts WHERE id = $1`)).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"a1", "a@example.com", "A", "hash", "user", true, false, 5, lockedUntil, nil, nil, t0, t0))
	mock.ExpectRollback()

	_, err := store.Accounts().RecordFailedLogin(context.Background(), "a1", domain.DefaultLockoutPolicy, t0)
	assert.ErrorIs(t, err, domain.ErrAccountLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
)

const accountColumns = `id, email, name, password_hash, role, is_active, email_verified,
	failed_login_attempts, locked_until, last_login, invite_code_used, created_at, updated_at`

// AccountRepository implements ports.AccountRepository using SQL.
type AccountRepository struct {
	db *sqlx.DB
}

type accountRow struct {
	ID             string         `db:"id"`
	Email          string         `db:"email"`
	Name           string         `db:"name"`
	PasswordHash   string         `db:"password_hash"`
	Role           string         `db:"role"`
	Active         bool           `db:"is_active"`
	EmailVerified  bool           `db:"email_verified"`
	FailedAttempts int            `db:"failed_login_attempts"`
	LockedUntil    sql.NullTime   `db:"locked_until"`
	LastLogin      sql.NullTime   `db:"last_login"`
	InviteCodeUsed sql.NullString `db:"invite_code_used"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r accountRow) toDomain() *domain.Account {
	a := &domain.Account{
		ID:             r.ID,
		Email:          r.Email,
		Name:           r.Name,
		PasswordHash:   r.PasswordHash,
		Role:           domain.Role(r.Role),
		Active:         r.Active,
		EmailVerified:  r.EmailVerified,
		FailedAttempts: r.FailedAttempts,
		LockedUntil:    nullTimePtr(r.LockedUntil),
		LastLoginAt:    nullTimePtr(r.LastLogin),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.InviteCodeUsed.Valid {
		code := r.InviteCodeUsed.String
		a.InviteCodeUsed = &code
	}
	return a
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

const insertAccount = `INSERT INTO accounts (` + accountColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertAccountArgs(a *domain.Account) []any {
	return []any{
		a.ID, a.Email, a.Name, a.PasswordHash, string(a.Role), a.Active, a.EmailVerified,
		a.FailedAttempts, nullTime(a.LockedUntil), nullTime(a.LastLoginAt), nullString(a.InviteCodeUsed),
		a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	}
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(insertAccount), insertAccountArgs(a)...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
}

const selectAccountByID = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, selectAccountByID, id)
}

func (r *AccountRepository) findOne(ctx context.Context, query string, args ...any) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var row accountRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return row.toDomain(), nil
}

// likeEscaper escapes LIKE wildcards in user input.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *AccountRepository) List(ctx context.Context, f ports.AccountFilter) ([]*domain.Account, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(f.Role))
	}
	if f.Search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(f.Search)) + "%"
		where = append(where, `(LOWER(name) LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM accounts`+clause), args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts` + clause + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	var rows []accountRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	out := make([]*domain.Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, total, nil
}

func (r *AccountRepository) Update(ctx context.Context, id string, p ports.AccountPatch, now time.Time) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	sets := []string{"updated_at = ?"}
	args := []any{now.UTC()}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *p.Email)
	}
	if p.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, string(*p.Role))
	}
	if p.Active != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *p.Active)
	}
	args = append(args, id)
	query := `UPDATE accounts SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	var row accountRow
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrEmailTaken
			}
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.ErrAccountNotFound
		}
		return tx.GetContext(ctx, &row, tx.Rebind(selectAccountByID), id)
	})
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	return row.toDomain(), nil
}

// The CASE reads the pre-update counter, so +1 is applied on both sides.
const recordFailedLogin = `UPDATE accounts SET
		failed_login_attempts = failed_login_attempts + 1,
		locked_until = CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE locked_until END,
		updated_at = ?
	WHERE id = ? AND (locked_until IS NULL OR locked_until <= ?)`

// RecordFailedLogin applies the conditional increment and reads the row back
// inside one transaction, so the returned state is the one this call wrote.
func (r *AccountRepository) RecordFailedLogin(ctx context.Context, id string, policy domain.LockoutPolicy, now time.Time) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now = now.UTC()
	var row accountRow
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(recordFailedLogin),
			policy.Threshold, policy.LockUntil(now), now, id, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		err = tx.GetContext(ctx, &row, tx.Rebind(selectAccountByID), id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrAccountLocked
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAccountLocked) || errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("record failed login: %w", err)
	}
	return row.toDomain(), nil
}

const recordSuccessfulLogin = `UPDATE accounts SET
		failed_login_attempts = 0, locked_until = NULL, last_login = ?, updated_at = ?
	WHERE id = ? AND (locked_until IS NULL OR locked_until <= ?)`

// RecordSuccessfulLogin clears the guard only while the account is unlocked,
// so a lock placed by a concurrent failure survives.
func (r *AccountRepository) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now = now.UTC()
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(recordSuccessfulLogin), now, now, id, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		var exists int
		err = tx.GetContext(ctx, &exists, tx.Rebind(`SELECT 1 FROM accounts WHERE id = ?`), id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrAccountLocked
	})
	if err != nil {
		if errors.Is(err, domain.ErrAccountLocked) || errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("record successful login: %w", err)
	}
	return nil
}

func (r *AccountRepository) Stats(ctx context.Context, since time.Time) (*ports.AccountStats, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var totals struct {
		Total    int64 `db:"total"`
		Active   int64 `db:"active"`
		NewSince int64 `db:"new_since"`
	}
	err := r.db.GetContext(ctx, &totals, r.db.Rebind(`SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS new_since
		FROM accounts`), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("account totals: %w", err)
	}

	var byRole []struct {
		Role  string `db:"role"`
		Count int64  `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &byRole, `SELECT role, COUNT(*) AS count FROM accounts GROUP BY role`); err != nil {
		return nil, fmt.Errorf("accounts by role: %w", err)
	}

	st := &ports.AccountStats{
		Total:    totals.Total,
		Active:   totals.Active,
		NewSince: totals.NewSince,
		ByRole:   make(map[domain.Role]int64, len(byRole)),
	}
	for _, rc := range byRole {
		st.ByRole[domain.Role(rc.Role)] = rc.Count
	}
	return st, nil
}

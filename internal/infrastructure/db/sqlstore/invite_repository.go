package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
)

const inviteColumns = `id, code, created_by, max_uses, current_uses, expires_at, is_active, created_at`

// consumableClause matches invite codes that can absorb one more use.
// Parameters: is_active (true), now.
const consumableClause = `is_active = ? AND current_uses < max_uses AND (expires_at IS NULL OR expires_at > ?)`

// InviteRepository implements ports.InviteRepository using SQL.
type InviteRepository struct {
	db *sqlx.DB
}

type inviteRow struct {
	ID          string       `db:"id"`
	Code        string       `db:"code"`
	CreatedBy   string       `db:"created_by"`
	MaxUses     int          `db:"max_uses"`
	CurrentUses int          `db:"current_uses"`
	ExpiresAt   sql.NullTime `db:"expires_at"`
	Active      bool         `db:"is_active"`
	CreatedAt   time.Time    `db:"created_at"`
}

func (r inviteRow) toDomain() *domain.InviteCode {
	return &domain.InviteCode{
		ID:          r.ID,
		Code:        r.Code,
		CreatedBy:   r.CreatedBy,
		MaxUses:     r.MaxUses,
		CurrentUses: r.CurrentUses,
		ExpiresAt:   nullTimePtr(r.ExpiresAt),
		Active:      r.Active,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func (r *InviteRepository) Create(ctx context.Context, inv *domain.InviteCode) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO invite_codes (`+inviteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		inv.ID, inv.Code, inv.CreatedBy, inv.MaxUses, inv.CurrentUses, nullTime(inv.ExpiresAt), inv.Active, inv.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInviteCodeTaken
		}
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

func (r *InviteRepository) FindByCode(ctx context.Context, code string) (*domain.InviteCode, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var row inviteRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+inviteColumns+` FROM invite_codes WHERE code = ?`), code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, fmt.Errorf("find invite: %w", err)
	}
	return row.toDomain(), nil
}

func (r *InviteRepository) List(ctx context.Context) ([]ports.InviteListItem, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows []struct {
		inviteRow
		CreatorName string `db:"creator_name"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT
			i.id, i.code, i.created_by, i.max_uses, i.current_uses, i.expires_at, i.is_active, i.created_at,
			COALESCE(a.name, '') AS creator_name
		FROM invite_codes i
		LEFT JOIN accounts a ON a.id = i.created_by
		ORDER BY i.created_at DESC, i.id`)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}

	out := make([]ports.InviteListItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.InviteListItem{InviteCode: *row.toDomain(), CreatorName: row.CreatorName})
	}
	return out, nil
}

func (r *InviteRepository) Deactivate(ctx context.Context, id string) (*domain.InviteCode, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var row inviteRow
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE invite_codes SET is_active = ? WHERE id = ?`), false, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.ErrInviteNotFound
		}
		return tx.GetContext(ctx, &row, tx.Rebind(`SELECT `+inviteColumns+` FROM invite_codes WHERE id = ?`), id)
	})
	if err != nil {
		return nil, fmt.Errorf("deactivate invite: %w", err)
	}
	return row.toDomain(), nil
}

func (r *InviteRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int64
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM invite_codes WHERE `+consumableClause), true, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("count active invites: %w", err)
	}
	return n, nil
}

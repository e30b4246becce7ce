package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

// Registrar implements ports.Registrar with a single SQL transaction.
type Registrar struct {
	db *sqlx.DB
}

const consumeInvite = `UPDATE invite_codes SET current_uses = current_uses + 1 WHERE code = ? AND ` + consumableClause

func (r *Registrar) RegisterWithInvite(ctx context.Context, a *domain.Account, code string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(insertAccount), insertAccountArgs(a)...); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrEmailTaken
			}
			return fmt.Errorf("insert account: %w", err)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(consumeInvite), code, true, now.UTC())
		if err != nil {
			return fmt.Errorf("consume invite: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("consume invite: %w", err)
		}
		if n == 0 {
			return domain.ErrInviteCodeExhausted
		}
		return nil
	})
	return err
}

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

// ActivityRepository implements ports.ActivityRepository using SQL.
type ActivityRepository struct {
	db *sqlx.DB
}

type activityRow struct {
	ID         string    `db:"id"`
	ActorID    string    `db:"user_id"`
	Action     string    `db:"action"`
	Details    string    `db:"details"`
	IPAddress  string    `db:"ip_address"`
	CreatedAt  time.Time `db:"created_at"`
	ActorName  string    `db:"user_name"`
	ActorEmail string    `db:"user_email"`
}

func (r *ActivityRepository) Append(ctx context.Context, e *domain.ActivityEntry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	details := []byte("{}")
	if len(e.Details) > 0 {
		var err error
		if details, err = json.Marshal(e.Details); err != nil {
			return fmt.Errorf("encode activity details: %w", err)
		}
	}

	actor := sql.NullString{String: e.ActorID, Valid: e.ActorID != ""}
	ip := sql.NullString{String: e.IPAddress, Valid: e.IPAddress != ""}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO activity_logs (id, user_id, action, details, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		e.ID, actor, string(e.Action), string(details), ip, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *ActivityRepository) List(ctx context.Context, offset, limit int) ([]domain.ActivityView, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM activity_logs`); err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}

	var rows []activityRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT
			l.id, COALESCE(l.user_id, '') AS user_id, l.action, l.details,
			COALESCE(l.ip_address, '') AS ip_address, l.created_at,
			COALESCE(a.name, '') AS user_name, COALESCE(a.email, '') AS user_email
		FROM activity_logs l
		LEFT JOIN accounts a ON a.id = l.user_id
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}

	out := make([]domain.ActivityView, 0, len(rows))
	for _, row := range rows {
		view := domain.ActivityView{
			ActivityEntry: domain.ActivityEntry{
				ID:        row.ID,
				ActorID:   row.ActorID,
				Action:    domain.ActivityAction(row.Action),
				IPAddress: row.IPAddress,
				CreatedAt: row.CreatedAt.UTC(),
			},
			ActorName:  row.ActorName,
			ActorEmail: row.ActorEmail,
		}
		if row.Details != "" && row.Details != "{}" {
			if err := json.Unmarshal([]byte(row.Details), &view.Details); err != nil {
				return nil, 0, fmt.Errorf("decode activity details: %w", err)
			}
		}
		out = append(out, view)
	}
	return out, total, nil
}

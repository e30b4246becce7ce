package ports

import (
	"context"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

// ActivityRepository persists the append-only audit log.
type ActivityRepository interface {
	Append(ctx context.Context, entry *domain.ActivityEntry) error
	// List returns entries newest first, joined with the acting account.
	List(ctx context.Context, offset, limit int) ([]domain.ActivityView, int64, error)
}

// ActivityRecorder accepts audit entries. Implementations must not block the
// caller on storage and must not fail the calling operation.
type ActivityRecorder interface {
	Record(ctx context.Context, entry domain.ActivityEntry)
}

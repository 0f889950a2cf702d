package ports

import (
	"context"

	"github.com/resellium/console/internal/core/domain"
)

// OperationRepository persists audit-trail entries.
type OperationRepository interface {
	Insert(ctx context.Context, op *domain.Operation) error
	ListByIdentity(ctx context.Context, identityID string, limit int64) ([]domain.Operation, error)
}

// OperationRecorder accepts audit entries for asynchronous persistence.
// Record must be safe to call from any goroutine and must not block the
// auth path on storage latency.
type OperationRecorder interface {
	Record(op domain.Operation)
}

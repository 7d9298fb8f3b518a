package ports

import (
	"context"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

// AuditSink records every attempt to apply a classified action.
type AuditSink interface {
	RecordApply(ctx context.Context, event domain.ApplyEvent) error
}

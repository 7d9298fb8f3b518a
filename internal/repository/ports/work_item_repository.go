package ports

import (
	"context"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

// WorkItemRepository stores the work items of the current analysis run
// together with its singleton setup and errors rows.
type WorkItemRepository interface {
	Reset(ctx context.Context) error
	SaveSetup(ctx context.Context, setup *domain.Setup) error
	GetSetup(ctx context.Context) (*domain.Setup, error)
	SaveErrors(ctx context.Context, log domain.ErrorLog) error
	GetErrors(ctx context.Context) (domain.ErrorLog, error)
	Insert(ctx context.Context, item *domain.ImportItem) (*domain.ImportItem, error)
	CountByStatus(ctx context.Context) (domain.StatusCounts, error)
	Claim(ctx context.Context, from []domain.ItemStatus, to domain.ItemStatus) (*domain.ImportItem, error)
	Complete(ctx context.Context, item *domain.ImportItem) error
	FindByID(ctx context.Context, id int64) (*domain.ImportItem, error)
	ListByStatus(ctx context.Context, statuses ...domain.ItemStatus) ([]domain.ImportItem, error)
	CountByCatalogID(ctx context.Context) (map[int64]int, error)
	UpdateActions(ctx context.Context, id int64, actions domain.ItemActions) error
}

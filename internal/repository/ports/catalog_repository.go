package ports

import (
	"context"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

type CatalogRepository interface {
	FindProduct(ctx context.Context, id int64) (domain.RawRecord, error)
	ListVariants(ctx context.Context, pid int64) ([]domain.RawRecord, error)
	ListTranslations(ctx context.Context, pids []int64) ([]domain.TranslationRecord, error)
	ListPrices(ctx context.Context, productIDs []int64) ([]domain.PriceRecord, error)

	ListProductTypes(ctx context.Context) ([]domain.NamedRecord, error)
	ListGroups(ctx context.Context) ([]domain.NamedRecord, error)
	ListTaxClasses(ctx context.Context) ([]domain.NamedRecord, error)
	ListMemberGroups(ctx context.Context) ([]domain.NamedRecord, error)
	ListAttributes(ctx context.Context) ([]domain.AttributeDef, error)
	FindFiles(ctx context.Context, uuids [][]byte) ([]domain.FileRecord, error)
	FindPages(ctx context.Context, ids []int64) ([]domain.PageRecord, error)

	// MaxTimestamp returns the latest modification time over every table that
	// contributes to an export, and the name of that table.
	MaxTimestamp(ctx context.Context) (int64, string, error)
	ListTopLevelIDs(ctx context.Context) ([]int64, error)
	FindProductIDs(ctx context.Context, id domain.Identifier) ([]int64, error)
	ApplyStatement(ctx context.Context, stmt domain.Statement) error
}

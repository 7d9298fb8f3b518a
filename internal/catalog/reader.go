package catalog

import (
	"context"
	"fmt"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

// Source is the read side of the catalog the builder depends on.
type Source interface {
	lookupSource
	FindProduct(ctx context.Context, id int64) (domain.RawRecord, error)
	ListVariants(ctx context.Context, pid int64) ([]domain.RawRecord, error)
	ListTranslations(ctx context.Context, pids []int64) ([]domain.TranslationRecord, error)
	ListPrices(ctx context.Context, productIDs []int64) ([]domain.PriceRecord, error)
}

// Reader loads a product with its variants, translations and prices and turns
// it into a tree. A Reader caches lookups and belongs to a single run.
type Reader struct {
	src     Source
	builder *Builder
}

func NewReader(src Source) *Reader {
	return &Reader{src: src, builder: NewBuilder(NewLookup(src))}
}

// Source gathers the rows of one top-level product.
func (r *Reader) Source(ctx context.Context, id int64) (domain.ProductSource, error) {
	record, err := r.src.FindProduct(ctx, id)
	if err != nil {
		return domain.ProductSource{}, fmt.Errorf("load product %d: %w", id, err)
	}
	if len(record) == 0 {
		return domain.ProductSource{}, ErrProductNotFound
	}
	variants, err := r.src.ListVariants(ctx, id)
	if err != nil {
		return domain.ProductSource{}, fmt.Errorf("load variants of %d: %w", id, err)
	}

	ids := []int64{id}
	for _, v := range variants {
		ids = append(ids, v.ID())
	}
	translations, err := r.src.ListTranslations(ctx, ids)
	if err != nil {
		return domain.ProductSource{}, fmt.Errorf("load translations of %d: %w", id, err)
	}
	prices, err := r.src.ListPrices(ctx, ids)
	if err != nil {
		return domain.ProductSource{}, fmt.Errorf("load prices of %d: %w", id, err)
	}

	src := domain.ProductSource{
		Record:       record,
		Translations: translationsFor(translations, id),
		Prices:       pricesFor(prices, id),
	}
	for _, v := range variants {
		src.Variants = append(src.Variants, domain.ProductSource{
			Record:       v,
			Translations: translationsFor(translations, v.ID()),
			Prices:       pricesFor(prices, v.ID()),
		})
	}
	return src, nil
}

// Tree builds the canonical tree of one top-level product.
func (r *Reader) Tree(ctx context.Context, id int64, opts BuildOptions) (*domain.ProductTree, error) {
	src, err := r.Source(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.builder.Build(ctx, src, opts)
}

func translationsFor(rows []domain.TranslationRecord, pid int64) []domain.TranslationRecord {
	var out []domain.TranslationRecord
	for _, row := range rows {
		if row.PID == pid {
			out = append(out, row)
		}
	}
	return out
}

func pricesFor(rows []domain.PriceRecord, pid int64) []domain.PriceRecord {
	var out []domain.PriceRecord
	for _, row := range rows {
		if row.ProductID == pid {
			out = append(out, row)
		}
	}
	return out
}

package catalog

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrIdentifierMissing = errors.New("product has no usable identifier")
)

// BuildOptions control the shape of a built tree.
type BuildOptions struct {
	// SourceIDs adds record-id, translation-id, price-id and tier-id entries.
	SourceIDs bool
	// RequireIdentifier fails the build when no identifier can be compiled.
	RequireIdentifier bool
}

// Builder reshapes catalog rows into canonical product trees.
type Builder struct {
	lookup *Lookup
}

func NewBuilder(lookup *Lookup) *Builder {
	return &Builder{lookup: lookup}
}

func (b *Builder) Build(ctx context.Context, src domain.ProductSource, opts BuildOptions) (*domain.ProductTree, error) {
	if len(src.Record) == 0 {
		return nil, ErrProductNotFound
	}
	fields, err := b.lookup.Fields(ctx)
	if err != nil {
		return nil, err
	}

	ident := CompileIdentifier(src.Record)
	if ident.IsMissing() && opts.RequireIdentifier {
		return nil, ErrIdentifierMissing
	}

	main, err := b.buildRecord(ctx, src, fields, ident.Kind, true, opts)
	if err != nil {
		return nil, err
	}
	tree := &domain.ProductTree{Identifier: ident, Main: main}
	for _, variant := range src.Variants {
		v, err := b.buildRecord(ctx, variant, fields, ident.Kind, false, opts)
		if err != nil {
			return nil, err
		}
		tree.Variants = append(tree.Variants, v)
	}
	return tree, nil
}

// CompileIdentifier picks the first usable candidate field in priority order.
func CompileIdentifier(rec domain.RawRecord) domain.Identifier {
	for _, kind := range domain.IdentifierPriority {
		raw, ok := rec.Get(string(kind))
		if !ok {
			continue
		}
		v := DecodeField(raw)
		if !v.IsScalar() || Skip(string(kind), v) {
			continue
		}
		return domain.Identifier{Kind: kind, Value: v.Text()}
	}
	return domain.Identifier{Kind: domain.IdentifierMissing}
}

func (b *Builder) buildRecord(ctx context.Context, src domain.ProductSource, fields *FieldTable, ident domain.IdentifierKind, topLevel bool, opts BuildOptions) (*domain.Map, error) {
	main := domain.NewMap()
	attributes := domain.NewMap()
	system := domain.NewMap()

	for _, f := range src.Record {
		value := DecodeField(f.Value)
		switch fields.Category(f.Name, ident, topLevel) {
		case CategoryIdentifier:
			continue
		case CategoryStructural:
			if pruned := prune(value); !isBlank(pruned) {
				system.Set(domain.NewKey(f.Name), pruned)
			}
			if !topLevel {
				continue
			}
			name, ok := Expansion(f.Name)
			if !ok {
				continue
			}
			resolved, err := b.resolve(ctx, name, value)
			if err != nil {
				return nil, err
			}
			if !isBlank(resolved) {
				main.Set(domain.NewKey(name), resolved)
			}
		case CategoryAttribute:
			converted, keep, err := b.convert(ctx, f.Name, value)
			if err != nil {
				return nil, err
			}
			if keep {
				attributes.Set(domain.NewKey(f.Name), converted)
			}
		default:
			converted, keep, err := b.convert(ctx, f.Name, value)
			if err != nil {
				return nil, err
			}
			if keep {
				main.Set(domain.NewKey(f.Name), converted)
			}
		}
	}

	if attributes.Len() > 0 {
		main.Set(domain.NewKey(domain.KeyAttributes), domain.MapOf(attributes))
	}
	if system.Len() > 0 {
		main.Set(domain.NewKey(domain.KeySystem), domain.MapOf(system))
	}
	if translations := buildTranslations(src.Translations, opts); translations.Len() > 0 {
		main.Set(domain.NewKey(domain.KeyTranslations), domain.MapOf(translations))
	}
	prices, err := b.buildPrices(ctx, src.Prices, opts)
	if err != nil {
		return nil, err
	}
	if prices.Len() > 0 {
		main.Set(domain.NewKey(domain.KeyPrices), domain.MapOf(prices))
	}
	if opts.SourceIDs {
		if id := src.Record.ID(); id > 0 {
			main.SetText(domain.KeyRecordID, strconv.FormatInt(id, 10))
		}
	}
	return main, nil
}

// convert applies the skip rules and value conversions of one content field.
func (b *Builder) convert(ctx context.Context, field string, value domain.Value) (domain.Value, bool, error) {
	if Skip(field, value) {
		return domain.Value{}, false, nil
	}
	if field == "download" {
		if value.IsScalar() {
			return domain.Value{}, false, nil
		}
		refs, err := b.lookup.Files(ctx, scalarTexts(value))
		if err != nil {
			return domain.Value{}, false, err
		}
		if len(refs) == 0 {
			return domain.Value{}, false, nil
		}
		return domain.ListOf(refs...), true, nil
	}
	value = prune(value)
	return value, !value.IsEmpty(), nil
}

// resolve expands a structural column into its readable main entry.
func (b *Builder) resolve(ctx context.Context, name string, value domain.Value) (domain.Value, error) {
	switch name {
	case "producttype":
		typ, err := b.lookup.ProductType(ctx, parseID(value.Text()))
		return domain.Scalar(typ), err
	case "group":
		group, err := b.lookup.Group(ctx, parseID(value.Text()))
		return domain.Scalar(group), err
	case "categories":
		texts := scalarTexts(value)
		ids := make([]int64, 0, len(texts))
		for _, t := range texts {
			if id := parseID(t); id > 0 {
				ids = append(ids, id)
			}
		}
		aliases, err := b.lookup.Pages(ctx, ids)
		if err != nil {
			return domain.Value{}, err
		}
		items := make([]domain.Value, 0, len(aliases))
		for _, alias := range aliases {
			page := domain.NewMap()
			page.SetText("alias", alias)
			items = append(items, domain.MapOf(page))
		}
		return domain.ListOf(items...), nil
	default:
		return domain.Value{}, nil
	}
}

func buildTranslations(rows []domain.TranslationRecord, opts BuildOptions) *domain.Map {
	out := domain.NewMap()
	for _, row := range rows {
		if row.Language == "" {
			continue
		}
		entry := domain.NewMap()
		if row.Name != "" {
			entry.SetText(domain.KeyName, row.Name)
		}
		if row.Description != "" {
			entry.SetText(domain.KeyDescription, row.Description)
		}
		if opts.SourceIDs && row.ID > 0 {
			entry.SetText(domain.KeyTranslationID, strconv.FormatInt(row.ID, 10))
		}
		if entry.Len() == 0 {
			continue
		}
		out.Set(domain.NewKey(domain.KeyItem, domain.A(domain.AttrLanguage, row.Language)), domain.MapOf(entry))
	}
	return out
}

func (b *Builder) buildPrices(ctx context.Context, rows []domain.PriceRecord, opts BuildOptions) (*domain.Map, error) {
	out := domain.NewMap()
	for _, row := range rows {
		if len(row.Tiers) == 0 {
			continue
		}
		key, err := b.priceGroupKey(ctx, row)
		if err != nil {
			return nil, err
		}
		group := domain.NewMap()
		if existing, ok := out.Get(key); ok {
			group = existing.Map()
		}
		if opts.SourceIDs && row.ID > 0 {
			group.SetText(domain.KeyPriceID, strconv.FormatInt(row.ID, 10))
		}
		tiers := make([]domain.TierRecord, len(row.Tiers))
		copy(tiers, row.Tiers)
		sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Min < tiers[j].Min })
		for _, tier := range tiers {
			qty := domain.A(domain.AttrMin, strconv.FormatInt(tier.Min, 10))
			if opts.SourceIDs && tier.ID > 0 {
				group.Set(domain.NewKey(domain.KeyTierID, qty), domain.Scalar(strconv.FormatInt(tier.ID, 10)))
			}
			if tier.Price != "" {
				group.Set(domain.NewKey(domain.KeyPrice, qty), domain.Scalar(tier.Price))
			}
		}
		out.Set(key, domain.MapOf(group))
	}
	return out, nil
}

// priceGroupKey is group|member_group:<name>|tax_class:<name>, or "default"
// when neither is set.
func (b *Builder) priceGroupKey(ctx context.Context, row domain.PriceRecord) (domain.Key, error) {
	member, err := b.lookup.MemberGroup(ctx, row.MemberGroup)
	if err != nil {
		return domain.Key{}, err
	}
	tax, err := b.lookup.TaxClass(ctx, row.TaxClass)
	if err != nil {
		return domain.Key{}, err
	}
	var attrs []domain.Attr
	if member != "" {
		attrs = append(attrs, domain.A(domain.AttrMemberGroup, member))
	}
	if tax != "" {
		attrs = append(attrs, domain.A(domain.AttrTaxClass, tax))
	}
	if len(attrs) == 0 {
		return domain.NewKey(domain.KeyDefaultGroup), nil
	}
	return domain.NewKey(domain.KeyGroup, attrs...), nil
}

// Normalize applies the skip rules to a tree that did not come from the
// builder, e.g. one decoded from an uploaded document.
func Normalize(tree *domain.ProductTree) *domain.ProductTree {
	if tree == nil {
		return nil
	}
	out := &domain.ProductTree{Identifier: tree.Identifier, Main: normalizeRecord(tree.Main)}
	for _, v := range tree.Variants {
		out.Variants = append(out.Variants, normalizeRecord(v))
	}
	return out
}

func normalizeRecord(m *domain.Map) *domain.Map {
	out := domain.NewMap()
	for _, e := range m.Entries() {
		switch e.Key.Name {
		case domain.KeyAttributes, domain.KeySystem:
			section := domain.NewMap()
			if e.Value.IsMap() {
				for _, f := range e.Value.Map().Entries() {
					if Skip(f.Key.Name, f.Value) {
						continue
					}
					if v := prune(f.Value); !v.IsEmpty() {
						section.Set(f.Key, v)
					}
				}
			}
			if section.Len() > 0 {
				out.Set(e.Key, domain.MapOf(section))
			}
		default:
			if Skip(e.Key.Name, e.Value) {
				continue
			}
			if v := prune(e.Value); !v.IsEmpty() {
				out.Set(e.Key, v)
			}
		}
	}
	return out
}

func scalarTexts(v domain.Value) []string {
	switch v.Kind() {
	case domain.KindScalar:
		return []string{v.Text()}
	case domain.KindList:
		out := make([]string, 0, len(v.List()))
		for _, item := range v.List() {
			if item.IsScalar() {
				out = append(out, item.Text())
			}
		}
		return out
	case domain.KindMap:
		out := make([]string, 0, v.Map().Len())
		for _, e := range v.Map().Entries() {
			if e.Value.IsScalar() {
				out = append(out, e.Value.Text())
			}
		}
		return out
	default:
		return nil
	}
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

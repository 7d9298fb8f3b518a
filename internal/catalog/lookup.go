package catalog

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

type lookupSource interface {
	ListProductTypes(ctx context.Context) ([]domain.NamedRecord, error)
	ListGroups(ctx context.Context) ([]domain.NamedRecord, error)
	ListTaxClasses(ctx context.Context) ([]domain.NamedRecord, error)
	ListMemberGroups(ctx context.Context) ([]domain.NamedRecord, error)
	ListAttributes(ctx context.Context) ([]domain.AttributeDef, error)
	FindFiles(ctx context.Context, uuids [][]byte) ([]domain.FileRecord, error)
	FindPages(ctx context.Context, ids []int64) ([]domain.PageRecord, error)
}

// Lookup resolves foreign keys into readable values. It belongs to a single run:
// each table is read at most once, files and pages only for ids not seen yet.
type Lookup struct {
	src lookupSource

	productTypes map[int64]string
	groups       map[int64]string
	taxClasses   map[int64]string
	memberGroups map[int64]string
	fields       *FieldTable
	files        map[string]domain.Value
	pages        map[int64]string
}

func NewLookup(src lookupSource) *Lookup {
	return &Lookup{
		src:   src,
		files: make(map[string]domain.Value),
		pages: make(map[int64]string),
	}
}

func (l *Lookup) ProductType(ctx context.Context, id int64) (string, error) {
	return l.named(ctx, &l.productTypes, l.src.ListProductTypes, id, "product types")
}

func (l *Lookup) Group(ctx context.Context, id int64) (string, error) {
	return l.named(ctx, &l.groups, l.src.ListGroups, id, "groups")
}

func (l *Lookup) TaxClass(ctx context.Context, id int64) (string, error) {
	return l.named(ctx, &l.taxClasses, l.src.ListTaxClasses, id, "tax classes")
}

func (l *Lookup) MemberGroup(ctx context.Context, id int64) (string, error) {
	return l.named(ctx, &l.memberGroups, l.src.ListMemberGroups, id, "member groups")
}

func (l *Lookup) Fields(ctx context.Context) (*FieldTable, error) {
	if l.fields != nil {
		return l.fields, nil
	}
	attrs, err := l.src.ListAttributes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	l.fields = NewFieldTable(attrs)
	return l.fields, nil
}

// Files resolves binary file uuids into {filepath, filename}, or a
// "uuid:0x<hex>" scalar when the file is unknown.
func (l *Lookup) Files(ctx context.Context, uuids []string) ([]domain.Value, error) {
	missing := make([][]byte, 0, len(uuids))
	for _, u := range uuids {
		if u == "" {
			continue
		}
		if _, ok := l.files[hex.EncodeToString([]byte(u))]; !ok {
			missing = append(missing, []byte(u))
		}
	}
	if len(missing) > 0 {
		rows, err := l.src.FindFiles(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load files: %w", err)
		}
		for _, row := range rows {
			ref := domain.NewMap()
			ref.SetText("filepath", row.Path)
			ref.SetText("filename", row.Name)
			l.files[hex.EncodeToString(row.UUID)] = domain.MapOf(ref)
		}
		for _, u := range missing {
			key := hex.EncodeToString(u)
			if _, ok := l.files[key]; !ok {
				l.files[key] = domain.Scalar("uuid:0x" + key)
			}
		}
	}
	out := make([]domain.Value, 0, len(uuids))
	for _, u := range uuids {
		if u == "" {
			continue
		}
		out = append(out, l.files[hex.EncodeToString([]byte(u))])
	}
	return out, nil
}

// Pages returns the aliases of the given pages; unknown pages are omitted.
func (l *Lookup) Pages(ctx context.Context, ids []int64) ([]string, error) {
	missing := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := l.pages[id]; !ok && id > 0 {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		rows, err := l.src.FindPages(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load pages: %w", err)
		}
		for _, row := range rows {
			l.pages[row.ID] = row.Alias
		}
		for _, id := range missing {
			if _, ok := l.pages[id]; !ok {
				l.pages[id] = ""
			}
		}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if alias := l.pages[id]; alias != "" {
			out = append(out, alias)
		}
	}
	return out, nil
}

func (l *Lookup) named(ctx context.Context, cache *map[int64]string, load func(context.Context) ([]domain.NamedRecord, error), id int64, what string) (string, error) {
	if id <= 0 {
		return "", nil
	}
	if *cache == nil {
		rows, err := load(ctx)
		if err != nil {
			return "", fmt.Errorf("load %s: %w", what, err)
		}
		m := make(map[int64]string, len(rows))
		for _, row := range rows {
			m[row.ID] = row.Name
		}
		*cache = m
	}
	return (*cache)[id], nil
}

package reconcile

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

// ErrDoubleMatch means variant pairing by sku is not one to one.
var ErrDoubleMatch = errors.New("catalog variant matched more than once")

// scope is the position of the diff in both trees plus the catalog row ids
// collected on the way down. It is passed by value.
type scope struct {
	importPath  domain.Path
	catalogPath domain.Path
	ids         domain.SourceIDs
}

func (s scope) with(step domain.Step) scope {
	s.importPath = s.importPath.With(step)
	s.catalogPath = s.catalogPath.With(step)
	return s
}

type differ struct {
	actions []domain.DiffAction
}

// Diff compares an imported tree root against the catalog tree root of the
// matched product. Catalog roots should be built with source ids so that the
// resulting actions can be applied.
func Diff(imported, catalog *domain.Map) ([]domain.DiffAction, error) {
	d := &differ{}
	if err := d.maps(scope{}, imported, catalog); err != nil {
		return nil, err
	}
	return d.actions, nil
}

func (d *differ) maps(sc scope, imported, catalog *domain.Map) error {
	sc.ids = collectIDs(sc.ids, catalog)
	tiers := tierIDs(catalog)

	for _, key := range unionKeys(imported, catalog) {
		if domain.IsSourceIDKey(key) || key.Name == domain.KeySystem {
			continue
		}
		iv, _ := imported.Get(key)
		cv, _ := catalog.Get(key)
		child := sc.with(domain.KeyStep(key))
		if qty, ok := key.Attr(domain.AttrMin); ok {
			if id, ok := tiers[qty]; ok {
				child.ids.Tier = id
			}
		}

		if key.Name == domain.KeyVariants && len(sc.importPath) == 0 {
			if err := d.variants(child, iv, cv); err != nil {
				return err
			}
			continue
		}
		if err := d.values(child, key, iv, cv); err != nil {
			return err
		}
	}
	return nil
}

func (d *differ) values(sc scope, key domain.Key, iv, cv domain.Value) error {
	iNull, cNull := iv.Kind() == domain.KindNull, cv.Kind() == domain.KindNull
	switch {
	case iNull && cNull:
		return nil
	case cNull:
		d.emit(domain.DiffAdd, sc, key, nil, &iv)
		return nil
	case iNull:
		d.emit(domain.DiffRemove, sc, key, &cv, nil)
		return nil
	case iv.IsMap() && cv.IsMap():
		return d.maps(sc, iv.Map(), cv.Map())
	case iv.IsList() && cv.IsList():
		return d.lists(sc, iv.List(), cv.List())
	case iv.IsScalar() && cv.IsScalar():
		if iv.Text() != cv.Text() {
			d.emit(domain.DiffUpdate, sc, key, &cv, &iv)
		}
		return nil
	default:
		d.emit(domain.DiffUpdate, sc, key, &cv, &iv)
		return nil
	}
}

func (d *differ) lists(sc scope, imported, catalog []domain.Value) error {
	n := len(imported)
	if len(catalog) > n {
		n = len(catalog)
	}
	for i := 0; i < n; i++ {
		var iv, cv domain.Value
		if i < len(imported) {
			iv = imported[i]
		}
		if i < len(catalog) {
			cv = catalog[i]
		}
		if err := d.values(sc.with(domain.IndexStep(i)), indexKey(i), iv, cv); err != nil {
			return err
		}
	}
	return nil
}

// variants pairs variants by sku. Unmatched imported variants are additions,
// unmatched catalog variants are removals.
func (d *differ) variants(sc scope, iv, cv domain.Value) error {
	imported, catalog := iv.List(), cv.List()
	matched := make(map[int]bool, len(catalog))

	for i, item := range imported {
		j, err := matchBySKU(item, catalog)
		if err != nil {
			return fmt.Errorf("variant %d of the import: %w", i, err)
		}
		if j < 0 {
			add := item
			d.emitAt(domain.DiffAddVariant, sc.importPath.With(domain.IndexStep(i)), nil, sc.ids, domain.NewKey(domain.KeyVariants), nil, &add)
			continue
		}
		if matched[j] {
			return fmt.Errorf("variant %d of the import: %w", i, ErrDoubleMatch)
		}
		matched[j] = true

		child := scope{
			importPath:  sc.importPath.With(domain.IndexStep(i)),
			catalogPath: sc.catalogPath.With(domain.IndexStep(j)),
			ids:         sc.ids,
		}
		if err := d.values(child, indexKey(i), item, catalog[j]); err != nil {
			return err
		}
	}
	for j, item := range catalog {
		if matched[j] {
			continue
		}
		removed := item
		d.emitAt(domain.DiffRemoveVariant, nil, sc.catalogPath.With(domain.IndexStep(j)), collectIDs(sc.ids, item.Map()), domain.NewKey(domain.KeyVariants), &removed, nil)
	}
	return nil
}

// matchBySKU returns the index of the catalog variant sharing the sku of item,
// or -1. Catalog variants with duplicate skus cannot be paired.
func matchBySKU(item domain.Value, catalog []domain.Value) (int, error) {
	sku, ok := item.Map().Lookup(domain.KeySKU)
	if !ok || !sku.IsScalar() || sku.Text() == "" {
		return -1, nil
	}
	found := -1
	for j, candidate := range catalog {
		other, ok := candidate.Map().Lookup(domain.KeySKU)
		if !ok || !other.IsScalar() || other.Text() != sku.Text() {
			continue
		}
		if found >= 0 {
			return -1, ErrDoubleMatch
		}
		found = j
	}
	return found, nil
}

func (d *differ) emit(typ domain.DiffType, sc scope, key domain.Key, before, after *domain.Value) {
	d.emitAt(typ, sc.importPath, sc.catalogPath, sc.ids, key, before, after)
}

func (d *differ) emitAt(typ domain.DiffType, importPath, catalogPath domain.Path, ids domain.SourceIDs, key domain.Key, before, after *domain.Value) {
	action := domain.DiffAction{Type: typ, Key: key, Old: before, New: after}
	switch {
	case importPath == nil:
		action.Path = catalogPath
	case catalogPath == nil || catalogPath.String() == importPath.String():
		action.Path = importPath
	default:
		action.Path = importPath
		action.CatalogPath = catalogPath
	}
	if !ids.IsZero() {
		captured := ids
		action.SourceIDs = &captured
	}
	d.actions = append(d.actions, action)
}

// collectIDs overlays the row ids found directly on a catalog level.
func collectIDs(ids domain.SourceIDs, level *domain.Map) domain.SourceIDs {
	if id := intEntry(level, domain.KeyRecordID); id > 0 {
		ids.Record = id
	}
	if id := intEntry(level, domain.KeyTranslationID); id > 0 {
		ids.Translation = id
	}
	if id := intEntry(level, domain.KeyPriceID); id > 0 {
		ids.Price = id
	}
	return ids
}

// tierIDs maps the min quantity of each tier-id|min:N entry to its row id.
func tierIDs(level *domain.Map) map[string]int64 {
	var out map[string]int64
	for _, e := range level.Entries() {
		if e.Key.Name != domain.KeyTierID || !e.Value.IsScalar() {
			continue
		}
		qty, ok := e.Key.Attr(domain.AttrMin)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(e.Value.Text(), 10, 64)
		if err != nil {
			continue
		}
		if out == nil {
			out = make(map[string]int64)
		}
		out[qty] = id
	}
	return out
}

func intEntry(level *domain.Map, name string) int64 {
	v, ok := level.Lookup(name)
	if !ok || !v.IsScalar() {
		return 0
	}
	id, err := strconv.ParseInt(v.Text(), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func unionKeys(a, b *domain.Map) []domain.Key {
	keys := make([]domain.Key, 0, a.Len()+b.Len())
	keys = append(keys, a.Keys()...)
	for _, k := range b.Keys() {
		if !a.Has(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func indexKey(i int) domain.Key {
	return domain.NewKey(domain.KeyItem, domain.A(domain.AttrIndex, strconv.Itoa(i)))
}

package catalog

import "github.com/njprem/Catalog_Backup_BackEnd/internal/domain"

type Category uint8

const (
	CategoryMain Category = iota
	CategoryIdentifier
	CategoryStructural
	CategoryAttribute
)

func (c Category) String() string {
	switch c {
	case CategoryIdentifier:
		return "identifier"
	case CategoryStructural:
		return "structural"
	case CategoryAttribute:
		return "attribute"
	default:
		return "main"
	}
}

// structuralFields are relationship and bookkeeping columns. A non-empty value
// names the readable main entry the column expands to on top-level records.
var structuralFields = map[string]string{
	"id":          "",
	"pid":         "",
	"gid":         "group",
	"tstamp":      "",
	"date_added":  "",
	"type":        "producttype",
	"order_pages": "categories",
	"published":   "",
	"start":       "",
	"stop":        "",
}

// FieldTable classifies product columns. It is resolved once per run against
// the attribute definitions of the catalog.
type FieldTable struct {
	attributes map[string]struct{}
}

func NewFieldTable(attrs []domain.AttributeDef) *FieldTable {
	t := &FieldTable{attributes: make(map[string]struct{}, len(attrs))}
	for _, a := range attrs {
		if a.FieldName == "" {
			continue
		}
		t.attributes[a.FieldName] = struct{}{}
	}
	return t
}

func (t *FieldTable) IsAttribute(field string) bool {
	_, ok := t.attributes[field]
	return ok
}

// Category resolves a column. The identifier column is only set aside on
// top-level records.
func (t *FieldTable) Category(field string, ident domain.IdentifierKind, topLevel bool) Category {
	if topLevel && ident != domain.IdentifierMissing && field == string(ident) {
		return CategoryIdentifier
	}
	if _, ok := structuralFields[field]; ok {
		return CategoryStructural
	}
	if t.IsAttribute(field) {
		return CategoryAttribute
	}
	return CategoryMain
}

// Expansion returns the main entry a structural column maps to, if any.
func Expansion(field string) (string, bool) {
	name, ok := structuralFields[field]
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// skipRules drop values that carry no meaning even though they are not empty.
var skipRules = map[string]func(domain.Value) bool{
	"download_order":  func(domain.Value) bool { return true },
	"shipping_weight": isDefaultWeight,
	"shipping_price": func(v domain.Value) bool {
		return v.IsScalar() && v.Text() == "0.00"
	},
}

// Skip reports whether a top-level field is left out of the tree.
func Skip(field string, v domain.Value) bool {
	if isBlank(v) {
		return true
	}
	if rule, ok := skipRules[field]; ok {
		return rule(v)
	}
	return false
}

// isBlank treats "0" like an empty value, matching how the shop stores unset flags.
func isBlank(v domain.Value) bool {
	if v.IsEmpty() {
		return true
	}
	return v.IsScalar() && v.Text() == "0"
}

func isDefaultWeight(v domain.Value) bool {
	items := v.List()
	if v.IsMap() {
		items = make([]domain.Value, 0, v.Map().Len())
		for _, e := range v.Map().Entries() {
			items = append(items, e.Value)
		}
	}
	return len(items) == 2 && items[0].Text() == "" && items[1].Text() == "kg"
}

// prune removes empty nested entries so that "present but empty" and "absent"
// look the same to the diff. Empty list members are dropped too: the document
// cannot carry them, so a list left with gaps would not decode back to a list.
func prune(v domain.Value) domain.Value {
	switch v.Kind() {
	case domain.KindMap:
		out := domain.NewMap()
		for _, e := range v.Map().Entries() {
			child := prune(e.Value)
			if child.IsEmpty() {
				continue
			}
			out.Set(e.Key, child)
		}
		return domain.MapOf(out)
	case domain.KindList:
		items := make([]domain.Value, 0, len(v.List()))
		for _, item := range v.List() {
			if child := prune(item); !child.IsEmpty() {
				items = append(items, child)
			}
		}
		return domain.ListOf(items...)
	default:
		return v
	}
}

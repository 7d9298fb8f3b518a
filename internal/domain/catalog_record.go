package domain

import "strconv"

// RawField is one column of a catalog product row, already rendered as text.
type RawField struct {
	Name  string
	Value string
}

// RawRecord is a product row in column order. Column sets vary with the
// configured product attributes.
type RawRecord []RawField

func (r RawRecord) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

func (r RawRecord) Int(name string) int64 {
	raw, _ := r.Get(name)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (r RawRecord) ID() int64 {
	return r.Int("id")
}

type TranslationRecord struct {
	ID          int64  `db:"id" json:"id"`
	PID         int64  `db:"pid" json:"pid"`
	Language    string `db:"language" json:"language"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

type TierRecord struct {
	ID    int64  `db:"id" json:"id"`
	PID   int64  `db:"pid" json:"pid"`
	Min   int64  `db:"min" json:"min"`
	Price string `db:"price" json:"price"`
}

type PriceRecord struct {
	ID          int64        `db:"id" json:"id"`
	ProductID   int64        `db:"pid" json:"product_id"`
	TaxClass    int64        `db:"tax_class" json:"tax_class"`
	MemberGroup int64        `db:"member_group" json:"member_group"`
	Tiers       []TierRecord `db:"-" json:"tiers"`
}

// NamedRecord is a row of a simple id/name lookup table.
type NamedRecord struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type AttributeDef struct {
	ID        int64  `db:"id" json:"id"`
	FieldName string `db:"field_name" json:"field_name"`
	Name      string `db:"name" json:"name"`
	Type      string `db:"type" json:"type"`
}

type FileRecord struct {
	UUID []byte `db:"uuid"`
	Path string `db:"path"`
	Name string `db:"name"`
}

type PageRecord struct {
	ID    int64  `db:"id"`
	Alias string `db:"alias"`
}

// ProductSource bundles everything the builder needs for one product or variant.
type ProductSource struct {
	Record       RawRecord
	Translations []TranslationRecord
	Prices       []PriceRecord
	Variants     []ProductSource
}

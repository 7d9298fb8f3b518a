package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

type IdentifierKind string

const (
	IdentifierAlias   IdentifierKind = "alias"
	IdentifierName    IdentifierKind = "name"
	IdentifierSKU     IdentifierKind = "sku"
	IdentifierMissing IdentifierKind = "missing"
)

// IdentifierPriority is the order in which candidate fields are tried.
var IdentifierPriority = []IdentifierKind{IdentifierAlias, IdentifierName, IdentifierSKU}

var ErrInvalidIdentifier = errors.New("invalid product identifier")

type Identifier struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value,omitempty"`
}

func (id Identifier) IsMissing() bool {
	return id.Kind == IdentifierMissing || id.Kind == "" || id.Value == ""
}

// String encodes the identifier as stored with a work item, e.g. "alias:red-mug".
func (id Identifier) String() string {
	return string(id.Kind) + ":" + id.Value
}

func ParseIdentifier(raw string) (Identifier, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Identifier{}, ErrInvalidIdentifier
	}
	kind := IdentifierKind(parts[0])
	switch kind {
	case IdentifierAlias, IdentifierName, IdentifierSKU:
		return Identifier{Kind: kind, Value: parts[1]}, nil
	default:
		return Identifier{}, ErrInvalidIdentifier
	}
}

// Tree keys shared by the builder, the document codec and the diff.
const (
	KeyMain         = "main"
	KeyVariants     = "variants"
	KeyAttributes   = "attributes"
	KeySystem       = "system"
	KeyTranslations = "translations"
	KeyPrices       = "prices"
	KeySKU          = "sku"
	KeyName         = "name"
	KeyDescription  = "description"
	KeyItem         = "item"
	KeyPrice        = "price"
	KeyGroup        = "group"
	KeyDefaultGroup = "default"

	KeyRecordID      = "record-id"
	KeyTranslationID = "translation-id"
	KeyPriceID       = "price-id"
	KeyTierID        = "tier-id"

	AttrLanguage    = "language"
	AttrMin         = "min"
	AttrIndex       = "index"
	AttrMemberGroup = "member_group"
	AttrTaxClass    = "tax_class"
)

// IsSourceIDKey reports keys that carry catalog row ids rather than content.
func IsSourceIDKey(k Key) bool {
	switch k.Name {
	case KeyRecordID, KeyTranslationID, KeyPriceID, KeyTierID:
		return true
	}
	return false
}

// ProductTree is the canonical shape of one top-level product and its variants.
type ProductTree struct {
	Identifier Identifier `json:"identifier"`
	Main       *Map       `json:"main"`
	Variants   []*Map     `json:"variants,omitempty"`
}

// Root returns the diffable view {main, variants} of the tree.
func (t *ProductTree) Root() *Map {
	root := NewMap()
	if t == nil {
		return root
	}
	root.Set(NewKey(KeyMain), MapOf(t.Main))
	if len(t.Variants) > 0 {
		items := make([]Value, len(t.Variants))
		for i, v := range t.Variants {
			items[i] = MapOf(v)
		}
		root.Set(NewKey(KeyVariants), ListOf(items...))
	}
	return root
}

func (t *ProductTree) IsEmpty() bool {
	return t == nil || (t.Main.Len() == 0 && len(t.Variants) == 0)
}

func (t *ProductTree) Encode() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DecodeProductTree(raw string) (*ProductTree, error) {
	var tree ProductTree
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, err
	}
	if tree.Main == nil {
		tree.Main = NewMap()
	}
	return &tree, nil
}

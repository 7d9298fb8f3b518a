package reconcile

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

type record struct {
	fields       map[string]string
	order        []string
	recordID     string
	translations map[string][2]string // language -> {name, translation-id}
	prices       [][3]string          // {min, price, tier-id}
}

func (r record) build(withIDs bool) *domain.Map {
	m := domain.NewMap()
	for _, name := range r.order {
		m.SetText(name, r.fields[name])
	}
	if len(r.translations) > 0 {
		tr := domain.NewMap()
		for lang, v := range r.translations {
			entry := domain.NewMap()
			entry.SetText(domain.KeyName, v[0])
			if withIDs {
				entry.SetText(domain.KeyTranslationID, v[1])
			}
			tr.Set(domain.NewKey(domain.KeyItem, domain.A(domain.AttrLanguage, lang)), domain.MapOf(entry))
		}
		m.Set(domain.NewKey(domain.KeyTranslations), domain.MapOf(tr))
	}
	if len(r.prices) > 0 {
		group := domain.NewMap()
		if withIDs {
			group.SetText(domain.KeyPriceID, "40")
		}
		for _, p := range r.prices {
			qty := domain.A(domain.AttrMin, p[0])
			if withIDs {
				group.Set(domain.NewKey(domain.KeyTierID, qty), domain.Scalar(p[2]))
			}
			group.Set(domain.NewKey(domain.KeyPrice, qty), domain.Scalar(p[1]))
		}
		prices := domain.NewMap()
		prices.Set(domain.NewKey(domain.KeyGroup, domain.A(domain.AttrMemberGroup, "Retail"), domain.A(domain.AttrTaxClass, "Standard")), domain.MapOf(group))
		m.Set(domain.NewKey(domain.KeyPrices), domain.MapOf(prices))
	}
	if withIDs && r.recordID != "" {
		m.SetText(domain.KeyRecordID, r.recordID)
		system := domain.NewMap()
		system.SetText("id", r.recordID)
		m.Set(domain.NewKey(domain.KeySystem), domain.MapOf(system))
	}
	return m
}

func variant(sku, name, id string) record {
	return record{
		fields:   map[string]string{"sku": sku, "name": name},
		order:    []string{"sku", "name"},
		recordID: id,
	}
}

func tree(main record, variants []record, withIDs bool) *domain.Map {
	t := &domain.ProductTree{Main: main.build(withIDs)}
	for _, v := range variants {
		t.Variants = append(t.Variants, v.build(withIDs))
	}
	return t.Root()
}

func baseMain() record {
	return record{
		fields:       map[string]string{"name": "Red Mug", "description": "A red mug."},
		order:        []string{"name", "description"},
		recordID:     "7",
		translations: map[string][2]string{"de": {"Roter Becher", "31"}},
		prices:       [][3]string{{"1", "10.00", "21"}, {"10", "9.00", "22"}},
	}
}

func TestDiffIdenticalTreesProducesNothing(t *testing.T) {
	variants := []record{variant("RM-S", "Small", "8"), variant("RM-L", "Large", "9")}
	actions, err := Diff(tree(baseMain(), variants, false), tree(baseMain(), variants, true))
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("expected no actions, got %+v", actions)
	}
}

func TestDiffAndClassifySupportedUpdates(t *testing.T) {
	imported := baseMain()
	imported.fields = map[string]string{"name": "Red Mug XL", "description": "A red mug."}
	imported.translations = map[string][2]string{"de": {"Großer roter Becher", ""}}
	imported.prices = [][3]string{{"1", "10.00", ""}, {"10", "8.50", ""}}

	actions, err := Diff(tree(imported, nil, false), tree(baseMain(), nil, true))
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	supported, unsupported := Classify(actions)
	if len(unsupported) != 0 {
		t.Fatalf("unexpected unsupported actions %+v", unsupported)
	}
	if len(supported) != 3 {
		t.Fatalf("expected 3 supported actions, got %d", len(supported))
	}

	byTarget := map[string]domain.ClassifiedAction{}
	for _, a := range supported {
		if a.Status != domain.ActionStatusPrepared {
			t.Fatalf("new actions must be prepared, got %s", a.Status)
		}
		byTarget[string(a.Statement.Target)+"/"+a.Diff.Path.String()] = a
	}

	name, ok := byTarget["product.name/main.name"]
	if !ok || name.Statement.RecordID != 7 || name.Statement.Value != "Red Mug XL" {
		t.Fatalf("main name action wrong: %+v", byTarget)
	}
	if len(name.TextDiff) != 2 || name.TextDiff[1].Op != domain.TextInsert || name.TextDiff[1].Text != " XL" {
		t.Fatalf("unexpected word diff %+v", name.TextDiff)
	}

	tr, ok := byTarget["product.name/main.translations.item|language:de.name"]
	if !ok || tr.Statement.RecordID != 31 || !strings.Contains(tr.Description, "(de)") {
		t.Fatalf("translation action wrong: %+v", tr)
	}

	price, ok := byTarget["tier.price/main.prices.group|member_group:Retail|tax_class:Standard.price|min:10"]
	if !ok || price.Statement.RecordID != 22 || price.Statement.Value != "8.50" || price.Group != domain.ActionGroupPrice {
		t.Fatalf("price action wrong: %+v", price)
	}
	if !strings.Contains(price.Description, "member group Retail") || !strings.Contains(price.Description, "quantity 10") {
		t.Fatalf("price description %q", price.Description)
	}
	if ids := price.Diff.IDs(); ids.Price != 40 || ids.Record != 7 {
		t.Fatalf("id context not inherited: %+v", ids)
	}
}

func TestDiffMatchesVariantsBySKU(t *testing.T) {
	catalog := []record{variant("RM-S", "Small", "8"), variant("RM-L", "Large", "9"), variant("RM-M", "Medium", "10")}
	imported := []record{variant("RM-L", "Large mug", ""), variant("RM-XL", "Huge", ""), variant("RM-S", "Small", "")}

	actions, err := Diff(tree(baseMain(), imported, false), tree(baseMain(), catalog, true))
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected update, add-variant, remove-variant; got %+v", actions)
	}

	update := actions[0]
	if update.Type != domain.DiffUpdate || update.Path.String() != "variants.0.name" || update.CatalogPath.String() != "variants.1.name" {
		t.Fatalf("unexpected update %+v", update)
	}
	if update.IDs().Record != 9 {
		t.Fatalf("variant update must carry the catalog variant id, got %d", update.IDs().Record)
	}

	add := actions[1]
	if add.Type != domain.DiffAddVariant || add.Path.String() != "variants.1" || add.New == nil {
		t.Fatalf("unexpected add %+v", add)
	}
	remove := actions[2]
	if remove.Type != domain.DiffRemoveVariant || remove.Path.String() != "variants.2" || remove.IDs().Record != 10 {
		t.Fatalf("unexpected remove %+v", remove)
	}

	supported, _ := Classify(actions)
	if len(supported) != 1 || supported[0].Statement.RecordID != 9 || supported[0].Description != "Name of variant #1" {
		t.Fatalf("unexpected classification %+v", supported)
	}
}

func TestDiffRejectsDoubleMatch(t *testing.T) {
	catalog := []record{variant("RM-S", "Small", "8")}
	imported := []record{variant("RM-S", "Small", ""), variant("RM-S", "Small again", "")}
	if _, err := Diff(tree(baseMain(), imported, false), tree(baseMain(), catalog, true)); !errors.Is(err, ErrDoubleMatch) {
		t.Fatalf("expected ErrDoubleMatch, got %v", err)
	}
}

func TestUnsupportedActionsArePreserved(t *testing.T) {
	imported := baseMain()
	imported.fields = map[string]string{"name": "Red Mug", "color": "red"}
	imported.order = []string{"name", "color"}

	actions, err := Diff(tree(imported, nil, false), tree(baseMain(), nil, true))
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	supported, unsupported := Classify(actions)
	if len(supported) != 0 {
		t.Fatalf("expected nothing supported, got %+v", supported)
	}
	types := map[domain.DiffType]string{}
	for _, a := range unsupported {
		types[a.Type] = a.Path.String()
	}
	if types[domain.DiffAdd] != "main.color" || types[domain.DiffRemove] != "main.description" {
		t.Fatalf("unexpected unsupported actions %+v", types)
	}
	for _, a := range unsupported {
		if strings.HasPrefix(a.Path.String(), "main.system") {
			t.Fatalf("system data must not be diffed")
		}
	}
}

func TestUpdateWithoutSourceIDIsUnsupported(t *testing.T) {
	imported := baseMain()
	imported.fields = map[string]string{"name": "Other", "description": "A red mug."}
	actions, err := Diff(tree(imported, nil, false), tree(baseMain(), nil, false))
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	supported, unsupported := Classify(actions)
	if len(supported) != 0 || len(unsupported) != 1 {
		t.Fatalf("expected one unsupported update, got %d/%d", len(supported), len(unsupported))
	}
}

func TestWordDiff(t *testing.T) {
	segments := WordDiff("The red mug, small.", "The blue mug, small!")
	var before, after strings.Builder
	for _, s := range segments {
		if s.Op != domain.TextInsert {
			before.WriteString(s.Text)
		}
		if s.Op != domain.TextDelete {
			after.WriteString(s.Text)
		}
	}
	if before.String() != "The red mug, small." || after.String() != "The blue mug, small!" {
		t.Fatalf("segments do not reproduce inputs: %+v", segments)
	}
	if segments[0].Op != domain.TextEqual || segments[0].Text != "The " {
		t.Fatalf("unexpected first segment %+v", segments[0])
	}
	if WordDiff("", "") != nil {
		t.Fatalf("empty inputs yield no segments")
	}
}

func TestWordDiffLongText(t *testing.T) {
	var before, after strings.Builder
	for i := 0; i < 3000; i++ {
		word := fmt.Sprintf("w%d ", i)
		before.WriteString(word)
		if i == 1500 {
			word = "changed "
		}
		after.WriteString(word)
	}

	var stats runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&stats)
	allocated := stats.TotalAlloc

	segments := WordDiff(before.String(), after.String())

	runtime.ReadMemStats(&stats)
	if used := stats.TotalAlloc - allocated; used > 32<<20 {
		t.Fatalf("WordDiff allocated %d bytes", used)
	}
	want := []domain.TextOp{domain.TextEqual, domain.TextDelete, domain.TextInsert, domain.TextEqual}
	if len(segments) != len(want) {
		t.Fatalf("expected %d segments, got %d", len(want), len(segments))
	}
	for i, op := range want {
		if segments[i].Op != op {
			t.Fatalf("segment %d is %s, want %s", i, segments[i].Op, op)
		}
	}
	if segments[1].Text != "w1500" || segments[2].Text != "changed" {
		t.Fatalf("unexpected change %q -> %q", segments[1].Text, segments[2].Text)
	}
}

func TestDiffRejectsDuplicateCatalogSKUs(t *testing.T) {
	catalog := []record{variant("RM-S", "Small", "8"), variant("RM-S", "Small copy", "9")}
	imported := []record{variant("RM-S", "Small", "")}
	if _, err := Diff(tree(baseMain(), imported, false), tree(baseMain(), catalog, true)); !errors.Is(err, ErrDoubleMatch) {
		t.Fatalf("expected ErrDoubleMatch, got %v", err)
	}
}

func TestDiffScenarios(t *testing.T) {
	main := record{fields: map[string]string{"name": "A"}, order: []string{"name"}}

	actions, err := Diff(
		tree(main, []record{variant("X", "old", "")}, false),
		tree(main, []record{variant("X", "new", "")}, false),
	)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(actions) != 1 || actions[0].Type != domain.DiffUpdate || actions[0].Path.String() != "variants.0.name" {
		t.Fatalf("unexpected actions %+v", actions)
	}
	if actions[0].Old.Text() != "new" || actions[0].New.Text() != "old" {
		t.Fatalf("old must be the catalog value, new the imported one: %+v", actions[0])
	}

	actions, err = Diff(
		tree(main, []record{variant("B", "", "")}, false),
		tree(main, []record{variant("A", "", ""), variant("B", "", "")}, false),
	)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(actions) != 1 || actions[0].Type != domain.DiffRemoveVariant || actions[0].Path.String() != "variants.0" {
		t.Fatalf("expected a single remove-variant for sku A, got %+v", actions)
	}

	actions, err = Diff(
		tree(main, []record{variant("P", "", ""), variant("Q", "", "")}, false),
		tree(main, []record{variant("R", "", ""), variant("S", "", "")}, false),
	)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	adds, removes := 0, 0
	for _, a := range actions {
		switch a.Type {
		case domain.DiffAddVariant:
			adds++
		case domain.DiffRemoveVariant:
			removes++
		}
	}
	if adds != 2 || removes != 2 || len(actions) != 4 {
		t.Fatalf("disjoint skus must add and remove every variant, got %+v", actions)
	}
}

func TestPriceTierReferencesChangedTier(t *testing.T) {
	catalogMain := baseMain()
	catalogMain.prices = [][3]string{{"1", "10.00", "21"}, {"5", "9.00", "25"}}
	imported := baseMain()
	imported.prices = [][3]string{{"1", "10.00", ""}, {"5", "8.00", ""}}

	actions, err := Diff(tree(imported, nil, false), tree(catalogMain, nil, true))
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(actions) != 1 || !strings.HasSuffix(actions[0].Path.String(), "price|min:5") {
		t.Fatalf("expected one tier update, got %+v", actions)
	}
	supported, unsupported := Classify(actions)
	if len(supported)+len(unsupported) != len(actions) {
		t.Fatalf("classification dropped actions")
	}
	if len(supported) != 1 || supported[0].Statement.RecordID != 25 {
		t.Fatalf("expected tier 25, got %+v", supported)
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

type fakeItemRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*domain.ImportItem
	setup  *domain.Setup
	errs   domain.ErrorLog
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[int64]*domain.ImportItem)}
}

func (f *fakeItemRepo) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = make(map[int64]*domain.ImportItem)
	f.setup = nil
	f.errs = nil
	return nil
}

func (f *fakeItemRepo) SaveSetup(_ context.Context, setup *domain.Setup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *setup
	cp.Stages = make(map[domain.Stage]int64, len(setup.Stages))
	for k, v := range setup.Stages {
		cp.Stages[k] = v
	}
	f.setup = &cp
	return nil
}

func (f *fakeItemRepo) GetSetup(context.Context) (*domain.Setup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setup == nil {
		return nil, sql.ErrNoRows
	}
	cp := *f.setup
	cp.Stages = make(map[domain.Stage]int64, len(f.setup.Stages))
	for k, v := range f.setup.Stages {
		cp.Stages[k] = v
	}
	return &cp, nil
}

func (f *fakeItemRepo) SaveErrors(_ context.Context, log domain.ErrorLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = domain.ErrorLog{}
	for code, entry := range log {
		cp := *entry
		f.errs[code] = &cp
	}
	return nil
}

func (f *fakeItemRepo) GetErrors(context.Context) (domain.ErrorLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := domain.ErrorLog{}
	for code, entry := range f.errs {
		cp := *entry
		out[code] = &cp
	}
	return out, nil
}

func (f *fakeItemRepo) Insert(_ context.Context, item *domain.ImportItem) (*domain.ImportItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cp := *item
	cp.ID = f.nextID
	f.items[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeItemRepo) CountByStatus(context.Context) (domain.StatusCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := domain.StatusCounts{}
	for _, item := range f.items {
		counts[item.Status]++
	}
	return counts, nil
}

func (f *fakeItemRepo) Claim(_ context.Context, from []domain.ItemStatus, to domain.ItemStatus) (*domain.ImportItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.sortedIDs() {
		item := f.items[id]
		for _, s := range from {
			if item.Status == s {
				item.Status = to
				cp := *item
				return &cp, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeItemRepo) Complete(_ context.Context, item *domain.ImportItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[item.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *item
	f.items[item.ID] = &cp
	return nil
}

func (f *fakeItemRepo) FindByID(_ context.Context, id int64) (*domain.ImportItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (f *fakeItemRepo) ListByStatus(_ context.Context, statuses ...domain.ItemStatus) ([]domain.ImportItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(statuses) == 0 {
		statuses = domain.WorkStatuses
	}
	var out []domain.ImportItem
	for _, id := range f.sortedIDs() {
		item := f.items[id]
		for _, s := range statuses {
			if item.Status == s {
				out = append(out, *item)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeItemRepo) CountByCatalogID(context.Context) (map[int64]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]int)
	for _, item := range f.items {
		if item.CatalogID != nil {
			out[*item.CatalogID]++
		}
	}
	return out, nil
}

func (f *fakeItemRepo) UpdateActions(_ context.Context, id int64, actions domain.ItemActions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Actions = actions
	return nil
}

func (f *fakeItemRepo) sortedIDs() []int64 {
	ids := make([]int64, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type fakeCatalogRepo struct {
	products   map[int64]domain.RawRecord
	variants   map[int64][]domain.RawRecord
	identities map[string][]int64
	topLevel   []int64
	maxTS      int64

	applied  []domain.Statement
	applyErr error
}

func (f *fakeCatalogRepo) FindProduct(_ context.Context, id int64) (domain.RawRecord, error) {
	return f.products[id], nil
}

func (f *fakeCatalogRepo) ListVariants(_ context.Context, pid int64) ([]domain.RawRecord, error) {
	return f.variants[pid], nil
}

func (f *fakeCatalogRepo) ListTranslations(context.Context, []int64) ([]domain.TranslationRecord, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) ListPrices(context.Context, []int64) ([]domain.PriceRecord, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) ListProductTypes(context.Context) ([]domain.NamedRecord, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) ListGroups(context.Context) ([]domain.NamedRecord, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) ListTaxClasses(context.Context) ([]domain.NamedRecord, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) ListMemberGroups(context.Context) ([]domain.NamedRecord, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) ListAttributes(context.Context) ([]domain.AttributeDef, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) FindFiles(context.Context, [][]byte) ([]domain.FileRecord, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) FindPages(context.Context, []int64) ([]domain.PageRecord, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) MaxTimestamp(context.Context) (int64, string, error) {
	return f.maxTS, "catalog_product", nil
}

func (f *fakeCatalogRepo) ListTopLevelIDs(context.Context) ([]int64, error) {
	return f.topLevel, nil
}

func (f *fakeCatalogRepo) FindProductIDs(_ context.Context, id domain.Identifier) ([]int64, error) {
	return f.identities[id.String()], nil
}

func (f *fakeCatalogRepo) ApplyStatement(_ context.Context, stmt domain.Statement) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, stmt)
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
	err     error
}

func (f *fakeStorage) Upload(_ context.Context, bucket, objectName, _ string, reader io.Reader, _ int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[bucket+"/"+objectName] = data
	return "http://minio.local/" + bucket + "/" + objectName, nil
}

type fakeAudit struct {
	events []domain.ApplyEvent
}

func (f *fakeAudit) RecordApply(_ context.Context, event domain.ApplyEvent) error {
	f.events = append(f.events, event)
	return errors.New("audit index unavailable")
}

// mugCatalog holds one product matched by alias and one nothing imports.
func mugCatalog() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		products: map[int64]domain.RawRecord{
			7: {
				{Name: "id", Value: "7"},
				{Name: "pid", Value: "0"},
				{Name: "alias", Value: "red-mug"},
				{Name: "name", Value: "Red Mug"},
			},
			9: {
				{Name: "id", Value: "9"},
				{Name: "pid", Value: "0"},
				{Name: "alias", Value: "old-plate"},
				{Name: "name", Value: "Old Plate"},
			},
		},
		identities: map[string][]int64{
			"alias:red-mug": {7},
		},
		topLevel: []int64{7, 9},
		maxTS:    100,
	}
}

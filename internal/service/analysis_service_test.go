package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/catalogxml"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/staging"
)

func product(kind domain.IdentifierKind, id string, fields map[string]string) *domain.ProductTree {
	main := domain.NewMap()
	for k, v := range fields {
		main.SetText(k, v)
	}
	return &domain.ProductTree{Identifier: domain.Identifier{Kind: kind, Value: id}, Main: main}
}

func stageImport(t *testing.T, store *staging.Store, ts int64, trees ...*domain.ProductTree) {
	t.Helper()
	var buf bytes.Buffer
	enc := catalogxml.NewEncoder(&buf)
	for _, tree := range trees {
		if err := enc.WriteProduct(tree); err != nil {
			t.Fatalf("WriteProduct: %v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := store.WriteFile(staging.ImportXML, &buf); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := store.WriteText(staging.ImportName, "backup.xml"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if err := store.WriteTimestamp(staging.ImportTS, ts); err != nil {
		t.Fatalf("WriteTimestamp: %v", err)
	}
}

func newAnalysisFixture(t *testing.T, catalogRepo *fakeCatalogRepo) (*AnalysisService, *fakeItemRepo, *staging.Store) {
	t.Helper()
	store, err := staging.New(t.TempDir())
	if err != nil {
		t.Fatalf("staging.New: %v", err)
	}
	items := newFakeItemRepo()
	svc := NewAnalysisService(items, catalogRepo, store)
	svc.now = func() time.Time { return time.Unix(1000, 0) }
	return svc, items, store
}

// runAnalysis follows next_step from init until the service stops.
func runAnalysis(t *testing.T, svc *AnalysisService) []domain.Report {
	t.Helper()
	var reports []domain.Report
	stage := domain.StageInit
	for i := 0; i < 50; i++ {
		report, err := svc.Step(context.Background(), stage)
		if err != nil {
			t.Fatalf("Step(%s): %v", stage, err)
		}
		reports = append(reports, report)
		if report.Code == domain.MessageAnalysisError {
			t.Fatalf("Step(%s) failed: %s", stage, report.Message)
		}
		if report.Done() {
			return reports
		}
		stage = report.NextStep
	}
	t.Fatalf("analysis did not finish")
	return nil
}

func TestAnalysisClassifiesEveryProduct(t *testing.T) {
	svc, items, store := newAnalysisFixture(t, mugCatalog())
	stageImport(t, store, 500,
		product(domain.IdentifierAlias, "red-mug", map[string]string{"name": "Blue Mug"}),
		product(domain.IdentifierAlias, "new-bowl", map[string]string{"name": "Bowl"}),
		product(domain.IdentifierMissing, "", map[string]string{"color": "blue"}),
		product(domain.IdentifierAlias, "empty", nil),
	)

	reports := runAnalysis(t, svc)
	last := reports[len(reports)-1]
	if last.Code != domain.MessageAnalysisSuccessful || last.Progress == nil || *last.Progress != 100 {
		t.Fatalf("unexpected final report %+v", last)
	}

	all, err := svc.Items(context.Background())
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 items, got %d", len(all))
	}

	mug := all[0]
	if mug.Status != domain.ItemStatusAnalysed || mug.Actions.Kind != domain.ItemActionDiff || mug.CatalogID == nil || *mug.CatalogID != 7 {
		t.Fatalf("unexpected mug item %+v", mug)
	}
	if len(mug.Actions.Supported) != 1 {
		t.Fatalf("expected one supported action, got %+v", mug.Actions)
	}
	action := mug.Actions.Supported[0]
	if action.Statement != (domain.Statement{Target: domain.TargetProductName, RecordID: 7, Value: "Blue Mug"}) {
		t.Fatalf("unexpected statement %+v", action.Statement)
	}

	if all[1].Actions.Kind != domain.ItemActionImportEverything || all[1].CatalogID != nil {
		t.Fatalf("unmatched product should be imported whole: %+v", all[1])
	}
	if all[2].Status != domain.ItemStatusFailed || all[3].Status != domain.ItemStatusFailed {
		t.Fatalf("expected failed items, got %s and %s", all[2].Status, all[3].Status)
	}
	orphan := all[4]
	if orphan.Actions.Kind != domain.ItemActionConfirmDelete || orphan.CatalogID == nil || *orphan.CatalogID != 9 {
		t.Fatalf("expected a delete proposal for product 9, got %+v", orphan)
	}

	entries, err := svc.Errors(context.Background())
	if err != nil {
		t.Fatalf("Errors: %v", err)
	}
	codes := make([]domain.ErrorCode, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, e.Code)
	}
	if len(codes) != 2 || codes[0] != domain.ErrorEmptyPayload || codes[1] != domain.ErrorInvalidIdentifier {
		t.Fatalf("unexpected error codes %v", codes)
	}

	setup, _ := items.GetSetup(context.Background())
	if setup.Status != domain.RunStatusReady || setup.FileName != "backup.xml" || setup.AnalysedAt != 1000 {
		t.Fatalf("unexpected setup %+v", setup)
	}
	ready, err := svc.IsReady(context.Background())
	if err != nil || !ready {
		t.Fatalf("IsReady = %v, %v", ready, err)
	}
}

func TestAnalysisReportsLoopProgress(t *testing.T) {
	svc, _, store := newAnalysisFixture(t, mugCatalog())
	stageImport(t, store, 500,
		product(domain.IdentifierAlias, "a", map[string]string{"name": "A"}),
		product(domain.IdentifierAlias, "b", map[string]string{"name": "B"}),
		product(domain.IdentifierAlias, "c", map[string]string{"name": "C"}),
		product(domain.IdentifierAlias, "d", map[string]string{"name": "D"}),
	)

	ctx := context.Background()
	for _, stage := range []domain.Stage{domain.StageReadInit, domain.StageReadXMLFile, domain.StageParseInit} {
		if report, _ := svc.Step(ctx, stage); report.Code == domain.MessageAnalysisError {
			t.Fatalf("Step(%s): %s", stage, report.Message)
		}
	}

	report, err := svc.Step(ctx, domain.StageParseXMLData)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if report.NextStep != domain.StageParseXMLData {
		t.Fatalf("expected the stage to repeat, got %q", report.NextStep)
	}
	if report.Progress == nil || *report.Progress != 17.5 {
		t.Fatalf("unexpected progress %v", report.Progress)
	}
	if !strings.HasSuffix(report.Message, "(1/4)") {
		t.Fatalf("unexpected message %q", report.Message)
	}
}

func TestAnalysisInitResumesAndDetectsFreshResults(t *testing.T) {
	catalogRepo := mugCatalog()
	svc, _, store := newAnalysisFixture(t, catalogRepo)
	stageImport(t, store, 500, product(domain.IdentifierAlias, "red-mug", map[string]string{"name": "Red Mug"}))
	ctx := context.Background()

	report, _ := svc.Step(ctx, domain.StageInit)
	if report.NextStep != domain.StageReadInit {
		t.Fatalf("a new upload must start at read-init, got %+v", report)
	}

	svc.Step(ctx, domain.StageReadInit)
	svc.Step(ctx, domain.StageReadXMLFile)
	report, _ = svc.Step(ctx, domain.StageInit)
	if report.NextStep != domain.StageParseInit {
		t.Fatalf("expected to resume at parse-init, got %+v", report)
	}

	runAnalysis(t, svc)
	report, _ = svc.Step(ctx, domain.StageInit)
	if !report.Done() || report.Code != domain.MessageAnalysisReady {
		t.Fatalf("expected analysis-ready, got %+v", report)
	}

	catalogRepo.maxTS = 2000
	report, _ = svc.Step(ctx, domain.StageInit)
	if report.NextStep != domain.StageReadInit {
		t.Fatalf("a changed catalog must restart the run, got %+v", report)
	}
}

func TestAnalysisRejectsStaleRun(t *testing.T) {
	svc, _, store := newAnalysisFixture(t, mugCatalog())
	stageImport(t, store, 500, product(domain.IdentifierAlias, "red-mug", map[string]string{"name": "Red Mug"}))
	ctx := context.Background()
	svc.Step(ctx, domain.StageReadInit)

	if err := store.WriteTimestamp(staging.ImportTS, 600); err != nil {
		t.Fatalf("WriteTimestamp: %v", err)
	}
	report, err := svc.Step(ctx, domain.StageReadXMLFile)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if report.Code != domain.MessageAnalysisError || !report.Done() || report.Message != ErrStaleRun.Error() {
		t.Fatalf("expected a stale run error, got %+v", report)
	}
}

func TestAnalysisWithoutUpload(t *testing.T) {
	svc, _, _ := newAnalysisFixture(t, mugCatalog())
	report, err := svc.Step(context.Background(), domain.StageInit)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if report.Code != domain.MessageAnalysisError || report.Message != ErrNoUpload.Error() {
		t.Fatalf("unexpected report %+v", report)
	}
	if ready, err := svc.IsReady(context.Background()); err != nil || ready {
		t.Fatalf("IsReady = %v, %v", ready, err)
	}

	if _, err := svc.Step(context.Background(), domain.Stage("bogus")); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
}

func TestAnalysisEmptyDocumentIsFatal(t *testing.T) {
	svc, _, store := newAnalysisFixture(t, mugCatalog())
	stageImport(t, store, 500)
	ctx := context.Background()
	svc.Step(ctx, domain.StageReadInit)

	report, _ := svc.Step(ctx, domain.StageReadXMLFile)
	if report.Code != domain.MessageAnalysisError || report.Message != ErrEmptyDocument.Error() {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestAnalysisFlagsCatalogProductMatchedTwice(t *testing.T) {
	svc, _, store := newAnalysisFixture(t, mugCatalog())
	stageImport(t, store, 500,
		product(domain.IdentifierAlias, "red-mug", map[string]string{"name": "Red Mug"}),
		product(domain.IdentifierAlias, "red-mug", map[string]string{"name": "Red Mug 2"}),
	)
	runAnalysis(t, svc)

	entries, err := svc.Errors(context.Background())
	if err != nil {
		t.Fatalf("Errors: %v", err)
	}
	if len(entries) != 1 || entries[0].Code != domain.ErrorMultipleImports {
		t.Fatalf("unexpected errors %+v", entries)
	}
	if len(entries[0].ItemIDs) != 2 || entries[0].ItemIDs[0] != 1 || entries[0].ItemIDs[1] != 2 {
		t.Fatalf("expected both items to be listed, got %v", entries[0].ItemIDs)
	}
}

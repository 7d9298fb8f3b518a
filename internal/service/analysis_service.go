package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/catalog"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/catalogxml"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/logging"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/reconcile"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/ports"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/staging"
)

var (
	ErrUnknownStage  = errors.New("unknown analysis stage")
	ErrNoUpload      = errors.New("no import document has been uploaded")
	ErrSetupMissing  = errors.New("analysis has not been started for the uploaded document")
	ErrStaleRun      = errors.New("the uploaded document changed since the analysis started")
	ErrEmptyDocument = errors.New("the import document contains no products")
)

// importDocument is the read side of the staging area.
type importDocument interface {
	ReadTimestamp(name string) (int64, error)
	ReadText(name string) (string, error)
	Open(name string) (*os.File, error)
}

// AnalysisService drives the import analysis one step per call.
type AnalysisService struct {
	items   ports.WorkItemRepository
	catalog ports.CatalogRepository
	staging importDocument
	now     func() time.Time

	mu     sync.Mutex
	runID  uuid.UUID
	reader *catalog.Reader
}

func NewAnalysisService(items ports.WorkItemRepository, catalogRepo ports.CatalogRepository, stagingArea importDocument) *AnalysisService {
	return &AnalysisService{
		items:   items,
		catalog: catalogRepo,
		staging: stagingArea,
		now:     time.Now,
	}
}

// Step runs one step of stage. Stage failures are reported in the reply, the
// error return is reserved for unknown stages.
func (s *AnalysisService) Step(ctx context.Context, stage domain.Stage) (domain.Report, error) {
	handler, ok := s.handlers()[stage]
	if !ok {
		return domain.Report{}, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	ctx = logging.WithFields(ctx, "stage", string(stage))

	out := handler(ctx)
	report := transition(stage, out)
	if out.err != nil {
		logging.FromContext(ctx).Error("analysis step failed", "error", out.err)
	} else {
		logging.FromContext(ctx).Debug("analysis step", "next_step", string(report.NextStep), "pending", out.pending)
	}
	return report, nil
}

func (s *AnalysisService) handlers() map[domain.Stage]func(context.Context) outcome {
	return map[domain.Stage]func(context.Context) outcome{
		domain.StageInit:           s.init,
		domain.StageReadInit:       s.readInit,
		domain.StageReadXMLFile:    s.readXMLFile,
		domain.StageParseInit:      s.markOnly(domain.StageParseInit),
		domain.StageParseXMLData:   s.parseXMLData,
		domain.StageAnalyseInit:    s.markOnly(domain.StageAnalyseInit),
		domain.StageAnalyseImport:  s.analyseImport,
		domain.StageAnalyseCatalog: s.analyseCatalog,
		domain.StageFinish:         s.finish,
	}
}

// IsReady reports whether stored results belong to the staged document and
// are newer than every catalog change.
func (s *AnalysisService) IsReady(ctx context.Context) (bool, error) {
	fileTS, err := s.fileTimestamp()
	if err != nil {
		if errors.Is(err, ErrNoUpload) {
			return false, nil
		}
		return false, err
	}
	setup, err := s.items.GetSetup(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	catalogTS, _, err := s.catalog.MaxTimestamp(ctx)
	if err != nil {
		return false, err
	}
	return setup.IsReady(fileTS, catalogTS), nil
}

// Items lists work items with their analysis results.
func (s *AnalysisService) Items(ctx context.Context, statuses ...domain.ItemStatus) ([]domain.ImportItem, error) {
	return s.items.ListByStatus(ctx, statuses...)
}

func (s *AnalysisService) Errors(ctx context.Context) ([]domain.ErrorEntry, error) {
	log, err := s.items.GetErrors(ctx)
	if err != nil {
		return nil, err
	}
	return log.Sorted(), nil
}

// init resumes a run for the staged document when one exists.
func (s *AnalysisService) init(ctx context.Context) outcome {
	fileTS, err := s.fileTimestamp()
	if err != nil {
		return outcome{err: err}
	}
	setup, err := s.items.GetSetup(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return outcome{next: domain.StageReadInit}
	}
	if err != nil {
		return outcome{err: err}
	}
	if setup.FileTimestamp != fileTS {
		return outcome{next: domain.StageReadInit}
	}

	catalogTS, _, err := s.catalog.MaxTimestamp(ctx)
	if err != nil {
		return outcome{err: err}
	}
	if setup.IsReady(fileTS, catalogTS) {
		return outcome{finished: true, code: domain.MessageAnalysisReady}
	}
	for _, stage := range domain.Stages[2:] {
		if !setup.StageDone(stage) {
			return outcome{next: stage}
		}
	}
	// Every stage ran but the catalog changed afterwards.
	return outcome{next: domain.StageReadInit}
}

func (s *AnalysisService) readInit(ctx context.Context) outcome {
	fileTS, err := s.fileTimestamp()
	if err != nil {
		return outcome{err: err}
	}
	name, err := s.staging.ReadText(staging.ImportName)
	if err != nil && !errors.Is(err, staging.ErrNotFound) {
		return outcome{err: err}
	}

	if err := s.items.Reset(ctx); err != nil {
		return outcome{err: fmt.Errorf("reset work items: %w", err)}
	}
	setup := &domain.Setup{
		RunID:         uuid.New(),
		FileTimestamp: fileTS,
		FileName:      name,
		Status:        domain.RunStatusBusy,
	}
	setup.MarkStage(domain.StageReadInit, s.now().Unix())
	if err := s.items.SaveSetup(ctx, setup); err != nil {
		return outcome{err: err}
	}
	if err := s.items.SaveErrors(ctx, domain.ErrorLog{}); err != nil {
		return outcome{err: err}
	}
	logging.FromContext(ctx).Info("analysis started", "run_id", setup.RunID.String(), "file", name, "file_ts", fileTS)
	return outcome{}
}

// readXMLFile splits the document into one created item per product. A retry
// starts from an empty table again.
func (s *AnalysisService) readXMLFile(ctx context.Context) outcome {
	setup, err := s.activeSetup(ctx)
	if err != nil {
		return outcome{err: err}
	}
	if err := s.items.Reset(ctx); err != nil {
		return outcome{err: err}
	}
	if err := s.items.SaveSetup(ctx, setup); err != nil {
		return outcome{err: err}
	}
	if err := s.items.SaveErrors(ctx, domain.ErrorLog{}); err != nil {
		return outcome{err: err}
	}

	f, err := s.staging.Open(staging.ImportXML)
	if err != nil {
		if errors.Is(err, staging.ErrNotFound) {
			return outcome{err: ErrNoUpload}
		}
		return outcome{err: err}
	}
	defer f.Close()

	count := 0
	err = catalogxml.SplitProducts(f, func(fragment catalogxml.Fragment) error {
		importID := fragment.ImportID()
		_, err := s.items.Insert(ctx, &domain.ImportItem{
			Status:   domain.ItemStatusCreated,
			ImportID: &importID,
			Data:     fragment.Data,
			Tstamp:   s.now().Unix(),
		})
		count++
		return err
	})
	if err != nil {
		return outcome{err: fmt.Errorf("read import document: %w", err)}
	}
	if count == 0 {
		return outcome{err: ErrEmptyDocument}
	}
	logging.FromContext(ctx).Info("import document split", "products", count)
	return s.mark(ctx, setup, domain.StageReadXMLFile)
}

func (s *AnalysisService) markOnly(stage domain.Stage) func(context.Context) outcome {
	return func(ctx context.Context) outcome {
		setup, err := s.activeSetup(ctx)
		if err != nil {
			return outcome{err: err}
		}
		return s.mark(ctx, setup, stage)
	}
}

// parseXMLData decodes the fragment of one created item into a tree.
func (s *AnalysisService) parseXMLData(ctx context.Context) outcome {
	setup, err := s.activeSetup(ctx)
	if err != nil {
		return outcome{err: err}
	}
	waiting := []domain.ItemStatus{domain.ItemStatusCreated, domain.ItemStatusPreparing}

	item, err := s.items.Claim(ctx, waiting, domain.ItemStatusPreparing)
	if errors.Is(err, sql.ErrNoRows) {
		return s.mark(ctx, setup, domain.StageParseXMLData)
	}
	if err != nil {
		return outcome{err: err}
	}

	item.Tstamp = s.now().Unix()
	tree, err := catalogxml.DecodeProduct(item.Data)
	switch {
	case err != nil:
		if err := s.recordError(ctx, domain.ErrorMalformedFragment, err.Error(), item.ID); err != nil {
			return outcome{err: err}
		}
		item.Status = domain.ItemStatusFailed
	case tree.IsEmpty():
		if err := s.recordError(ctx, domain.ErrorEmptyPayload, "product without data", item.ID); err != nil {
			return outcome{err: err}
		}
		item.Status = domain.ItemStatusFailed
	default:
		data, err := catalog.Normalize(tree).Encode()
		if err != nil {
			return outcome{err: err}
		}
		item.Data = data
		item.Status = domain.ItemStatusPrepared
	}
	if err := s.items.Complete(ctx, item); err != nil {
		return outcome{err: err}
	}
	return s.loopOutcome(ctx, setup, domain.StageParseXMLData, waiting)
}

// analyseImport matches one prepared item against the catalog and stores the
// classified differences.
func (s *AnalysisService) analyseImport(ctx context.Context) outcome {
	setup, err := s.activeSetup(ctx)
	if err != nil {
		return outcome{err: err}
	}
	waiting := []domain.ItemStatus{domain.ItemStatusPrepared, domain.ItemStatusAnalysing}

	item, err := s.items.Claim(ctx, waiting, domain.ItemStatusAnalysing)
	if errors.Is(err, sql.ErrNoRows) {
		return s.mark(ctx, setup, domain.StageAnalyseImport)
	}
	if err != nil {
		return outcome{err: err}
	}
	ctx = logging.WithFields(ctx, "item_id", item.ID)
	item.Tstamp = s.now().Unix()

	if err := s.analyseItem(ctx, setup, item); err != nil {
		return outcome{err: fmt.Errorf("item %d: %w", item.ID, err)}
	}
	if err := s.items.Complete(ctx, item); err != nil {
		return outcome{err: err}
	}
	return s.loopOutcome(ctx, setup, domain.StageAnalyseImport, waiting)
}

// analyseItem fills in status, match and actions. Errors it returns are fatal
// for the step; recoverable problems end in a failed item.
func (s *AnalysisService) analyseItem(ctx context.Context, setup *domain.Setup, item *domain.ImportItem) error {
	id, err := item.Identifier()
	if err != nil {
		raw := ""
		if item.ImportID != nil {
			raw = *item.ImportID
		}
		item.Status = domain.ItemStatusFailed
		return s.recordError(ctx, domain.ErrorInvalidIdentifier, fmt.Sprintf("invalid identifier %q", raw), item.ID)
	}

	matches, err := s.catalog.FindProductIDs(ctx, id)
	if err != nil {
		return err
	}
	switch len(matches) {
	case 0:
		item.Status = domain.ItemStatusAnalysed
		item.Actions = domain.ItemActions{Kind: domain.ItemActionImportEverything}
		return nil
	case 1:
	default:
		item.Status = domain.ItemStatusFailed
		return s.recordError(ctx, domain.ErrorAmbiguousMatch,
			fmt.Sprintf("%s matches %d catalog products", id, len(matches)), item.ID)
	}

	imported, err := domain.DecodeProductTree(item.Data)
	if err != nil {
		return fmt.Errorf("decode prepared tree: %w", err)
	}
	current, err := s.readerFor(setup.RunID).Tree(ctx, matches[0], catalog.BuildOptions{SourceIDs: true})
	if err != nil {
		return fmt.Errorf("read catalog product %d: %w", matches[0], err)
	}
	actions, err := reconcile.Diff(imported.Root(), current.Root())
	if err != nil {
		return err
	}
	supported, unsupported := reconcile.Classify(actions)

	item.Status = domain.ItemStatusAnalysed
	item.CatalogID = &matches[0]
	item.Actions = domain.ItemActions{
		Kind:        domain.ItemActionDiff,
		Supported:   supported,
		Unsupported: unsupported,
	}
	logging.FromContext(ctx).Debug("item analysed", "catalog_id", matches[0], "supported", len(supported), "unsupported", len(unsupported))
	return nil
}

// analyseCatalog proposes deleting catalog products no item matched and
// reports catalog products matched more than once.
func (s *AnalysisService) analyseCatalog(ctx context.Context) outcome {
	setup, err := s.activeSetup(ctx)
	if err != nil {
		return outcome{err: err}
	}
	matched, err := s.items.CountByCatalogID(ctx)
	if err != nil {
		return outcome{err: err}
	}
	ids, err := s.catalog.ListTopLevelIDs(ctx)
	if err != nil {
		return outcome{err: err}
	}

	orphans, duplicates := 0, 0
	for _, id := range ids {
		switch n := matched[id]; {
		case n == 0:
			catalogID := id
			if _, err := s.items.Insert(ctx, &domain.ImportItem{
				Status:    domain.ItemStatusAnalysed,
				CatalogID: &catalogID,
				Actions:   domain.ItemActions{Kind: domain.ItemActionConfirmDelete},
				Tstamp:    s.now().Unix(),
			}); err != nil {
				return outcome{err: err}
			}
			orphans++
		case n > 1:
			duplicates++
		}
	}
	if duplicates > 0 {
		if err := s.recordDuplicates(ctx, matched); err != nil {
			return outcome{err: err}
		}
	}
	logging.FromContext(ctx).Info("catalog scanned", "products", len(ids), "orphans", orphans, "duplicates", duplicates)
	return s.mark(ctx, setup, domain.StageAnalyseCatalog)
}

func (s *AnalysisService) recordDuplicates(ctx context.Context, matched map[int64]int) error {
	items, err := s.items.ListByStatus(ctx, domain.ItemStatusAnalysed)
	if err != nil {
		return err
	}
	log, err := s.items.GetErrors(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.CatalogID == nil || matched[*item.CatalogID] < 2 {
			continue
		}
		log.Add(domain.ErrorMultipleImports,
			fmt.Sprintf("catalog product %d is matched by %d imported products", *item.CatalogID, matched[*item.CatalogID]),
			item.ID)
	}
	return s.items.SaveErrors(ctx, log)
}

func (s *AnalysisService) finish(ctx context.Context) outcome {
	setup, err := s.activeSetup(ctx)
	if err != nil {
		return outcome{err: err}
	}
	now := s.now().Unix()
	setup.Status = domain.RunStatusReady
	setup.AnalysedAt = now
	setup.MarkStage(domain.StageFinish, now)
	if err := s.items.SaveSetup(ctx, setup); err != nil {
		return outcome{err: err}
	}
	logging.FromContext(ctx).Info("analysis finished", "run_id", setup.RunID.String())
	return outcome{finished: true}
}

// activeSetup loads the setup row and checks it belongs to the staged document.
func (s *AnalysisService) activeSetup(ctx context.Context) (*domain.Setup, error) {
	fileTS, err := s.fileTimestamp()
	if err != nil {
		return nil, err
	}
	setup, err := s.items.GetSetup(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSetupMissing
	}
	if err != nil {
		return nil, err
	}
	if setup.FileTimestamp != fileTS {
		return nil, ErrStaleRun
	}
	return setup, nil
}

func (s *AnalysisService) mark(ctx context.Context, setup *domain.Setup, stage domain.Stage) outcome {
	setup.MarkStage(stage, s.now().Unix())
	if err := s.items.SaveSetup(ctx, setup); err != nil {
		return outcome{err: err}
	}
	return outcome{}
}

// loopOutcome reports the remaining work of a self-looping stage. When nothing
// is left the stage is marked done right away.
func (s *AnalysisService) loopOutcome(ctx context.Context, setup *domain.Setup, stage domain.Stage, waiting []domain.ItemStatus) outcome {
	counts, err := s.items.CountByStatus(ctx)
	if err != nil {
		return outcome{err: err}
	}
	pending := counts.Sum(waiting...)
	if pending == 0 {
		return s.mark(ctx, setup, stage)
	}
	return outcome{pending: pending, total: counts.Total()}
}

func (s *AnalysisService) recordError(ctx context.Context, code domain.ErrorCode, message string, itemID int64) error {
	log, err := s.items.GetErrors(ctx)
	if err != nil {
		return err
	}
	log.Add(code, message, itemID)
	logging.FromContext(ctx).Warn("import item rejected", "code", string(code), "reason", message)
	return s.items.SaveErrors(ctx, log)
}

func (s *AnalysisService) fileTimestamp() (int64, error) {
	ts, err := s.staging.ReadTimestamp(staging.ImportTS)
	if errors.Is(err, staging.ErrNotFound) {
		return 0, ErrNoUpload
	}
	return ts, err
}

// readerFor returns the catalog reader of a run; its lookups are loaded once
// per run.
func (s *AnalysisService) readerFor(runID uuid.UUID) *catalog.Reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil || s.runID != runID {
		s.runID = runID
		s.reader = catalog.NewReader(s.catalog)
	}
	return s.reader
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/logging"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/ports"
)

var (
	ErrImportActionsDisabled = errors.New("applying import actions is disabled")
	ErrItemNotFound          = errors.New("work item not found")
	ErrActionNotFound        = errors.New("action not found")
	ErrActionNotPending      = errors.New("action was already applied")
	ErrNoPendingAction       = errors.New("no pending action in group")
)

type actorKey struct{}

// ContextWithActor tags ctx with the user applying actions.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

type ApplyServiceConfig struct {
	Enabled bool
}

// ApplyService writes supported actions back to the catalog, one per call.
type ApplyService struct {
	items   ports.WorkItemRepository
	catalog ports.CatalogRepository
	audit   ports.AuditSink
	enabled bool
	now     func() time.Time
}

func NewApplyService(items ports.WorkItemRepository, catalogRepo ports.CatalogRepository, audit ports.AuditSink, cfg ApplyServiceConfig) *ApplyService {
	return &ApplyService{
		items:   items,
		catalog: catalogRepo,
		audit:   audit,
		enabled: cfg.Enabled,
		now:     time.Now,
	}
}

// ApplyAction applies the supported action at index of an item. A failing
// catalog write is recorded on the action and reported without an error.
func (s *ApplyService) ApplyAction(ctx context.Context, itemID int64, index int) (domain.ApplyResult, error) {
	if !s.enabled {
		return domain.ApplyResult{}, ErrImportActionsDisabled
	}
	item, err := s.items.FindByID(ctx, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ApplyResult{}, ErrItemNotFound
	}
	if err != nil {
		return domain.ApplyResult{}, err
	}
	if index < 0 || index >= len(item.Actions.Supported) {
		return domain.ApplyResult{}, fmt.Errorf("%w: item %d has no action %d", ErrActionNotFound, itemID, index)
	}
	if !item.Actions.Supported[index].IsPending() {
		return domain.ApplyResult{}, ErrActionNotPending
	}
	return s.apply(ctx, item, index)
}

// ApplyGroup applies the next pending action of group, in item order.
func (s *ApplyService) ApplyGroup(ctx context.Context, group domain.ActionGroup) (domain.ApplyResult, error) {
	if !s.enabled {
		return domain.ApplyResult{}, ErrImportActionsDisabled
	}
	items, err := s.items.ListByStatus(ctx, domain.ItemStatusAnalysed)
	if err != nil {
		return domain.ApplyResult{}, err
	}
	pending := countPending(items, group)
	for i := range items {
		index := items[i].Actions.NextPending(group)
		if index < 0 {
			continue
		}
		result, err := s.apply(ctx, &items[i], index)
		if err != nil {
			return result, err
		}
		result.Remaining = pending - 1
		return result, nil
	}
	return domain.ApplyResult{}, fmt.Errorf("%w %q", ErrNoPendingAction, group)
}

// Pending counts the actions of group still waiting to be applied.
func (s *ApplyService) Pending(ctx context.Context, group domain.ActionGroup) (int, error) {
	items, err := s.items.ListByStatus(ctx, domain.ItemStatusAnalysed)
	if err != nil {
		return 0, err
	}
	return countPending(items, group), nil
}

func (s *ApplyService) apply(ctx context.Context, item *domain.ImportItem, index int) (domain.ApplyResult, error) {
	ctx = logging.WithFields(ctx, "item_id", item.ID, "index", index)
	action := &item.Actions.Supported[index]

	applyErr := s.catalog.ApplyStatement(ctx, action.Statement)
	if applyErr != nil {
		action.Status = domain.ActionStatusFailed
		action.Error = applyErr.Error()
		logging.FromContext(ctx).Warn("action failed", "target", string(action.Statement.Target), "error", applyErr)
	} else {
		action.Status = domain.ActionStatusDone
		action.Error = ""
		logging.FromContext(ctx).Info("action applied", "target", string(action.Statement.Target), "record_id", action.Statement.RecordID)
	}
	if err := s.items.UpdateActions(ctx, item.ID, item.Actions); err != nil {
		return domain.ApplyResult{}, fmt.Errorf("store action status: %w", err)
	}
	s.record(ctx, item.ID, index, *action)

	result := domain.ApplyResult{
		Success:   applyErr == nil,
		ItemID:    item.ID,
		Index:     index,
		Action:    action,
		Remaining: item.Actions.CountPending(action.Group),
		Message:   action.Description,
	}
	if applyErr != nil {
		result.Message = action.Error
	}
	return result, nil
}

// record writes the audit event. The catalog change already happened, so a
// failing sink is only logged.
func (s *ApplyService) record(ctx context.Context, itemID int64, index int, action domain.ClassifiedAction) {
	if s.audit == nil {
		return
	}
	event := domain.ApplyEvent{
		ItemID:    itemID,
		Index:     index,
		Group:     action.Group,
		Target:    action.Statement.Target,
		RecordID:  action.Statement.RecordID,
		Value:     action.Statement.Value,
		Status:    action.Status,
		Error:     action.Error,
		AppliedBy: actorFrom(ctx),
		AppliedAt: s.now().UTC(),
	}
	if setup, err := s.items.GetSetup(ctx); err == nil {
		event.RunID = setup.RunID.String()
	}
	if err := s.audit.RecordApply(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("audit apply event", "error", err)
	}
}

func countPending(items []domain.ImportItem, group domain.ActionGroup) int {
	n := 0
	for _, item := range items {
		n += item.Actions.CountPending(group)
	}
	return n
}

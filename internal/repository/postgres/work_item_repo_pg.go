package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

// WorkItemRepository stores work items. Queries use ? placeholders and are
// rebound for the driver, so the same repository serves postgres and sqlite.
type WorkItemRepository struct {
	db *sqlx.DB
}

func NewWorkItemRepo(db *sqlx.DB) *WorkItemRepository {
	return &WorkItemRepository{db: db}
}

const workItemColumns = `id, status, import_id, catalog_id, data, actions, tstamp`

func (r *WorkItemRepository) Reset(ctx context.Context) error {
	const query = `DELETE FROM catalog_backup_item`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *WorkItemRepository) SaveSetup(ctx context.Context, setup *domain.Setup) error {
	data, err := valueOf(setup)
	if err != nil {
		return err
	}
	return r.saveSingleton(ctx, domain.ItemStatusSetup, data)
}

func (r *WorkItemRepository) GetSetup(ctx context.Context) (*domain.Setup, error) {
	raw, err := r.singleton(ctx, domain.ItemStatusSetup)
	if err != nil {
		return nil, err
	}
	var setup domain.Setup
	if err := setup.Scan(raw); err != nil {
		return nil, err
	}
	return &setup, nil
}

func (r *WorkItemRepository) SaveErrors(ctx context.Context, log domain.ErrorLog) error {
	data, err := valueOf(log)
	if err != nil {
		return err
	}
	return r.saveSingleton(ctx, domain.ItemStatusErrors, data)
}

// GetErrors returns an empty log when no errors row exists.
func (r *WorkItemRepository) GetErrors(ctx context.Context) (domain.ErrorLog, error) {
	raw, err := r.singleton(ctx, domain.ItemStatusErrors)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrorLog{}, nil
	}
	if err != nil {
		return nil, err
	}
	var log domain.ErrorLog
	if err := log.Scan(raw); err != nil {
		return nil, err
	}
	return log, nil
}

func (r *WorkItemRepository) saveSingleton(ctx context.Context, status domain.ItemStatus, data any) error {
	update := r.db.Rebind(`UPDATE catalog_backup_item SET data = ? WHERE status = ?`)
	res, err := r.db.ExecContext(ctx, update, data, string(status))
	if err != nil {
		return err
	}
	if err := checkAffected(res); !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	insert := r.db.Rebind(`INSERT INTO catalog_backup_item (status, data) VALUES (?, ?)`)
	_, err = r.db.ExecContext(ctx, insert, string(status), data)
	return err
}

func (r *WorkItemRepository) singleton(ctx context.Context, status domain.ItemStatus) (string, error) {
	query := r.db.Rebind(`SELECT data FROM catalog_backup_item WHERE status = ? ORDER BY id LIMIT 1`)
	var raw string
	if err := r.db.GetContext(ctx, &raw, query, string(status)); err != nil {
		return "", err
	}
	return raw, nil
}

func (r *WorkItemRepository) Insert(ctx context.Context, item *domain.ImportItem) (*domain.ImportItem, error) {
	actions, err := valueOf(item.Actions)
	if err != nil {
		return nil, err
	}
	query := r.db.Rebind(`
		INSERT INTO catalog_backup_item (status, import_id, catalog_id, data, actions, tstamp)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING ` + workItemColumns)

	var inserted domain.ImportItem
	if err := r.db.GetContext(ctx, &inserted, query,
		string(item.Status),
		nullStringPtr(item.ImportID),
		nullInt64Ptr(item.CatalogID),
		item.Data,
		actions,
		item.Tstamp,
	); err != nil {
		return nil, err
	}
	return &inserted, nil
}

func (r *WorkItemRepository) CountByStatus(ctx context.Context) (domain.StatusCounts, error) {
	const query = `SELECT status, COUNT(*) AS n FROM catalog_backup_item GROUP BY status`
	var rows []struct {
		Status domain.ItemStatus `db:"status"`
		N      int               `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	counts := make(domain.StatusCounts, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

// Claim moves the oldest item in one of the from statuses to status to and
// returns it. It returns sql.ErrNoRows when no item is waiting.
func (r *WorkItemRepository) Claim(ctx context.Context, from []domain.ItemStatus, to domain.ItemStatus) (*domain.ImportItem, error) {
	query, args, err := sqlx.In(`
		UPDATE catalog_backup_item SET status = ?
		WHERE id = (
			SELECT id FROM catalog_backup_item
			WHERE status IN (?)
			ORDER BY id
			LIMIT 1
		)
		RETURNING `+workItemColumns, string(to), statusArgs(from))
	if err != nil {
		return nil, err
	}

	var item domain.ImportItem
	if err := r.db.GetContext(ctx, &item, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return &item, nil
}

// Complete stores the outcome of a stage for an item. The status is written in
// the same statement as the payload.
func (r *WorkItemRepository) Complete(ctx context.Context, item *domain.ImportItem) error {
	actions, err := valueOf(item.Actions)
	if err != nil {
		return err
	}
	query := r.db.Rebind(`
		UPDATE catalog_backup_item
		SET status = ?, catalog_id = ?, data = ?, actions = ?, tstamp = ?
		WHERE id = ?
	`)
	res, err := r.db.ExecContext(ctx, query,
		string(item.Status),
		nullInt64Ptr(item.CatalogID),
		item.Data,
		actions,
		item.Tstamp,
		item.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (r *WorkItemRepository) FindByID(ctx context.Context, id int64) (*domain.ImportItem, error) {
	query, args, err := sqlx.In(`SELECT `+workItemColumns+` FROM catalog_backup_item WHERE id = ? AND status IN (?)`,
		id, statusArgs(domain.WorkStatuses))
	if err != nil {
		return nil, err
	}
	var item domain.ImportItem
	if err := r.db.GetContext(ctx, &item, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByStatus lists work items in id order. Without statuses every work item
// is returned.
func (r *WorkItemRepository) ListByStatus(ctx context.Context, statuses ...domain.ItemStatus) ([]domain.ImportItem, error) {
	if len(statuses) == 0 {
		statuses = domain.WorkStatuses
	}
	query, args, err := sqlx.In(`SELECT `+workItemColumns+` FROM catalog_backup_item WHERE status IN (?) ORDER BY id`,
		statusArgs(statuses))
	if err != nil {
		return nil, err
	}
	var items []domain.ImportItem
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *WorkItemRepository) CountByCatalogID(ctx context.Context) (map[int64]int, error) {
	const query = `
		SELECT catalog_id, COUNT(*) AS n
		FROM catalog_backup_item
		WHERE catalog_id IS NOT NULL
		GROUP BY catalog_id
	`
	var rows []struct {
		CatalogID int64 `db:"catalog_id"`
		N         int   `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.CatalogID] = row.N
	}
	return counts, nil
}

func (r *WorkItemRepository) UpdateActions(ctx context.Context, id int64, actions domain.ItemActions) error {
	value, err := valueOf(actions)
	if err != nil {
		return err
	}
	query := r.db.Rebind(`UPDATE catalog_backup_item SET actions = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

var ErrUnsupportedTarget = errors.New("unsupported update target")

// CatalogRepository reads the live catalog and performs the fixed set of
// single-column writes that classified actions compile to.
type CatalogRepository struct {
	db *sqlx.DB
}

func NewCatalogRepo(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// FindProduct returns an empty record when the top-level product does not exist.
func (r *CatalogRepository) FindProduct(ctx context.Context, id int64) (domain.RawRecord, error) {
	const query = `SELECT * FROM catalog_product WHERE id = $1 AND pid = 0 AND language = ''`
	records, err := r.rawRecords(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return domain.RawRecord{}, nil
	}
	return records[0], nil
}

func (r *CatalogRepository) ListVariants(ctx context.Context, pid int64) ([]domain.RawRecord, error) {
	const query = `SELECT * FROM catalog_product WHERE pid = $1 AND language = '' ORDER BY id`
	return r.rawRecords(ctx, query, pid)
}

func (r *CatalogRepository) ListTranslations(ctx context.Context, pids []int64) ([]domain.TranslationRecord, error) {
	const query = `
		SELECT id, pid, language, COALESCE(name, '') AS name, COALESCE(description, '') AS description
		FROM catalog_product
		WHERE language <> '' AND pid = ANY($1)
		ORDER BY pid, language
	`
	var out []domain.TranslationRecord
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(pids)); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPrices returns the price rows of the products with their tiers sorted by
// ascending minimum quantity.
func (r *CatalogRepository) ListPrices(ctx context.Context, productIDs []int64) ([]domain.PriceRecord, error) {
	const pricesQuery = `
		SELECT id, pid, tax_class, member_group
		FROM catalog_price
		WHERE pid = ANY($1)
		ORDER BY id
	`
	var prices []domain.PriceRecord
	if err := r.db.SelectContext(ctx, &prices, pricesQuery, pq.Array(productIDs)); err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return prices, nil
	}

	ids := make([]int64, len(prices))
	for i, p := range prices {
		ids[i] = p.ID
	}
	const tiersQuery = `
		SELECT id, pid, min, price::text AS price
		FROM catalog_price_tier
		WHERE pid = ANY($1)
		ORDER BY pid, min
	`
	var tiers []domain.TierRecord
	if err := r.db.SelectContext(ctx, &tiers, tiersQuery, pq.Array(ids)); err != nil {
		return nil, err
	}
	byPrice := make(map[int64][]domain.TierRecord, len(prices))
	for _, t := range tiers {
		byPrice[t.PID] = append(byPrice[t.PID], t)
	}
	for i := range prices {
		list := byPrice[prices[i].ID]
		sort.SliceStable(list, func(a, b int) bool { return list[a].Min < list[b].Min })
		prices[i].Tiers = list
	}
	return prices, nil
}

func (r *CatalogRepository) ListProductTypes(ctx context.Context) ([]domain.NamedRecord, error) {
	return r.named(ctx, `SELECT id, name FROM catalog_product_type ORDER BY id`)
}

func (r *CatalogRepository) ListGroups(ctx context.Context) ([]domain.NamedRecord, error) {
	return r.named(ctx, `SELECT id, name FROM catalog_group ORDER BY id`)
}

func (r *CatalogRepository) ListTaxClasses(ctx context.Context) ([]domain.NamedRecord, error) {
	return r.named(ctx, `SELECT id, name FROM catalog_tax_class ORDER BY id`)
}

func (r *CatalogRepository) ListMemberGroups(ctx context.Context) ([]domain.NamedRecord, error) {
	return r.named(ctx, `SELECT id, name FROM member_group ORDER BY id`)
}

func (r *CatalogRepository) named(ctx context.Context, query string) ([]domain.NamedRecord, error) {
	var out []domain.NamedRecord
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CatalogRepository) ListAttributes(ctx context.Context) ([]domain.AttributeDef, error) {
	const query = `SELECT id, field_name, name, type FROM catalog_attribute ORDER BY id`
	var out []domain.AttributeDef
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CatalogRepository) FindFiles(ctx context.Context, uuids [][]byte) ([]domain.FileRecord, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	const query = `SELECT uuid, path, name FROM files WHERE uuid = ANY($1)`
	var out []domain.FileRecord
	if err := r.db.SelectContext(ctx, &out, query, pq.ByteaArray(uuids)); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CatalogRepository) FindPages(ctx context.Context, ids []int64) ([]domain.PageRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, alias FROM page WHERE id = ANY($1)`
	var out []domain.PageRecord
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	return out, nil
}

// MaxTimestamp returns the newest tstamp over every table an export reads.
func (r *CatalogRepository) MaxTimestamp(ctx context.Context) (int64, string, error) {
	const query = `
		SELECT ts, source FROM (
			SELECT COALESCE(MAX(tstamp), 0) AS ts, 'catalog_product' AS source FROM catalog_product
			UNION ALL SELECT COALESCE(MAX(tstamp), 0), 'catalog_attribute' FROM catalog_attribute
			UNION ALL SELECT COALESCE(MAX(tstamp), 0), 'catalog_attribute_option' FROM catalog_attribute_option
			UNION ALL SELECT COALESCE(MAX(tstamp), 0), 'catalog_group' FROM catalog_group
			UNION ALL SELECT COALESCE(MAX(tstamp), 0), 'catalog_product_type' FROM catalog_product_type
			UNION ALL SELECT COALESCE(MAX(tstamp), 0), 'catalog_price' FROM catalog_price
			UNION ALL SELECT COALESCE(MAX(tstamp), 0), 'catalog_price_tier' FROM catalog_price_tier
			UNION ALL SELECT COALESCE(MAX(tstamp), 0), 'catalog_tax_class' FROM catalog_tax_class
			UNION ALL SELECT COALESCE(MAX(tstamp), 0), 'member_group' FROM member_group
			UNION ALL SELECT COALESCE(MAX(tstamp), 0), 'page' FROM page
		) AS t
		ORDER BY ts DESC
		LIMIT 1
	`
	var row struct {
		TS     int64  `db:"ts"`
		Source string `db:"source"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, "", err
	}
	return row.TS, row.Source, nil
}

// ListTopLevelIDs returns every top-level product in export order.
func (r *CatalogRepository) ListTopLevelIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT id FROM catalog_product WHERE pid = 0 AND language = '' ORDER BY alias, id`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, err
	}
	return ids, nil
}

var identifierColumns = map[domain.IdentifierKind]string{
	domain.IdentifierAlias: "alias",
	domain.IdentifierName:  "name",
	domain.IdentifierSKU:   "sku",
}

// FindProductIDs returns the top-level products carrying the identifier value.
func (r *CatalogRepository) FindProductIDs(ctx context.Context, id domain.Identifier) ([]int64, error) {
	column, ok := identifierColumns[id.Kind]
	if !ok || id.Value == "" {
		return nil, domain.ErrInvalidIdentifier
	}
	query := fmt.Sprintf(`SELECT id FROM catalog_product WHERE pid = 0 AND language = '' AND %s = $1 ORDER BY id`, column)
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, id.Value); err != nil {
		return nil, err
	}
	return ids, nil
}

var statements = map[domain.UpdateTarget]string{
	domain.TargetTierPrice:          `UPDATE catalog_price_tier SET price = $1 WHERE id = $2`,
	domain.TargetProductName:        `UPDATE catalog_product SET name = $1 WHERE id = $2`,
	domain.TargetProductDescription: `UPDATE catalog_product SET description = $1 WHERE id = $2`,
}

// ApplyStatement runs a single-row update. It returns sql.ErrNoRows when the
// captured row no longer exists.
func (r *CatalogRepository) ApplyStatement(ctx context.Context, stmt domain.Statement) error {
	query, ok := statements[stmt.Target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedTarget, stmt.Target)
	}
	res, err := r.db.ExecContext(ctx, query, stmt.Value, stmt.RecordID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// rawRecords scans rows of a variable column set into ordered records.
func (r *CatalogRepository) rawRecords(ctx context.Context, query string, args ...any) ([]domain.RawRecord, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []domain.RawRecord
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		record := make(domain.RawRecord, len(columns))
		for i, name := range columns {
			record[i] = domain.RawField{Name: name, Value: renderColumn(values[i])}
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func renderColumn(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return ""
	case time.Time:
		return strconv.FormatInt(val.Unix(), 10)
	case sql.RawBytes:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

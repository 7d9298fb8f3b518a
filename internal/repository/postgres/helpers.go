package postgres

import (
	"database/sql"
	"database/sql/driver"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

func nullStringPtr(ptr *string) sql.NullString {
	if ptr == nil || *ptr == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *ptr, Valid: true}
}

func nullInt64Ptr(ptr *int64) sql.NullInt64 {
	if ptr == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: *ptr, Valid: true}
}

// valueOf resolves a JSON column value up front so drivers without a
// parameter checker receive plain strings.
func valueOf(v driver.Valuer) (any, error) {
	return v.Value()
}

func statusArgs(statuses []domain.ItemStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

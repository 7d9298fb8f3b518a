package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

type ItemStatus string

const (
	ItemStatusCreated   ItemStatus = "created"
	ItemStatusPreparing ItemStatus = "preparing"
	ItemStatusPrepared  ItemStatus = "prepared"
	ItemStatusAnalysing ItemStatus = "analysing"
	ItemStatusAnalysed  ItemStatus = "analysed"
	ItemStatusFailed    ItemStatus = "failed"

	// Singleton bookkeeping rows share the work-item table.
	ItemStatusSetup  ItemStatus = "setup"
	ItemStatusErrors ItemStatus = "errors"
)

// WorkStatuses lists every status a product work item can be in.
var WorkStatuses = []ItemStatus{
	ItemStatusCreated,
	ItemStatusPreparing,
	ItemStatusPrepared,
	ItemStatusAnalysing,
	ItemStatusAnalysed,
	ItemStatusFailed,
}

func ParseItemStatus(raw string) (ItemStatus, bool) {
	for _, s := range WorkStatuses {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// ImportItem is one row of the work-item table.
type ImportItem struct {
	ID        int64       `db:"id" json:"id"`
	Status    ItemStatus  `db:"status" json:"status"`
	ImportID  *string     `db:"import_id" json:"import_id,omitempty"`
	CatalogID *int64      `db:"catalog_id" json:"catalog_id,omitempty"`
	Data      string      `db:"data" json:"-"`
	Actions   ItemActions `db:"actions" json:"actions"`
	Tstamp    int64       `db:"tstamp" json:"tstamp"`
}

func (i ImportItem) Identifier() (Identifier, error) {
	if i.ImportID == nil {
		return Identifier{}, ErrInvalidIdentifier
	}
	return ParseIdentifier(*i.ImportID)
}

// StatusCounts holds the number of work items per status.
type StatusCounts map[ItemStatus]int

func (c StatusCounts) Total() int {
	n := 0
	for _, s := range WorkStatuses {
		n += c[s]
	}
	return n
}

func (c StatusCounts) Sum(statuses ...ItemStatus) int {
	n := 0
	for _, s := range statuses {
		n += c[s]
	}
	return n
}

type RunStatus string

const (
	RunStatusBusy  RunStatus = "busy"
	RunStatusReady RunStatus = "ready"
)

// Setup is the singleton progress record of the current run.
type Setup struct {
	RunID         uuid.UUID       `json:"run_id"`
	FileTimestamp int64           `json:"file_ts"`
	FileName      string          `json:"file_name,omitempty"`
	Status        RunStatus       `json:"status"`
	Stages        map[Stage]int64 `json:"stages,omitempty"`
	AnalysedAt    int64           `json:"analysed_at,omitempty"`
}

func (s *Setup) MarkStage(stage Stage, ts int64) {
	if s.Stages == nil {
		s.Stages = make(map[Stage]int64)
	}
	s.Stages[stage] = ts
}

func (s Setup) StageDone(stage Stage) bool {
	_, ok := s.Stages[stage]
	return ok
}

// IsReady reports whether the results belong to the staged file and are newer
// than the last catalog modification.
func (s Setup) IsReady(fileTS, catalogTS int64) bool {
	return s.Status == RunStatusReady && s.FileTimestamp == fileTS && catalogTS < s.AnalysedAt
}

func (s Setup) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *Setup) Scan(value any) error {
	return scanJSON(value, s, "setup record")
}

type ErrorCode string

const (
	ErrorEmptyPayload      ErrorCode = "empty-payload"
	ErrorMalformedFragment ErrorCode = "malformed-fragment"
	ErrorInvalidIdentifier ErrorCode = "invalid-identifier"
	ErrorAmbiguousMatch    ErrorCode = "ambiguous-match"
	ErrorMultipleImports   ErrorCode = "multiple-import-match"
)

type ErrorEntry struct {
	Code     ErrorCode `json:"code"`
	Messages []string  `json:"messages"`
	ItemIDs  []int64   `json:"item_ids,omitempty"`
}

// ErrorLog aggregates recoverable problems of a run, deduplicated by code.
type ErrorLog map[ErrorCode]*ErrorEntry

func (l ErrorLog) Add(code ErrorCode, message string, itemID int64) {
	entry, ok := l[code]
	if !ok {
		entry = &ErrorEntry{Code: code}
		l[code] = entry
	}
	if !containsString(entry.Messages, message) {
		entry.Messages = append(entry.Messages, message)
	}
	if itemID > 0 && !containsInt64(entry.ItemIDs, itemID) {
		entry.ItemIDs = append(entry.ItemIDs, itemID)
	}
}

// Sorted returns the entries ordered by code.
func (l ErrorLog) Sorted() []ErrorEntry {
	out := make([]ErrorEntry, 0, len(l))
	for _, e := range l {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (l ErrorLog) Value() (driver.Value, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *ErrorLog) Scan(value any) error {
	*l = ErrorLog{}
	return scanJSON(value, l, "error log")
}

func scanJSON(value any, dst any, what string) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("expected text for %s, got %T", what, value)
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsInt64(list []int64, n int64) bool {
	for _, item := range list {
		if item == n {
			return true
		}
	}
	return false
}

package domain

import "time"

type ExportCode string

const (
	ExportAbortBusy   ExportCode = "create-export-abort-busy"
	ExportReady       ExportCode = "create-export-ready"
	ExportSuccessful  ExportCode = "create-export-successful"
	ExportProgressing ExportCode = "create-export-progressing"
	ExportFailed      ExportCode = "create-export-failed"
)

type ExportStatus struct {
	Success   bool       `json:"success"`
	Code      ExportCode `json:"code"`
	Message   string     `json:"message,omitempty"`
	File      string     `json:"file,omitempty"`
	Timestamp int64      `json:"ts,omitempty"`
}

type ImportCheckCode string

const (
	ImportCheckReady   ImportCheckCode = "check-import-ready"
	ImportCheckMissing ImportCheckCode = "check-import-missing"
	ImportCheckFailed  ImportCheckCode = "check-import-failed"
)

// StagedImport describes the document waiting for analysis.
type StagedImport struct {
	Success   bool            `json:"success"`
	Code      ImportCheckCode `json:"code"`
	Name      string          `json:"file,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
	Message   string          `json:"message,omitempty"`
}

type ApplyResult struct {
	Success   bool              `json:"success"`
	ItemID    int64             `json:"item"`
	Index     int               `json:"index"`
	Action    *ClassifiedAction `json:"action,omitempty"`
	Remaining int               `json:"remaining"`
	Message   string            `json:"message,omitempty"`
}

// ApplyEvent is the audit record written for every attempted action.
type ApplyEvent struct {
	RunID     string       `json:"run_id,omitempty"`
	ItemID    int64        `json:"item_id"`
	Index     int          `json:"index"`
	Group     ActionGroup  `json:"group"`
	Target    UpdateTarget `json:"target"`
	RecordID  int64        `json:"record_id"`
	Value     string       `json:"value"`
	Status    ActionStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	AppliedBy string       `json:"applied_by,omitempty"`
	AppliedAt time.Time    `json:"applied_at"`
}

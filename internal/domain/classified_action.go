package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type ActionGroup string

const (
	ActionGroupPrice ActionGroup = "price"
	ActionGroupText  ActionGroup = "text"
)

func ParseActionGroup(raw string) (ActionGroup, bool) {
	switch ActionGroup(raw) {
	case ActionGroupPrice, ActionGroupText:
		return ActionGroup(raw), true
	}
	return "", false
}

type ActionStatus string

const (
	ActionStatusPrepared ActionStatus = "prepared"
	ActionStatusDone     ActionStatus = "done"
	ActionStatusFailed   ActionStatus = "failed"
)

// UpdateTarget selects one of the fixed single-column writes the catalog accepts.
type UpdateTarget string

const (
	TargetTierPrice          UpdateTarget = "tier.price"
	TargetProductName        UpdateTarget = "product.name"
	TargetProductDescription UpdateTarget = "product.description"
)

// Statement is a parameterized single-row update against a captured source id.
type Statement struct {
	Target   UpdateTarget `json:"target"`
	RecordID int64        `json:"record_id"`
	Value    string       `json:"value"`
}

type TextOp string

const (
	TextEqual  TextOp = "equal"
	TextInsert TextOp = "insert"
	TextDelete TextOp = "delete"
)

type TextSegment struct {
	Op   TextOp `json:"op"`
	Text string `json:"text"`
}

type ClassifiedAction struct {
	Group       ActionGroup   `json:"group"`
	Statement   Statement     `json:"statement"`
	Description string        `json:"description"`
	TextDiff    []TextSegment `json:"text_diff,omitempty"`
	Diff        DiffAction    `json:"diff"`
	Status      ActionStatus  `json:"status"`
	Error       string        `json:"error,omitempty"`
}

func (a ClassifiedAction) IsPending() bool {
	return a.Status == ActionStatusPrepared
}

type ItemActionKind string

const (
	ItemActionDiff             ItemActionKind = "diff"
	ItemActionImportEverything ItemActionKind = "import-everything"
	ItemActionConfirmDelete    ItemActionKind = "confirm-delete"
)

// ItemActions is the analysis result stored with a work item.
type ItemActions struct {
	Kind        ItemActionKind     `json:"kind,omitempty"`
	Supported   []ClassifiedAction `json:"supported,omitempty"`
	Unsupported []DiffAction       `json:"unsupported,omitempty"`
}

func (a ItemActions) IsZero() bool {
	return a.Kind == "" && len(a.Supported) == 0 && len(a.Unsupported) == 0
}

// NextPending returns the index of the first prepared action of the group, or -1.
func (a ItemActions) NextPending(group ActionGroup) int {
	for i, action := range a.Supported {
		if action.Group == group && action.IsPending() {
			return i
		}
	}
	return -1
}

func (a ItemActions) CountPending(group ActionGroup) int {
	n := 0
	for _, action := range a.Supported {
		if action.Group == group && action.IsPending() {
			n++
		}
	}
	return n
}

func (a ItemActions) Value() (driver.Value, error) {
	if a.IsZero() {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (a *ItemActions) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*a = ItemActions{}
		return nil
	case []byte:
		return a.unmarshal(v)
	case string:
		return a.unmarshal([]byte(v))
	default:
		return fmt.Errorf("expected text for item actions, got %T", value)
	}
}

func (a *ItemActions) unmarshal(data []byte) error {
	if len(data) == 0 {
		*a = ItemActions{}
		return nil
	}
	return json.Unmarshal(data, a)
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type DiffType string

const (
	DiffAdd           DiffType = "add"
	DiffUpdate        DiffType = "update"
	DiffRemove        DiffType = "remove"
	DiffAddVariant    DiffType = "add-variant"
	DiffRemoveVariant DiffType = "remove-variant"
)

// Step is one navigation hop inside a tree: a map key or a list index.
type Step struct {
	key     Key
	index   int
	isIndex bool
}

func KeyStep(k Key) Step { return Step{key: k} }

func NameStep(name string) Step { return Step{key: Key{Name: name}} }

func IndexStep(i int) Step { return Step{index: i, isIndex: true} }

func (s Step) IsIndex() bool { return s.isIndex }

func (s Step) Index() int { return s.index }

func (s Step) Key() Key { return s.key }

func (s Step) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key.String()
}

func (s Step) MarshalJSON() ([]byte, error) {
	if s.isIndex {
		return []byte(strconv.Itoa(s.index)), nil
	}
	return json.Marshal(s.key.String())
}

func (s *Step) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*s = KeyStep(ParseKey(raw))
		return nil
	}
	i, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("path step: %w", err)
	}
	*s = IndexStep(i)
	return nil
}

// Path is a root-to-node sequence of steps. With never aliases the receiver.
type Path []Step

func (p Path) With(s Step) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Last returns the final step, or a zero step for an empty path.
func (p Path) Last() Step {
	if len(p) == 0 {
		return Step{}
	}
	return p[len(p)-1]
}

// SourceIDs are the catalog row ids in scope at the point a diff was found.
// Zero means "not available".
type SourceIDs struct {
	Record      int64 `json:"record,omitempty"`
	Translation int64 `json:"translation,omitempty"`
	Price       int64 `json:"price,omitempty"`
	Tier        int64 `json:"tier,omitempty"`
}

func (s SourceIDs) IsZero() bool {
	return s == SourceIDs{}
}

type DiffAction struct {
	Type        DiffType   `json:"type"`
	Key         Key        `json:"key"`
	Path        Path       `json:"path"`
	CatalogPath Path       `json:"catalog_path,omitempty"`
	Old         *Value     `json:"old,omitempty"`
	New         *Value     `json:"new,omitempty"`
	SourceIDs   *SourceIDs `json:"source_ids,omitempty"`
}

// IDs returns the captured source ids or a zero value.
func (a DiffAction) IDs() SourceIDs {
	if a.SourceIDs == nil {
		return SourceIDs{}
	}
	return *a.SourceIDs
}

func ValuePtr(v Value) *Value {
	return &v
}

package reconcile

import (
	"fmt"
	"strings"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

// rule compiles a diff action into an applicable action, or reports false.
type rule func(domain.DiffAction) (domain.ClassifiedAction, bool)

var rules = []rule{
	tierPriceRule,
	productTextRule,
}

// Classify splits the diff of one item into actions that can be applied
// automatically and raw differences left for manual review.
func Classify(actions []domain.DiffAction) ([]domain.ClassifiedAction, []domain.DiffAction) {
	var (
		supported   []domain.ClassifiedAction
		unsupported []domain.DiffAction
	)
	for _, action := range actions {
		compiled, ok := classify(action)
		if !ok {
			unsupported = append(unsupported, action)
			continue
		}
		compiled.Diff = action
		compiled.Status = domain.ActionStatusPrepared
		supported = append(supported, compiled)
	}
	return supported, unsupported
}

func classify(action domain.DiffAction) (domain.ClassifiedAction, bool) {
	for _, r := range rules {
		if compiled, ok := r(action); ok {
			return compiled, true
		}
	}
	return domain.ClassifiedAction{}, false
}

// tierPriceRule: <record>.prices.<group>.price|min:N
func tierPriceRule(action domain.DiffAction) (domain.ClassifiedAction, bool) {
	if action.Type != domain.DiffUpdate || action.Key.Name != domain.KeyPrice || !scalarPair(action) {
		return domain.ClassifiedAction{}, false
	}
	qty, ok := action.Key.Attr(domain.AttrMin)
	if !ok {
		return domain.ClassifiedAction{}, false
	}
	tier := action.IDs().Tier
	if tier <= 0 {
		return domain.ClassifiedAction{}, false
	}
	record, rest, ok := recordOf(action.Path)
	if !ok || len(rest) != 3 || rest[0].Key().Name != domain.KeyPrices {
		return domain.ClassifiedAction{}, false
	}

	return domain.ClassifiedAction{
		Group: domain.ActionGroupPrice,
		Statement: domain.Statement{
			Target:   domain.TargetTierPrice,
			RecordID: tier,
			Value:    action.New.Text(),
		},
		Description: fmt.Sprintf("Price of %s, %s, from quantity %s: %s → %s",
			record, describePriceGroup(rest[1].Key()), qty, action.Old.Text(), action.New.Text()),
	}, true
}

// productTextRule: name or description of a record or of one of its translations.
func productTextRule(action domain.DiffAction) (domain.ClassifiedAction, bool) {
	if action.Type != domain.DiffUpdate || !scalarPair(action) {
		return domain.ClassifiedAction{}, false
	}
	var (
		target domain.UpdateTarget
		label  string
	)
	switch action.Key.Name {
	case domain.KeyName:
		target, label = domain.TargetProductName, "Name"
	case domain.KeyDescription:
		target, label = domain.TargetProductDescription, "Description"
	default:
		return domain.ClassifiedAction{}, false
	}

	record, rest, ok := recordOf(action.Path)
	if !ok {
		return domain.ClassifiedAction{}, false
	}
	ids := action.IDs()
	var (
		rowID int64
		where string
	)
	switch len(rest) {
	case 1:
		rowID, where = ids.Record, record
	case 3:
		lang, ok := rest[1].Key().Attr(domain.AttrLanguage)
		if rest[0].Key().Name != domain.KeyTranslations || rest[1].Key().Name != domain.KeyItem || !ok {
			return domain.ClassifiedAction{}, false
		}
		rowID, where = ids.Translation, fmt.Sprintf("%s (%s)", record, lang)
	default:
		return domain.ClassifiedAction{}, false
	}
	if rowID <= 0 {
		return domain.ClassifiedAction{}, false
	}

	return domain.ClassifiedAction{
		Group: domain.ActionGroupText,
		Statement: domain.Statement{
			Target:   target,
			RecordID: rowID,
			Value:    action.New.Text(),
		},
		Description: fmt.Sprintf("%s of %s", label, where),
		TextDiff:    WordDiff(action.Old.Text(), action.New.Text()),
	}, true
}

// recordOf splits a path into a readable record label and the steps below
// the record: main.<rest> or variants.<i>.<rest>.
func recordOf(path domain.Path) (string, domain.Path, bool) {
	if len(path) < 2 || path[0].IsIndex() {
		return "", nil, false
	}
	switch path[0].Key().Name {
	case domain.KeyMain:
		return "the product", path[1:], true
	case domain.KeyVariants:
		if len(path) < 3 || !path[1].IsIndex() {
			return "", nil, false
		}
		return fmt.Sprintf("variant #%d", path[1].Index()+1), path[2:], true
	default:
		return "", nil, false
	}
}

func describePriceGroup(k domain.Key) string {
	if k.Name == domain.KeyDefaultGroup {
		return "default price group"
	}
	var parts []string
	if v, ok := k.Attr(domain.AttrMemberGroup); ok {
		parts = append(parts, "member group "+v)
	}
	if v, ok := k.Attr(domain.AttrTaxClass); ok {
		parts = append(parts, "tax class "+v)
	}
	if len(parts) == 0 {
		return "price group " + k.String()
	}
	return strings.Join(parts, ", ")
}

func scalarPair(action domain.DiffAction) bool {
	return action.Old != nil && action.New != nil && action.Old.IsScalar() && action.New.IsScalar()
}

package pricing

import (
	"encoding/json"
	"sort"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/money"
)

// Adjustment is a signed change to the order total. Included adjustments are
// informational: their amount is already inside a price.
type Adjustment struct {
	Type           enums.AdjustmentType `json:"type"`
	Name           string               `json:"name"`
	Description    string               `json:"description,omitempty"`
	Amount         money.Money          `json:"amount"`
	Included       bool                 `json:"included"`
	LineItemID     *int64               `json:"line_item_id,omitempty"`
	SourceType     string               `json:"source_type"`
	SourceID       *int64               `json:"source_id,omitempty"`
	SourceSnapshot json.RawMessage      `json:"source_snapshot,omitempty"`
}

// IsLineLevel reports whether the adjustment targets a single line item.
func (a Adjustment) IsLineLevel() bool {
	return a.LineItemID != nil
}

var stageOrder = map[enums.AdjustmentType]int{
	enums.AdjustmentTypeDiscount: 0,
	enums.AdjustmentTypeShipping: 1,
	enums.AdjustmentTypeTax:      2,
}

// SortStable orders adjustments by pipeline stage and keeps the emission
// order within a stage, which the engines already make deterministic.
func SortStable(adjs []Adjustment) {
	sort.SliceStable(adjs, func(i, j int) bool {
		return stageOrder[adjs[i].Type] < stageOrder[adjs[j].Type]
	})
}

// Snapshot marshals a rule into an immutable JSON copy for audit.
func Snapshot(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

// ToModels converts adjustments for persistence, stamping sort indexes.
func ToModels(orderID int64, adjs []Adjustment) []models.OrderAdjustment {
	out := make([]models.OrderAdjustment, 0, len(adjs))
	for i, a := range adjs {
		out = append(out, models.OrderAdjustment{
			OrderID:        orderID,
			LineItemID:     a.LineItemID,
			Type:           a.Type,
			Name:           a.Name,
			Description:    a.Description,
			Amount:         a.Amount.Amount,
			Currency:       a.Amount.Currency,
			Included:       a.Included,
			SourceType:     a.SourceType,
			SourceID:       a.SourceID,
			SourceSnapshot: a.SourceSnapshot,
			SortIndex:      i,
		})
	}
	return out
}

// FromModel maps a persisted adjustment back.
func FromModel(m models.OrderAdjustment) Adjustment {
	return Adjustment{
		Type:           m.Type,
		Name:           m.Name,
		Description:    m.Description,
		Amount:         money.New(m.Amount, m.Currency),
		Included:       m.Included,
		LineItemID:     m.LineItemID,
		SourceType:     m.SourceType,
		SourceID:       m.SourceID,
		SourceSnapshot: m.SourceSnapshot,
	}
}

// Ref returns a pointer to a copy of id.
func Ref(id int64) *int64 {
	return &id
}

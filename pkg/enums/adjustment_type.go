package enums

import "fmt"

// AdjustmentType identifies which pipeline stage produced an order adjustment.
type AdjustmentType string

const (
	AdjustmentTypeDiscount AdjustmentType = "discount"
	AdjustmentTypeShipping AdjustmentType = "shipping"
	AdjustmentTypeTax      AdjustmentType = "tax"
)

var validAdjustmentTypes = []AdjustmentType{
	AdjustmentTypeDiscount,
	AdjustmentTypeShipping,
	AdjustmentTypeTax,
}

// String implements fmt.Stringer.
func (a AdjustmentType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AdjustmentType.
func (a AdjustmentType) IsValid() bool {
	for _, candidate := range validAdjustmentTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAdjustmentType converts raw input into a AdjustmentType.
func ParseAdjustmentType(value string) (AdjustmentType, error) {
	for _, candidate := range validAdjustmentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid adjustment type %q", value)
}

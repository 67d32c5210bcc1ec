package enums

import "fmt"

// SaleDiscountType describes how a catalog sale lowers a price.
type SaleDiscountType string

const (
	SaleDiscountTypePercent SaleDiscountType = "percent"
	SaleDiscountTypeFlat    SaleDiscountType = "flat"
)

var validSaleDiscountTypes = []SaleDiscountType{
	SaleDiscountTypePercent,
	SaleDiscountTypeFlat,
}

// String implements fmt.Stringer.
func (s SaleDiscountType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SaleDiscountType.
func (s SaleDiscountType) IsValid() bool {
	for _, candidate := range validSaleDiscountTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSaleDiscountType converts raw input into a SaleDiscountType.
func ParseSaleDiscountType(value string) (SaleDiscountType, error) {
	for _, candidate := range validSaleDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale discount type %q", value)
}

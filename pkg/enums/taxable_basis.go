package enums

import "fmt"

// TaxableBasis selects the amount a tax rate is applied to.
type TaxableBasis string

const (
	TaxableBasisPrice              TaxableBasis = "price"
	TaxableBasisShipping           TaxableBasis = "shipping"
	TaxableBasisPriceShipping      TaxableBasis = "price_shipping"
	TaxableBasisOrderTotalShipping TaxableBasis = "order_total_shipping"
	TaxableBasisOrderTotalPrice    TaxableBasis = "order_total_price"
)

var validTaxableBasises = []TaxableBasis{
	TaxableBasisPrice,
	TaxableBasisShipping,
	TaxableBasisPriceShipping,
	TaxableBasisOrderTotalShipping,
	TaxableBasisOrderTotalPrice,
}

// String implements fmt.Stringer.
func (t TaxableBasis) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TaxableBasis.
func (t TaxableBasis) IsValid() bool {
	for _, candidate := range validTaxableBasises {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTaxableBasis converts raw input into a TaxableBasis.
func ParseTaxableBasis(value string) (TaxableBasis, error) {
	for _, candidate := range validTaxableBasises {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid taxable basis %q", value)
}

// IsLineLevel reports whether the basis is evaluated per line item rather
// than once per order.
func (t TaxableBasis) IsLineLevel() bool {
	return t == TaxableBasisPrice
}

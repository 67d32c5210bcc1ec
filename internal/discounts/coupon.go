package discounts

import (
	"strings"

	"github.com/angelmondragon/commerce-core/internal/pricing"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
)

const (
	reasonNotFound      = "coupon not found"
	reasonNotStarted    = "coupon is not active yet"
	reasonExpired       = "coupon expired"
	reasonUsageReached  = "coupon usage limit reached"
	reasonNeedsCustomer = "coupon requires a signed-in customer"
	reasonNeedsEmail    = "coupon requires an email address"
	reasonGroup         = "coupon is not available for this customer"
	reasonNoItems       = "coupon does not apply to items in the cart"
	reasonMinimumTotal  = "coupon requires a minimum purchase"
	reasonMinimumQty    = "coupon requires more matching items"
	reasonMaximumQty    = "coupon allows fewer matching items"
)

// ValidateCoupon explains why a coupon code cannot be used on the order.
// It returns nil when the coupon would be applied.
func ValidateCoupon(code string, in Input, discounts []Discount) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}

	var found *Discount
	for i := range discounts {
		if discounts[i].MatchesCode(code) {
			found = &discounts[i]
			break
		}
	}
	if found == nil {
		return couponError(code, reasonNotFound)
	}

	in.CouponCode = code
	if reason := rejectReason(*found, in); reason != "" {
		return couponError(code, reason)
	}

	matched := matchingLines(*found, in.Lines)
	if len(matched) == 0 {
		return couponError(code, reasonNoItems)
	}
	itemSubtotal, err := pricing.ItemSubtotal(in.Currency, in.Lines)
	if err != nil {
		return err
	}
	if reason := thresholdReason(*found, itemSubtotal, matched); reason != "" {
		return couponError(code, reason)
	}
	return nil
}

func couponError(code, reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, reason).
		WithDetails(map[string]any{"coupon_code": code})
}

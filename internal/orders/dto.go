package orders

import "github.com/angelmondragon/commerce-core/pkg/types"

// LineItemInput adds a purchasable to an order.
type LineItemInput struct {
	PurchasableID int64
	Qty           int
	Options       map[string]any
	Note          string
}

// AddressesInput replaces the order addresses. Nil clears an address.
type AddressesInput struct {
	ShippingAddress *types.Address
	BillingAddress  *types.Address
	BusinessTaxID   *string
}

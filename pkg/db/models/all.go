package models

// All lists every persisted model, in dependency order, for schema
// bootstrapping on SQLite.
func All() []any {
	return []any{
		&Order{},
		&Purchasable{},
		&LineItem{},
		&OrderAdjustment{},
		&Discount{},
		&CustomerDiscountUse{},
		&EmailDiscountUse{},
		&Sale{},
		&ShippingZone{},
		&ShippingMethod{},
		&ShippingRule{},
		&ShippingRuleCategory{},
		&TaxZone{},
		&TaxCategory{},
		&TaxRate{},
		&Transaction{},
		&PaymentCurrency{},
	}
}

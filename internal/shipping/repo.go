package shipping

import (
	"context"

	"github.com/angelmondragon/commerce-core/internal/zones"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"gorm.io/gorm"
)

// Repository loads the shipping rule catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LoadCatalog(ctx context.Context) (Catalog, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LoadCatalog(ctx context.Context) (Catalog, error) {
	var zoneRows []models.ShippingZone
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&zoneRows).Error; err != nil {
		return Catalog{}, err
	}
	var methodRows []models.ShippingMethod
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&methodRows).Error; err != nil {
		return Catalog{}, err
	}
	var ruleRows []models.ShippingRule
	if err := r.db.WithContext(ctx).
		Preload("CategoryRules").
		Where("enabled = ?", true).
		Order("priority ASC").
		Order("id ASC").
		Find(&ruleRows).Error; err != nil {
		return Catalog{}, err
	}
	return CatalogFromModels(zoneRows, methodRows, ruleRows), nil
}

// CatalogFromModels maps persisted rows into engine types.
func CatalogFromModels(zoneRows []models.ShippingZone, methodRows []models.ShippingMethod, ruleRows []models.ShippingRule) Catalog {
	catalog := Catalog{
		Zones:   make([]zones.Zone, 0, len(zoneRows)),
		Methods: make([]Method, 0, len(methodRows)),
		Rules:   make([]Rule, 0, len(ruleRows)),
	}
	for _, z := range zoneRows {
		catalog.Zones = append(catalog.Zones, zones.FromShippingZone(z))
	}
	for _, m := range methodRows {
		catalog.Methods = append(catalog.Methods, Method{ID: m.ID, Name: m.Name, Handle: m.Handle, Enabled: m.Enabled})
	}
	for _, r := range ruleRows {
		rule := Rule{
			ID:             r.ID,
			MethodID:       r.MethodID,
			ZoneID:         r.ZoneID,
			Name:           r.Name,
			Description:    r.Description,
			Priority:       r.Priority,
			Enabled:        r.Enabled,
			MinQty:         r.MinQty,
			MaxQty:         r.MaxQty,
			MinTotal:       r.MinTotal,
			MaxTotal:       r.MaxTotal,
			MinWeight:      r.MinWeight,
			MaxWeight:      r.MaxWeight,
			BaseRate:       r.BaseRate,
			PerItemRate:    r.PerItemRate,
			WeightRate:     r.WeightRate,
			PercentageRate: r.PercentageRate,
			MinRate:        r.MinRate,
			MaxRate:        r.MaxRate,
		}
		for _, c := range r.CategoryRules {
			rule.Categories = append(rule.Categories, CategoryRule{
				CategoryID:     c.ShippingCategoryID,
				Condition:      c.Condition,
				PerItemRate:    c.PerItemRate,
				WeightRate:     c.WeightRate,
				PercentageRate: c.PercentageRate,
			})
		}
		catalog.Rules = append(catalog.Rules, rule)
	}
	return catalog
}

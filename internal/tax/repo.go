package tax

import (
	"context"

	"github.com/angelmondragon/commerce-core/internal/zones"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"gorm.io/gorm"
)

// Repository loads tax zones and rates.
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
	var zoneRows []models.TaxZone
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&zoneRows).Error; err != nil {
		return Catalog{}, err
	}
	var rateRows []models.TaxRate
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rateRows).Error; err != nil {
		return Catalog{}, err
	}
	return CatalogFromModels(zoneRows, rateRows), nil
}

func CatalogFromModels(zoneRows []models.TaxZone, rateRows []models.TaxRate) Catalog {
	catalog := Catalog{
		Zones: make([]zones.Zone, 0, len(zoneRows)),
		Rates: make([]Rate, 0, len(rateRows)),
	}
	for _, z := range zoneRows {
		catalog.Zones = append(catalog.Zones, zones.FromTaxZone(z))
	}
	for _, r := range rateRows {
		catalog.Rates = append(catalog.Rates, Rate{
			ID:         r.ID,
			ZoneID:     r.ZoneID,
			CategoryID: r.CategoryID,
			Name:       r.Name,
			Rate:       r.Rate,
			Include:    r.Include,
			IsVat:      r.IsVat,
			Exclusive:  r.Exclusive,
			Taxable:    r.Taxable,
		})
	}
	return catalog
}

// Package zones resolves which geographic zones contain a destination
// address. Shipping and tax both price by zone.
package zones

import (
	"sort"
	"strings"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

// Zone is a country-based or state-based region.
type Zone struct {
	ID           int64
	Name         string
	CountryBased bool
	Countries    []string
	States       []string
	Default      bool
}

// Contains reports whether the address falls inside the zone. Country-based
// zones compare ISO country codes; state-based zones compare "CC-STATE"
// pairs, falling back to a bare country entry.
func (z Zone) Contains(addr types.Address) bool {
	country := addr.CountryCode()
	if country == "" {
		return false
	}
	if z.CountryBased {
		return containsFold(z.Countries, country)
	}
	state := addr.StateCode()
	if state != "" && containsFold(z.States, country+"-"+state) {
		return true
	}
	return containsFold(z.States, country)
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

// Resolve returns the zones containing addr ordered by id. A nil address
// resolves to nothing.
func Resolve(all []Zone, addr *types.Address) []Zone {
	if addr == nil {
		return nil
	}
	var out []Zone
	for _, z := range all {
		if z.Contains(*addr) {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Defaults returns the zones flagged as default, ordered by id.
func Defaults(all []Zone) []Zone {
	var out []Zone
	for _, z := range all {
		if z.Default {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the zone ids as a set.
func IDs(zs []Zone) map[int64]struct{} {
	set := make(map[int64]struct{}, len(zs))
	for _, z := range zs {
		set[z.ID] = struct{}{}
	}
	return set
}

func FromShippingZone(m models.ShippingZone) Zone {
	return Zone{
		ID:           m.ID,
		Name:         m.Name,
		CountryBased: m.CountryBased,
		Countries:    []string(m.Countries),
		States:       []string(m.States),
	}
}

func FromTaxZone(m models.TaxZone) Zone {
	return Zone{
		ID:           m.ID,
		Name:         m.Name,
		CountryBased: m.CountryBased,
		Countries:    []string(m.Countries),
		States:       []string(m.States),
		Default:      m.IsDefault,
	}
}

package endpoint

import (
	"sort"
)

// catalogEntry describes a named product. An empty location means the
// caller must supply one.
type catalogEntry struct {
	category string
	subtype  string
	location string
	fixed    bool // location is fixed (or absent) and not taken from the caller
}

var catalog = map[string]catalogEntry{
	"adaptation.get_detail":           {category: "adaptation", subtype: "detail", fixed: true},
	"adaptation.get_summary":          {category: "adaptation", subtype: "summary"},
	"probability.get_depth":           {category: "probability", subtype: "depth", location: "property", fixed: true},
	"probability.get_chance":          {category: "probability", subtype: "chance", location: "property", fixed: true},
	"probability.get_count_summary":   {category: "probability", subtype: "count-summary", location: "property", fixed: true},
	"probability.get_cumulative":      {category: "probability", subtype: "cumulative", location: "property", fixed: true},
	"probability.get_count":           {category: "probability", subtype: "count"},
	"historic.get_event":              {category: "historic", subtype: "event", fixed: true},
	"historic.get_summary":            {category: "historic", subtype: "summary"},
	"location.get_detail":             {category: "location", subtype: "detail"},
	"location.get_summary":            {category: "location", subtype: "summary"},
	"fema.get_nfip":                   {category: "fema", subtype: "nfip"},
	"environmental.get_precipitation": {category: "environmental", subtype: "precipitation", location: "county", fixed: true},
	"aal.get_summary":                 {category: "economic/aal", subtype: "summary"},
	"avm.get_avm":                     {category: "economic", subtype: "avm", location: "property", fixed: true},
	"avm.get_provider":                {category: "economic/avm", subtype: "provider", fixed: true},
	"economic.get_property_nfip":      {category: "economic", subtype: "nfip", location: "property", fixed: true},
	"tile.get_probability_depth":      {category: CategoryTile, subtype: "probability", fixed: true},
	"tile.get_historic_event":         {category: CategoryTile, subtype: "historic", fixed: true},
}

// ProductNames lists every named product, sorted.
func ProductNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NeedsLocationType reports whether the named product takes a caller location type.
func NeedsLocationType(name string) bool {
	entry, ok := catalog[name]
	return ok && !entry.fixed
}

// Lookup resolves a product name such as "location.get_detail" into a
// Product. locationType is only used by products that need one. Tile
// options and extra parameters are left for the caller to fill in.
func Lookup(name, locationType string) (Product, error) {
	entry, ok := catalog[name]
	if !ok {
		return Product{}, invalidArgument("unknown product %q", name)
	}

	product := Product{
		Category:     entry.category,
		Subtype:      entry.subtype,
		LocationType: entry.location,
	}

	if !entry.fixed {
		if locationType == "" {
			return Product{}, invalidArgument("product %s requires a location type", name)
		}
		product.LocationType = locationType
	}

	if product.IsTile() {
		product.Tile = &TileOptions{}
	}

	return product, nil
}

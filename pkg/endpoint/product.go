package endpoint

import (
	"net/url"
	"slices"
)

// Location lookup types accepted by location-scoped products.
var LocationTypes = []string{"property", "neighborhood", "city", "zcta", "tract", "county", "cd", "state"}

// Tile option domains accepted by the probability depth tile endpoint.
var (
	TileYears         = []int{2020, 2035, 2050}
	TileReturnPeriods = []int{500, 100, 20, 5, 2}
)

// CategoryTile is the product category of every map tile endpoint.
const CategoryTile = "tile"

// TileOptions selects which tile layer to fetch.
// Probability depth tiles use Year and ReturnPeriod, historic event tiles use EventID.
type TileOptions struct {
	Year         int
	ReturnPeriod int
	EventID      int64
}

// Product describes one product/sub-product/location endpoint family.
type Product struct {
	// Category is the first path segment, e.g. "location" or "economic/avm".
	Category string

	// Subtype is the sub-product segment, e.g. "detail" or "provider".
	Subtype string

	// LocationType is the optional location segment, e.g. "property".
	LocationType string

	// Tile is required when Category is CategoryTile.
	Tile *TileOptions

	// Extra are caller-supplied query parameters added to every request.
	Extra url.Values
}

// IsTile reports whether the product returns binary tile images.
func (p Product) IsTile() bool {
	return p.Category == CategoryTile
}

// Name returns "category/subtype[/location]" for logs and metric labels.
func (p Product) Name() string {
	name := p.Category + "/" + p.Subtype
	if p.LocationType != "" {
		name += "/" + p.LocationType
	}
	return name
}

type productRef struct {
	category string
	subtype  string
}

// sentinelFields maps a product to the field an error sentinel carries
// the original key under. Anything not listed uses "fsid".
var sentinelFields = map[productRef]string{
	{"adaptation", "detail"}:      "adaptationId",
	{"historic", "event"}:         "eventId",
	{"economic/avm", "provider"}:  "providerID",
	{CategoryTile, "probability"}: "coordinate",
	{CategoryTile, "historic"}:    "coordinate",
}

// integerKeyProducts only accept numeric identifiers.
var integerKeyProducts = map[productRef]bool{
	{"adaptation", "detail"}: true,
	{"historic", "event"}:    true,
}

// SentinelField returns the identifying field name used for error sentinels.
func (p Product) SentinelField() string {
	if field, ok := sentinelFields[productRef{p.Category, p.Subtype}]; ok {
		return field
	}
	if p.IsTile() {
		return "coordinate"
	}
	return "fsid"
}

// RequiresIntegerKeys reports whether every key must be a numeric identifier.
func (p Product) RequiresIntegerKeys() bool {
	return integerKeyProducts[productRef{p.Category, p.Subtype}]
}

// Validate checks the descriptor itself, independent of any key.
func (p Product) Validate() error {
	if p.Category == "" || p.Subtype == "" {
		return invalidArgument("product category and subtype are required (got %q/%q)", p.Category, p.Subtype)
	}

	if p.LocationType != "" && !slices.Contains(LocationTypes, p.LocationType) {
		return invalidArgument("location type %q is not one of %v", p.LocationType, LocationTypes)
	}

	if !p.IsTile() {
		if p.Tile != nil {
			return invalidArgument("tile options given for non-tile product %s", p.Name())
		}
		return nil
	}

	if p.Tile == nil {
		return invalidArgument("tile product %s requires tile options", p.Name())
	}

	switch p.Subtype {
	case "probability":
		if !slices.Contains(TileYears, p.Tile.Year) {
			return invalidArgument("year %d is not one of %v", p.Tile.Year, TileYears)
		}
		if !slices.Contains(TileReturnPeriods, p.Tile.ReturnPeriod) {
			return invalidArgument("return period %d is not one of %v", p.Tile.ReturnPeriod, TileReturnPeriods)
		}
	case "historic":
		if p.Tile.EventID <= 0 {
			return invalidArgument("historic event tile requires a positive event id (got %d)", p.Tile.EventID)
		}
	default:
		return invalidArgument("unknown tile product %q", p.Subtype)
	}

	return nil
}

// Package endpoint turns search keys and product descriptors into fully
// formed request descriptors for the First Street Foundation API.
//
// Planning is pure: no state and no I/O. All batch-level validation happens
// here, before any request is sent, and every failure wraps ErrInvalidArgument.
package endpoint

import (
	"net/url"
	"strconv"
	"strings"
)

// Defaults for the public API.
const (
	DefaultBaseURL = "https://api.firststreet.org"
	DefaultVersion = "v1"
)

// MaxTileZoom is the highest zoom level served by the tile endpoints.
const MaxTileZoom = 18

// Descriptor is an immutable, ready-to-send request for one key.
type Descriptor struct {
	URL     string
	Key     Key
	Product Product
}

// Category returns the product category of the request.
func (d Descriptor) Category() string { return d.Product.Category }

// Subtype returns the product subtype of the request.
func (d Descriptor) Subtype() string { return d.Product.Subtype }

// Planner builds request URLs against one API host and version.
type Planner struct {
	BaseURL string
	Version string
}

// NewPlanner returns a planner, falling back to the public host and v1.
func NewPlanner(baseURL, version string) Planner {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if version == "" {
		version = DefaultVersion
	}
	return Planner{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Version: strings.Trim(version, "/"),
	}
}

// Plan validates the whole batch and returns one descriptor per key,
// in input order. Any validation error aborts the batch.
func (p Planner) Plan(keys []Key, product Product) ([]Descriptor, error) {
	if len(keys) == 0 {
		return nil, invalidArgument("no search items provided")
	}

	if err := product.Validate(); err != nil {
		return nil, err
	}

	descriptors := make([]Descriptor, len(keys))
	for i, key := range keys {
		d, err := p.Descriptor(key, product)
		if err != nil {
			return nil, err
		}
		descriptors[i] = d
	}

	return descriptors, nil
}

// Descriptor builds the request for a single key. Product validation is
// the caller's job; Plan does it once per batch.
func (p Planner) Descriptor(key Key, product Product) (Descriptor, error) {
	if err := checkKey(key, product); err != nil {
		return Descriptor{}, err
	}

	segments := []string{p.BaseURL, p.Version, product.Category, product.Subtype}
	query := url.Values{}

	if product.IsTile() {
		segments = append(segments, tileSegments(key, product)...)
	} else {
		if product.LocationType != "" {
			segments = append(segments, product.LocationType)
		}

		switch key.Kind {
		case KindID:
			segments = append(segments, strconv.FormatInt(key.ID, 10))
		case KindCoordinate:
			query.Set("lat", formatFloat(key.Lat))
			query.Set("lng", formatFloat(key.Lng))
		case KindAddress:
			query.Set("address", key.Address)
		}
	}

	for name, values := range product.Extra {
		for _, v := range values {
			query.Add(name, v)
		}
	}

	u := strings.Join(segments, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return Descriptor{URL: u, Key: key, Product: product}, nil
}

func checkKey(key Key, product Product) error {
	if product.IsTile() {
		if key.Kind != KindTile {
			return invalidArgument("tile products need (zoom, x, y) coordinates, got %s key %s", key.Kind, key)
		}
		if key.Zoom <= 0 || key.Zoom > MaxTileZoom {
			return invalidArgument("tile zoom must be between 1 and %d, got %s", MaxTileZoom, key)
		}
		return nil
	}

	switch key.Kind {
	case KindID:
		return nil
	case KindCoordinate, KindAddress:
		if product.RequiresIntegerKeys() {
			return invalidArgument("%s only accepts integer ids, got %s key %s", product.Name(), key.Kind, key)
		}
		if key.Kind == KindAddress && strings.TrimSpace(key.Address) == "" {
			return invalidArgument("empty address")
		}
		return nil
	case KindTile:
		return invalidArgument("tile coordinate %s given for non-tile product %s", key, product.Name())
	default:
		return invalidArgument("key has no kind")
	}
}

func tileSegments(key Key, product Product) []string {
	var layer []string
	switch product.Subtype {
	case "probability":
		layer = []string{"depth", strconv.Itoa(product.Tile.Year), strconv.Itoa(product.Tile.ReturnPeriod)}
	case "historic":
		layer = []string{"event", strconv.FormatInt(product.Tile.EventID, 10)}
	}

	return append(layer,
		strconv.Itoa(key.Zoom),
		strconv.Itoa(key.X),
		strconv.Itoa(key.Y)+".png",
	)
}

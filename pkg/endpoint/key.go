package endpoint

import (
	"fmt"
	"strconv"
)

// KeyKind identifies which variant a Key holds.
type KeyKind int

const (
	// KindID is a numeric identifier (FSID, event id, adaptation id, provider id).
	KindID KeyKind = iota + 1

	// KindCoordinate is a latitude/longitude pair.
	KindCoordinate

	// KindAddress is a free-text address.
	KindAddress

	// KindTile is a (zoom, x, y) map tile coordinate.
	KindTile
)

// String returns the kind name used in logs and error messages.
func (k KeyKind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindCoordinate:
		return "coordinate"
	case KindAddress:
		return "address"
	case KindTile:
		return "tile"
	default:
		return "unknown"
	}
}

// Key is one search item submitted for lookup.
// Exactly one group of fields is meaningful, selected by Kind.
type Key struct {
	Kind KeyKind

	ID int64

	Lat float64
	Lng float64

	Address string

	Zoom int
	X    int
	Y    int
}

// ID returns a numeric identifier key.
func ID(id int64) Key {
	return Key{Kind: KindID, ID: id}
}

// Coordinate returns a latitude/longitude key.
func Coordinate(lat, lng float64) Key {
	return Key{Kind: KindCoordinate, Lat: lat, Lng: lng}
}

// Address returns a free-text address key.
func Address(address string) Key {
	return Key{Kind: KindAddress, Address: address}
}

// Tile returns a map tile key.
func Tile(zoom, x, y int) Key {
	return Key{Kind: KindTile, Zoom: zoom, X: x, Y: y}
}

// IDs is a convenience for building a batch of numeric keys.
func IDs(ids ...int64) []Key {
	keys := make([]Key, len(ids))
	for i, id := range ids {
		keys[i] = ID(id)
	}
	return keys
}

// Value returns the key in the shape echoed back inside results and
// error sentinels: int64 for ids, [2]float64 for coordinates, string for
// addresses and [3]int for tiles.
func (k Key) Value() any {
	switch k.Kind {
	case KindID:
		return k.ID
	case KindCoordinate:
		return [2]float64{k.Lat, k.Lng}
	case KindAddress:
		return k.Address
	case KindTile:
		return [3]int{k.Zoom, k.X, k.Y}
	default:
		return nil
	}
}

// String formats the key the way it would be typed on the command line.
func (k Key) String() string {
	switch k.Kind {
	case KindID:
		return strconv.FormatInt(k.ID, 10)
	case KindCoordinate:
		return fmt.Sprintf("(%s, %s)", formatFloat(k.Lat), formatFloat(k.Lng))
	case KindAddress:
		return k.Address
	case KindTile:
		return fmt.Sprintf("(%d, %d, %d)", k.Zoom, k.X, k.Y)
	default:
		return "<invalid key>"
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

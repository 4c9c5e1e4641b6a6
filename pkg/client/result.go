package client

import (
	"encoding/json"

	"github.com/Sternrassler/fsf-api-client/pkg/endpoint"
)

// Result is the outcome for one key: a JSON payload, a tile image, or a
// Sentinel standing in for a failed lookup.
type Result struct {
	Key endpoint.Key

	// Payload is the decoded product body. Body keeps the raw bytes for
	// typed decoding by the caller.
	Payload map[string]any
	Body    json.RawMessage

	// Image is the PNG of a tile result.
	Image []byte
	Tile  bool

	Sentinel *Sentinel
}

// Sentinel identifies a failed key by the field its product would carry it
// under (fsid, adaptationId, eventId, providerID or coordinate).
type Sentinel struct {
	Field string
	Value any
	// Message is the server's error message. Empty for transport failures.
	Message string
}

// Valid reports whether the result holds a payload rather than a sentinel.
func (r Result) Valid() bool {
	return r.Sentinel == nil
}

// Map returns the result in the flat form downstream consumers expect:
// the payload itself, {coordinate, image} for tiles, or the sentinel
// fields with validId=false.
func (r Result) Map() map[string]any {
	switch {
	case r.Sentinel != nil:
		m := r.Sentinel.Map()
		if r.Tile {
			m["image"] = nil
		}
		return m
	case r.Tile:
		return map[string]any{"coordinate": r.Key.Value(), "image": r.Image}
	default:
		return r.Payload
	}
}

// MarshalJSON writes product payloads verbatim and everything else via Map.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Sentinel == nil && !r.Tile && len(r.Body) > 0 {
		return r.Body, nil
	}
	return json.Marshal(r.Map())
}

// Map returns the sentinel as a product-shaped record.
func (s *Sentinel) Map() map[string]any {
	m := map[string]any{
		s.Field:   s.Value,
		"validId": false,
	}
	if s.Message != "" {
		m["error"] = s.Message
	}
	return m
}

func sentinelResult(d endpoint.Descriptor, message string) Result {
	return Result{
		Key:  d.Key,
		Tile: d.Product.IsTile(),
		Sentinel: &Sentinel{
			Field:   d.Product.SentinelField(),
			Value:   d.Key.Value(),
			Message: message,
		},
	}
}

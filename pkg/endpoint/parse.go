package endpoint

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// ParseKey interprets one search item as typed on the command line or in
// a batch file: an integer is an id, "(lat, lng)" a coordinate,
// "(z, x, y)" a tile, and anything else an address.
func ParseKey(s string) Key {
	s = strings.TrimSpace(s)

	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ID(id)
	}

	inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "("), ")"))
	if inner == s {
		inner = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "["), "]"))
	}
	parts := strings.Split(inner, ",")

	switch len(parts) {
	case 3:
		var tile [3]int
		ok := true
		for i, part := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				ok = false
				break
			}
			tile[i] = v
		}
		if ok {
			return Tile(tile[0], tile[1], tile[2])
		}
	case 2:
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLat == nil && errLng == nil {
			return Coordinate(lat, lng)
		}
	}

	return Address(s)
}

// ParseKeyList splits a semicolon-delimited list of search items.
func ParseKeyList(s string) []Key {
	var keys []Key
	for _, item := range strings.Split(s, ";") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		keys = append(keys, ParseKey(item))
	}
	return keys
}

// ReadKeys reads newline-delimited search items, skipping blank lines.
func ReadKeys(r io.Reader) ([]Key, error) {
	var keys []Key

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		keys = append(keys, ParseKey(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read search items: %w", err)
	}

	return keys, nil
}

// ParseExtraParams parses "name:value;name2:value2" (or name=value) into
// query parameters. Bracketed lists such as "depths:[11,12,30]" become
// comma-separated values.
func ParseExtraParams(s string) (url.Values, error) {
	params := url.Values{}
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		idx := strings.IndexAny(pair, ":=")
		if idx <= 0 {
			return nil, invalidArgument("extra parameter %q is not name:value", pair)
		}

		name := strings.TrimSpace(pair[:idx])
		value := strings.TrimSpace(pair[idx+1:])
		if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
			items := strings.Split(value[1:len(value)-1], ",")
			for i := range items {
				items[i] = strings.TrimSpace(items[i])
			}
			value = strings.Join(items, ",")
		}

		params.Add(name, value)
	}
	return params, nil
}

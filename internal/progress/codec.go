package progress

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/terra-clan/studyhub/internal/models"
)

// encodeBadges writes the current ordered-array form
func encodeBadges(badges []models.Badge) ([]byte, error) {
	if badges == nil {
		badges = []models.Badge{}
	}
	return json.Marshal(badges)
}

// decodeBadges accepts the ordered array form and the older
// {"name": "description"} object form. Object key order is kept.
func decodeBadges(data []byte) ([]models.Badge, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var badges []models.Badge
		if err := json.Unmarshal(trimmed, &badges); err != nil {
			return nil, fmt.Errorf("decode badges: %w", err)
		}
		return badges, nil
	case '{':
		return decodeLegacyBadges(trimmed)
	default:
		return nil, fmt.Errorf("decode badges: unexpected value %q", trimmed[:1])
	}
}

func decodeLegacyBadges(data []byte) ([]models.Badge, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode legacy badges: %w", err)
	}

	var badges []models.Badge
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode legacy badges: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode legacy badges: non-string key %v", tok)
		}
		var desc string
		if err := dec.Decode(&desc); err != nil {
			return nil, fmt.Errorf("decode legacy badge %q: %w", name, err)
		}
		badges = append(badges, models.Badge{Name: name, Description: desc})
	}
	return badges, nil
}

func encodeCounters(c models.Counters) ([]byte, error) {
	return json.Marshal(c)
}

func decodeCounters(data []byte) (models.Counters, error) {
	var c models.Counters
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode counters: %w", err)
	}
	if c == nil {
		c = models.Counters{}
	}
	for k, v := range c {
		if v < 0 {
			c[k] = 0
		}
	}
	return c, nil
}

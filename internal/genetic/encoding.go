package genetic

import (
	"encoding/json"
	"fmt"
	"strconv"
)

func (s Segment) MarshalText() ([]byte, error)  { return []byte(s.String()), nil }
func (g Genome) MarshalText() ([]byte, error)   { return []byte(g.String()), nil }
func (e Entropy) MarshalText() ([]byte, error)  { return []byte(e.String()), nil }
func (m Markers) MarshalText() ([]byte, error)  { return []byte(m.String()), nil }
func (s *Segment) UnmarshalText(b []byte) error { return decodeFixed(s[:], string(b)) }
func (g *Genome) UnmarshalText(b []byte) error  { return decodeFixed(g[:], string(b)) }
func (e *Entropy) UnmarshalText(b []byte) error { return decodeFixed(e[:], string(b)) }
func (m *Markers) UnmarshalText(b []byte) error { return decodeFixed(m[:], string(b)) }

// MarshalJSON encodes the strategy by name.
func (bt BreedType) MarshalJSON() ([]byte, error) {
	return json.Marshal(bt.String())
}

// UnmarshalJSON accepts either a name or a bare ordinal.
func (bt *BreedType) UnmarshalJSON(b []byte) error {
	s, err := unquoteEnum(b)
	if err != nil {
		return err
	}
	v, err := ParseBreedType(s)
	if err != nil {
		return err
	}
	*bt = v
	return nil
}

// MarshalJSON encodes the tier by name.
func (r Rarity) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts either a name or a bare ordinal.
func (r *Rarity) UnmarshalJSON(b []byte) error {
	s, err := unquoteEnum(b)
	if err != nil {
		return err
	}
	v, err := ParseRarity(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

func unquoteEnum(b []byte) (string, error) {
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return "", fmt.Errorf("decode enum: %w", err)
		}
		return s, nil
	}
	return string(b), nil
}

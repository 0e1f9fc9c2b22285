package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Steps is the ordered list of instructions for a challenge.
// Sources disagree on encoding: some send a JSON array, some a string that
// itself holds a JSON array, and older rows hold plain text. All of them
// decode into the same slice here so nothing downstream re-parses.
type Steps []string

// ParseSteps normalizes a raw stored or transmitted value
func ParseSteps(raw string) (Steps, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return Steps{}, nil
	}

	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, fmt.Errorf("failed to decode steps array: %w", err)
		}
		return cleanSteps(list), nil
	}

	if strings.HasPrefix(raw, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(raw), &inner); err != nil {
			return nil, fmt.Errorf("failed to decode steps string: %w", err)
		}
		return ParseSteps(inner)
	}

	// Plain text, one step per line
	return cleanSteps(strings.Split(raw, "\n")), nil
}

func cleanSteps(list []string) Steps {
	steps := make(Steps, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

// UnmarshalJSON accepts either an array or a JSON-encoded string
func (s *Steps) UnmarshalJSON(data []byte) error {
	parsed, err := ParseSteps(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalJSON always emits an array
func (s Steps) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// UnmarshalYAML accepts a sequence or a scalar holding JSON or text
func (s *Steps) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = cleanSteps(list)
		return nil
	case yaml.ScalarNode:
		parsed, err := ParseSteps(node.Value)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	default:
		return fmt.Errorf("steps: unsupported yaml node kind %d", node.Kind)
	}
}

// Value stores steps as a JSON array
func (s Steps) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads steps from a text or blob column
func (s *Steps) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = Steps{}
		return nil
	case string:
		parsed, err := ParseSteps(v)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	case []byte:
		parsed, err := ParseSteps(string(v))
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	default:
		return fmt.Errorf("steps: cannot scan %T", src)
	}
}

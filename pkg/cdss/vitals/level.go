package vitals

import (
	"encoding/json"
	"fmt"
)

// Level is the three-tier severity used by every classifier.
// The numeric order is the clinical order: Normal < Warning < Critical.
type Level int

const (
	Normal Level = iota
	Warning
	Critical
)

var levelNames = [...]string{"normal", "warning", "critical"}

func (l Level) String() string {
	if l < Normal || l > Critical {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Worse returns the more severe of l and other.
func (l Level) Worse(other Level) Level {
	if other > l {
		return other
	}
	return l
}

// ParseLevel converts "normal", "warning" or "critical" into a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return Normal, fmt.Errorf("unknown level %q", s)
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Status is the classification of a single measurement.
type Status struct {
	Level Level  `json:"level"`
	Label string `json:"label"`
}

// IsAlert reports whether the status should raise a badge.
func (s *Status) IsAlert() bool {
	return s != nil && s.Level != Normal
}

package model

import (
	"fmt"
	"strings"
)

// Level is a notification severity. Higher values are more severe.
type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
	Critical
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// MarshalText encodes the level by name so JSON output reads "warning"
// instead of 2.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel converts a level name ("debug", "info", "warning"/"warn",
// "error", "critical") to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug, nil
	case "info":
		return Info, nil
	case "warning", "warn":
		return Warning, nil
	case "error":
		return Error, nil
	case "critical":
		return Critical, nil
	}
	return Debug, fmt.Errorf("unknown level %q", s)
}

// ClampLevel maps an integer rank onto the Debug..Critical range.
func ClampLevel(rank int) Level {
	if rank < int(Debug) {
		return Debug
	}
	if rank > int(Critical) {
		return Critical
	}
	return Level(rank)
}

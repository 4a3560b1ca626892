package keychain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Status is a platform result code. Zero means success; every other value
// is an opaque failure.
type Status int32

const (
	StatusSuccess Status = 0
	// StatusItemNotFound is errSecItemNotFound on macOS.
	StatusItemNotFound Status = -25300
	// StatusUnknown stands in for a failure whose error carries no code.
	StatusUnknown Status = math.MinInt32
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusItemNotFound:
		return "item_not_found"
	case StatusUnknown:
		return "unknown"
	}
	return strconv.Itoa(int(s))
}

// ParseStatus accepts a decimal code or one of the names "success" and
// "item_not_found".
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "success":
		return StatusSuccess, nil
	case "item_not_found", "not_found":
		return StatusItemNotFound, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid status %q: must be an integer, \"success\" or \"item_not_found\"", s)
	}
	return Status(n), nil
}

// UnmarshalYAML lets config and scenario files spell statuses either way.
func (s *Status) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// StatusError is a failed operation carrying its result code.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	if e.Status == StatusItemNotFound {
		return fmt.Sprintf("keychain status %d: %s", int32(e.Status), ErrNotFound)
	}
	return fmt.Sprintf("keychain status %d", int32(e.Status))
}

// Is reports ErrNotFound for item-not-found codes.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Status == StatusItemNotFound
}

// StatusOf returns the status carried by err. A nil error is StatusSuccess;
// an error with no StatusError in its chain yields ok == false.
func StatusOf(err error) (s Status, ok bool) {
	if err == nil {
		return StatusSuccess, true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

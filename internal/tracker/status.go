package tracker

import (
	"fmt"
	"strings"
)

// AuthorizationStatus is the location permission reported by the device.
type AuthorizationStatus int

// Permission values.
const (
	NotDetermined AuthorizationStatus = iota
	Restricted
	Denied
	AuthorizedAlways
	AuthorizedWhenInUse
)

var statusNames = map[AuthorizationStatus]string{
	NotDetermined:       "not_determined",
	Restricted:          "restricted",
	Denied:              "denied",
	AuthorizedAlways:    "authorized_always",
	AuthorizedWhenInUse: "authorized_when_in_use",
}

func (s AuthorizationStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Authorized reports whether the status allows location updates.
func (s AuthorizationStatus) Authorized() bool {
	return s == AuthorizedWhenInUse || s == AuthorizedAlways
}

// ParseAuthorizationStatus parses a status name as produced by String.
func ParseAuthorizationStatus(name string) (AuthorizationStatus, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return NotDetermined, fmt.Errorf("unknown authorization status %q", name)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AuthorizationStatus) UnmarshalText(text []byte) error {
	v, err := ParseAuthorizationStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s AuthorizationStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

package types

import (
	"encoding/json"
	"fmt"
)

// Status is the delivery state of a message. The numeric value is the rank
// used for compare-and-update in the store, so the order of the constants
// must not change.
type Status int

const (
	StatusSent Status = iota
	StatusDelivered
	StatusSeen
)

var statusNames = [...]string{
	StatusSent:      "sent",
	StatusDelivered: "delivered",
	StatusSeen:      "seen",
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) Valid() bool {
	return s >= StatusSent && s <= StatusSeen
}

// After reports whether s is strictly later than other.
func (s Status) After(other Status) bool {
	return s > other
}

func ParseStatus(v string) (Status, error) {
	for i, name := range statusNames {
		if name == v {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown status %q", ErrValidation, v)
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal status: invalid value %d", int(s))
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	parsed, err := ParseStatus(v)
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}

package models

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ResourceID is a globally unique, immutable identifier for a resource, combining the
// resource's kind with a random UUID so that ids are self-describing in logs (e.g. "build:3b1e...").
type ResourceID struct {
	kind ResourceKind
	id   uuid.UUID
}

// NewResourceID generates a new random ResourceID of the given kind.
func NewResourceID(kind ResourceKind) ResourceID {
	return ResourceID{kind: kind, id: uuid.New()}
}

// ParseResourceID parses a ResourceID from its string form "<kind>:<uuid>".
func ParseResourceID(str string) (ResourceID, error) {
	parts := strings.SplitN(str, ":", 2)
	if len(parts) != 2 {
		return ResourceID{}, fmt.Errorf("error parsing resource id %q: expected format '<kind>:<uuid>'", str)
	}
	parsed, err := uuid.Parse(parts[1])
	if err != nil {
		return ResourceID{}, fmt.Errorf("error parsing resource id %q: %w", str, err)
	}
	return ResourceID{kind: ResourceKind(parts[0]), id: parsed}, nil
}

func (r ResourceID) Kind() ResourceKind {
	return r.kind
}

// uuidString returns the bare UUID component with no kind prefix.
func (r ResourceID) uuidString() string {
	return r.id.String()
}

func (r ResourceID) String() string {
	if !r.Valid() {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.kind, r.id.String())
}

// Valid returns true if this ResourceID has been populated with a kind and an id.
func (r ResourceID) Valid() bool {
	return r.kind != "" && r.id != uuid.Nil
}

func (r ResourceID) Equal(that ResourceID) bool {
	return r.kind == that.kind && r.id == that.id
}

func (r *ResourceID) Scan(src interface{}) error {
	if src == nil {
		*r = ResourceID{}
		return nil
	}
	str, ok := src.(string)
	if !ok {
		return fmt.Errorf("error expected string for resource id: %#v", src)
	}
	if str == "" {
		*r = ResourceID{}
		return nil
	}
	parsed, err := ParseResourceID(str)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r ResourceID) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, nil
	}
	return r.String(), nil
}

func (r ResourceID) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", r.String())), nil
}

func (r *ResourceID) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	if str == "" {
		*r = ResourceID{}
		return nil
	}
	parsed, err := ParseResourceID(str)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalText/UnmarshalText let a ResourceID (and types embedding it, such as PipelineID) be
// used directly as a JSON object key, which the Parent-Builds Ledger relies on (§3).
func (r ResourceID) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *ResourceID) UnmarshalText(text []byte) error {
	str := string(text)
	if str == "" {
		*r = ResourceID{}
		return nil
	}
	parsed, err := ParseResourceID(str)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

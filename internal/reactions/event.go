// Package reactions implements the notification aggregation engine: it
// normalises reaction create/destroy events, computes the current sibling
// set for a reactable, and upserts a single rolled-up notification row per
// (recipient, notifiable, action) key.
package reactions

import (
	"fmt"
	"strconv"

	"github.com/ovationhq/ovation/internal/models"
)

// Type identifies the closed set of entities a reaction can attach to.
type Type string

const (
	TypeArticle Type = "Article"
	TypeComment Type = "Comment"
)

// Valid reports whether the type is one of the supported discriminators.
func (t Type) Valid() bool {
	switch t {
	case TypeArticle, TypeComment:
		return true
	}
	return false
}

// Status records whether the event describes a reaction that still exists
// or one that has just been removed.
type Status string

const (
	StatusPersisted Status = "persisted"
	StatusDestroyed Status = "destroyed"
)

// DataError reports malformed or unsupported input to the normaliser. The
// message names the offending field and value so unexpected polymorphic
// types introduced elsewhere in the system are diagnosable from logs.
type DataError struct {
	Field string
	Value string
}

func (e *DataError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("reaction data: missing %s", e.Field)
	}
	return fmt.Sprintf("reaction data: invalid %s %q", e.Field, e.Value)
}

// Event is the normalised, immutable form of a reaction create/destroy
// occurrence. Construct via Coerce or FromReaction.
type Event struct {
	ReactableID         uint
	ReactableType       Type
	ReactableUserID     *uint
	ReactableSubforemID *uint
	Status              Status
}

// Validate checks the invariants Coerce enforces, for events assembled by
// hand.
func (e Event) Validate() error {
	if e.ReactableID == 0 {
		return &DataError{Field: "reactable_id"}
	}
	if e.ReactableType == "" {
		return &DataError{Field: "reactable_type"}
	}
	if !e.ReactableType.Valid() {
		return &DataError{Field: "reactable_type", Value: string(e.ReactableType)}
	}
	return nil
}

// ToMap serialises the event for transport across a process or queue
// boundary. Coerce accepts the result and reconstructs an attribute-equal
// event, including after a JSON round trip.
func (e Event) ToMap() map[string]any {
	m := map[string]any{
		"reactable_id":          e.ReactableID,
		"reactable_type":        string(e.ReactableType),
		"reactable_user_id":     nil,
		"reactable_subforem_id": nil,
		"status":                string(e.Status),
	}
	if e.ReactableUserID != nil {
		m["reactable_user_id"] = *e.ReactableUserID
	}
	if e.ReactableSubforemID != nil {
		m["reactable_subforem_id"] = *e.ReactableSubforemID
	}
	return m
}

// Reactable describes a loaded entity reactions can attach to. Implemented
// by *models.Article and *models.Comment.
type Reactable interface {
	ReactableID() uint
	ReactableTypeName() string
	ReactableOwnerID() *uint
	ReactableOrganizationID() *uint
	ReactableSubforemID() *uint
}

// FromReaction builds an Event from a live reaction row and its loaded
// reactable. The reactable may be nil when it has already been deleted; the
// event then carries no owner or subforem and downstream sibling
// computation treats the set as empty.
func FromReaction(r *models.Reaction, reactable Reactable, destroyed bool) (Event, error) {
	if r == nil {
		return Event{}, &DataError{Field: "reaction"}
	}

	event := Event{
		ReactableID:   r.ReactableID,
		ReactableType: Type(r.ReactableType),
		Status:        StatusPersisted,
	}
	if destroyed {
		event.Status = StatusDestroyed
	}
	if reactable != nil {
		event.ReactableID = reactable.ReactableID()
		event.ReactableType = Type(reactable.ReactableTypeName())
		event.ReactableUserID = reactable.ReactableOwnerID()
		event.ReactableSubforemID = reactable.ReactableSubforemID()
	}

	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Coerce normalises loosely-typed input into an Event. Accepted inputs:
//
//   - Event / *Event: passed through unchanged after validation
//   - map[string]any keyed by "reactable_id", "reactable_type",
//     "reactable_user_id", "reactable_subforem_id" and optionally "status";
//     numeric values may arrive as any integer type, float64 (JSON
//     decoding) or a numeric string
//
// Anything else fails with a *DataError naming the rejected input.
func Coerce(input any) (Event, error) {
	switch v := input.(type) {
	case Event:
		if err := v.Validate(); err != nil {
			return Event{}, err
		}
		return v, nil
	case *Event:
		if v == nil {
			return Event{}, &DataError{Field: "event"}
		}
		if err := v.Validate(); err != nil {
			return Event{}, err
		}
		return *v, nil
	case map[string]any:
		return coerceMap(v)
	default:
		return Event{}, &DataError{Field: "input", Value: fmt.Sprintf("%T", input)}
	}
}

func coerceMap(m map[string]any) (Event, error) {
	id, err := requiredUint(m, "reactable_id")
	if err != nil {
		return Event{}, err
	}

	rawType, _ := m["reactable_type"].(string)
	event := Event{
		ReactableID:   id,
		ReactableType: Type(rawType),
		Status:        StatusPersisted,
	}

	if event.ReactableUserID, err = optionalUint(m, "reactable_user_id"); err != nil {
		return Event{}, err
	}
	if event.ReactableSubforemID, err = optionalUint(m, "reactable_subforem_id"); err != nil {
		return Event{}, err
	}

	if raw, ok := m["status"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return Event{}, &DataError{Field: "status", Value: fmt.Sprintf("%v", raw)}
		}
		switch Status(s) {
		case StatusPersisted, StatusDestroyed:
			event.Status = Status(s)
		case "":
			// tolerated; defaults to persisted
		default:
			return Event{}, &DataError{Field: "status", Value: s}
		}
	}

	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}

func requiredUint(m map[string]any, key string) (uint, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return 0, &DataError{Field: key}
	}
	value, err := toUint(raw)
	if err != nil {
		return 0, &DataError{Field: key, Value: fmt.Sprintf("%v", raw)}
	}
	return value, nil
}

func optionalUint(m map[string]any, key string) (*uint, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	value, err := toUint(raw)
	if err != nil {
		return nil, &DataError{Field: key, Value: fmt.Sprintf("%v", raw)}
	}
	return &value, nil
}

func toUint(raw any) (uint, error) {
	switch v := raw.(type) {
	case uint:
		return v, nil
	case uint32:
		return uint(v), nil
	case uint64:
		return uint(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		return uint(v), nil
	case int32:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		return uint(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		return uint(v), nil
	case float64:
		if v < 0 || v != float64(uint(v)) {
			return 0, fmt.Errorf("non-integral value %v", v)
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", raw)
	}
}

package ir

import (
	"fmt"
	"maps"
)

// ActionID identifies an action within the action id-space.
type ActionID uint32

// TriggerID identifies a trigger within the trigger id-space.
type TriggerID uint32

// ApplicationID identifies an application within the application id-space.
type ApplicationID uint32

// AnyApplication scopes an entry to every application (global binding).
const AnyApplication ApplicationID = 0

// ReservedIDs is the highest id held back for built-in objects.
// Fresh ids are allocated above it.
const ReservedIDs = 0xff

// IsGlobal reports whether the id is the "any application" sentinel.
func (id ApplicationID) IsGlobal() bool { return id == AnyApplication }

func (id ActionID) String() string      { return fmt.Sprintf("action:%d", uint32(id)) }
func (id TriggerID) String() string     { return fmt.Sprintf("trigger:%d", uint32(id)) }
func (id ApplicationID) String() string { return fmt.Sprintf("application:%d", uint32(id)) }

// Space names one of the three id-spaces.
type Space string

const (
	SpaceActions      Space = "actions"
	SpaceTriggers     Space = "triggers"
	SpaceApplications Space = "applications"
)

// ValidSpaces defines the allowed id-spaces.
var ValidSpaces = map[Space]bool{
	SpaceActions:      true,
	SpaceTriggers:     true,
	SpaceApplications: true,
}

// Entry binds one trigger to one action, optionally scoped to an application.
//
// Overwrite allows the entry to replace a different entry already bound to
// the same trigger.
type Entry struct {
	Action      ActionID      `json:"action" cbor:"action" yaml:"action"`
	Trigger     TriggerID     `json:"trigger" cbor:"trigger" yaml:"trigger"`
	Application ApplicationID `json:"application" cbor:"application" yaml:"application"`
	Overwrite   bool          `json:"overwrite,omitempty" cbor:"overwrite,omitempty" yaml:"overwrite,omitempty"`
}

// NewEntry builds an entry with overwrite disabled.
func NewEntry(action ActionID, trigger TriggerID, application ApplicationID) Entry {
	return Entry{Action: action, Trigger: trigger, Application: application}
}

// WithOverwrite returns a copy of e with the overwrite flag set to flag.
func (e Entry) WithOverwrite(flag bool) Entry {
	e.Overwrite = flag
	return e
}

// IsGlobal reports whether the entry applies to every application.
func (e Entry) IsGlobal() bool { return e.Application.IsGlobal() }

func (e Entry) String() string {
	return fmt.Sprintf("{action=%d trigger=%d application=%d overwrite=%t}",
		e.Action, e.Trigger, e.Application, e.Overwrite)
}

// Object is a domain object stored in one of the identified object tables.
//
// The store does not interpret objects. Kind names the plugin type (for
// example "text" or "application"); Attributes hold plugin-defined settings.
type Object struct {
	Kind       string            `json:"kind" cbor:"kind" yaml:"kind"`
	Name       string            `json:"name" cbor:"name" yaml:"name"`
	Attributes map[string]string `json:"attributes,omitempty" cbor:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Clone returns a deep copy of o.
func (o Object) Clone() Object {
	if o.Attributes != nil {
		o.Attributes = maps.Clone(o.Attributes)
	}
	return o
}

// Equal reports whether two objects carry the same content.
func (o Object) Equal(other Object) bool {
	if o.Kind != other.Kind || o.Name != other.Name {
		return false
	}
	if len(o.Attributes) != len(other.Attributes) {
		return false
	}
	return maps.Equal(o.Attributes, other.Attributes)
}

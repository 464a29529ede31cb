package activity

import (
	"strings"
	"time"
)

const (
	// VerbAttrSet is emitted when a write-once attribute is set.
	VerbAttrSet = "lazyconf.attr.set"
	// VerbAttrReset is emitted when an attribute is redefined.
	VerbAttrReset = "lazyconf.attr.reset"
	// VerbStateImported is emitted when partial state is imported.
	VerbStateImported = "lazyconf.state.imported"

	objectTypeAttr    = "lazyconf.attr"
	objectTypeMapping = "lazyconf.mapping"
)

// AttrEventInput describes the fields shared by attribute lifecycle events.
type AttrEventInput struct {
	ActorID    string
	TenantID   string
	Channel    string
	Shape      string
	Key        string
	Keys       []string
	OldValue   any
	NewValue   any
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildAttrSetEvent describes a successful SetOnce.
func BuildAttrSetEvent(input AttrEventInput) Event {
	return buildAttrEvent(VerbAttrSet, objectTypeAttr, input)
}

// BuildAttrResetEvent describes a Reset.
func BuildAttrResetEvent(input AttrEventInput) Event {
	return buildAttrEvent(VerbAttrReset, objectTypeAttr, input)
}

// BuildStateImportedEvent describes an ImportState covering input.Keys.
func BuildStateImportedEvent(input AttrEventInput) Event {
	return buildAttrEvent(VerbStateImported, objectTypeMapping, input)
}

func buildAttrEvent(verb, objectType string, input AttrEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Shape != "" {
		metadata = ensureMetadata(metadata)
		metadata["shape"] = input.Shape
	}
	if input.Key != "" {
		metadata = ensureMetadata(metadata)
		metadata["key"] = input.Key
	}
	if len(input.Keys) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["keys"] = append([]string{}, input.Keys...)
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}

	objectID := strings.TrimSpace(input.Key)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Shape)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

package activity

import (
	"testing"
)

func TestBuildAttrSetEventIncludesKeyAndValues(t *testing.T) {
	meta := map[string]any{"custom": "value"}
	event := BuildAttrSetEvent(AttrEventInput{
		ActorID:  " actor ",
		Shape:    "Mapping",
		Key:      "region",
		NewValue: "eu-west-1",
		Metadata: meta,
	})

	if event.Verb != VerbAttrSet {
		t.Fatalf("expected verb %s got %s", VerbAttrSet, event.Verb)
	}
	if event.ObjectType != "lazyconf.attr" || event.ObjectID != "region" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ActorID != "actor" {
		t.Fatalf("expected trimmed actor, got %q", event.ActorID)
	}
	if event.Metadata["key"] != "region" || event.Metadata["shape"] != "Mapping" {
		t.Fatalf("expected key/shape metadata, got %+v", event.Metadata)
	}
	if event.Metadata["new_value"] != "eu-west-1" {
		t.Fatalf("expected new_value, got %v", event.Metadata["new_value"])
	}
	if _, ok := event.Metadata["old_value"]; ok {
		t.Fatalf("old_value must be omitted when nil")
	}
	if event.Metadata["custom"] != "value" {
		t.Fatalf("expected custom metadata preserved")
	}
	event.Metadata["custom"] = "changed"
	if meta["custom"] != "value" {
		t.Fatalf("input metadata must not be mutated")
	}
}

func TestBuildStateImportedEventFallsBackToShape(t *testing.T) {
	keys := []string{"a", "b"}
	event := BuildStateImportedEvent(AttrEventInput{Shape: "Root", Keys: keys})

	if event.Verb != VerbStateImported || event.ObjectType != "lazyconf.mapping" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.ObjectID != "Root" {
		t.Fatalf("expected shape as object id, got %q", event.ObjectID)
	}
	got, ok := event.Metadata["keys"].([]string)
	if !ok || len(got) != 2 {
		t.Fatalf("expected keys metadata, got %v", event.Metadata["keys"])
	}
	got[0] = "changed"
	if keys[0] != "a" {
		t.Fatalf("keys must be copied")
	}
}

func TestBuildAttrResetEventDefaultsObjectID(t *testing.T) {
	event := BuildAttrResetEvent(AttrEventInput{})
	if event.ObjectID != "lazyconf.attr" {
		t.Fatalf("expected object type fallback, got %q", event.ObjectID)
	}
	if event.Metadata != nil {
		t.Fatalf("expected nil metadata, got %+v", event.Metadata)
	}
}

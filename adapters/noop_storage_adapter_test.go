package adapters

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

func TestNoOpStorageAdapter_SaveQueue(t *testing.T) {
	adapter := NewNoOpStorageAdapter()

	events := []Event{NewEvent("test_event", "user", ldvalue.ValueMap{})}

	if err := adapter.SaveQueue(events); err != nil {
		t.Errorf("SaveQueue should always return nil, got: %v", err)
	}
}

func TestNoOpStorageAdapter_LoadQueue(t *testing.T) {
	adapter := NewNoOpStorageAdapter()

	events, err := adapter.LoadQueue()
	if err != nil {
		t.Errorf("LoadQueue should return nil error, got: %v", err)
	}
	if events == nil {
		t.Error("LoadQueue should return empty slice, not nil")
	}
	if len(events) != 0 {
		t.Errorf("LoadQueue should return empty slice, got %d events", len(events))
	}
}

func TestNoOpStorageAdapter_Flags(t *testing.T) {
	adapter := NewNoOpStorageAdapter()

	if err := adapter.SaveFlags(ldvalue.ValueMapBuild().Set("a", ldvalue.Bool(true)).Build()); err != nil {
		t.Errorf("SaveFlags should always return nil, got: %v", err)
	}
	flags, err := adapter.LoadFlags()
	if err != nil {
		t.Errorf("LoadFlags should return nil error, got: %v", err)
	}
	if flags.Count() != 0 {
		t.Errorf("LoadFlags should return empty mapping, got %d flags", flags.Count())
	}
}

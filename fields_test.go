package ripple

import (
	"testing"
	"time"
)

func TestStringKeys(t *testing.T) {
	if KeyState.Field("healthy").Key().Name() != "state" {
		t.Error("expected key 'state'")
	}
	if KeyOldState.Field("loading").Key().Name() != "old_state" {
		t.Error("expected key 'old_state'")
	}
	if KeyNewState.Field("healthy").Key().Name() != "new_state" {
		t.Error("expected key 'new_state'")
	}
	if KeyError.Field("boom").Key().Name() != "error" {
		t.Error("expected key 'error'")
	}
	if KeyGroup.Field("name,surname").Key().Name() != "group" {
		t.Error("expected key 'group'")
	}
	if KeyReason.Field("unchanged").Key().Name() != "reason" {
		t.Error("expected key 'reason'")
	}
	if KeyMode.Field("immediate").Key().Name() != "mode" {
		t.Error("expected key 'mode'")
	}
}

func TestIntKeys(t *testing.T) {
	if KeyGroups.Field(2).Key().Name() != "groups" {
		t.Error("expected key 'groups'")
	}
	if KeyHandlers.Field(3).Key().Name() != "handlers" {
		t.Error("expected key 'handlers'")
	}
	if KeyValidators.Field(1).Key().Name() != "validators" {
		t.Error("expected key 'validators'")
	}
	if KeyFields.Field(4).Key().Name() != "fields" {
		t.Error("expected key 'fields'")
	}
	if KeyChanged.Field(1).Key().Name() != "changed" {
		t.Error("expected key 'changed'")
	}
}

func TestDurationKeys(t *testing.T) {
	if KeyDebounce.Field(100*time.Millisecond).Key().Name() != "debounce" {
		t.Error("expected key 'debounce'")
	}
	if KeyDuration.Field(time.Second).Key().Name() != "duration" {
		t.Error("expected key 'duration'")
	}
}

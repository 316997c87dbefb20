package rotation

import (
	"testing"

	"linkguard/internal/kit"
)

func TestNewSettingsDefaults(t *testing.T) {
	s := NewSettings(Defaults{})
	snap := s.Snapshot()

	if snap.IntervalMinutes != DefaultIntervalMinutes {
		t.Errorf("interval = %d, want %d", snap.IntervalMinutes, DefaultIntervalMinutes)
	}
	if snap.MemberLimit != DefaultMemberLimit {
		t.Errorf("limit = %d, want %d", snap.MemberLimit, DefaultMemberLimit)
	}
	if snap.Template != DefaultTemplate {
		t.Errorf("template = %q, want %q", snap.Template, DefaultTemplate)
	}
	if snap.Mode != ModeReplace {
		t.Errorf("mode = %q, want %q", snap.Mode, ModeReplace)
	}
	if snap.Configured() {
		t.Error("empty settings must not count as configured")
	}
}

func TestSettingsValidation(t *testing.T) {
	s := NewSettings(Defaults{})
	if err := s.SetInterval(0); err == nil {
		t.Error("interval 0 must be rejected")
	}
	if err := s.SetMemberLimit(0); err == nil {
		t.Error("limit 0 must be rejected")
	}
	if err := s.SetTemplate("   "); err == nil {
		t.Error("blank template must be rejected")
	}
	if err := s.SetInterval(30); err != nil {
		t.Errorf("SetInterval(30): %v", err)
	}
	if got := s.Snapshot().IntervalMinutes; got != 30 {
		t.Errorf("interval = %d, want 30", got)
	}
}

func TestToggleMode(t *testing.T) {
	s := NewSettings(Defaults{})
	if got := s.ToggleMode(); got != ModeEdit {
		t.Fatalf("first toggle = %q, want edit", got)
	}
	if got := s.ToggleMode(); got != ModeReplace {
		t.Fatalf("second toggle = %q, want replace", got)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := NewSettings(Defaults{Target: "@t", Sources: []Source{{ID: "@a"}}})
	snap := s.Snapshot()
	snap.Sources[0].ID = "@mutated"

	if s.Snapshot().Sources[0].ID != "@a" {
		t.Fatal("snapshot must not share backing storage with settings")
	}
}

func TestLastMessageLifecycle(t *testing.T) {
	s := NewSettings(Defaults{})
	if _, ok := s.LastMessage(); ok {
		t.Fatal("fresh settings must have no last message")
	}
	ref := kit.MessageRef{ChatID: 5, MessageID: 77}
	s.SetLastMessage(ref)
	if got, ok := s.LastMessage(); !ok || got != ref {
		t.Fatalf("got %+v (present=%v)", got, ok)
	}
	s.ClearLastMessage()
	if _, ok := s.LastMessage(); ok {
		t.Fatal("clear must remove the handle")
	}
}

func TestTargetFor(t *testing.T) {
	if got := TargetFor("-1001234"); got.ChatID != -1001234 || got.Username != "" {
		t.Errorf("numeric id: %+v", got)
	}
	if got := TargetFor("@chan"); got.Username != "@chan" || got.ChatID != 0 {
		t.Errorf("username: %+v", got)
	}
}

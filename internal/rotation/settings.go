// Package rotation implements the invite-link regeneration cycle: settings,
// link generation, message rendering, and reconciling the announcement
// against the previously published message.
package rotation

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"linkguard/internal/kit"
)

type UpdateMode string

const (
	ModeEdit    UpdateMode = "edit"
	ModeReplace UpdateMode = "replace"
)

// Source is one chat invite links are generated for. Alias, when set, is the
// display label used in the announcement instead of the raw identifier.
type Source struct {
	ID    string
	Alias string
}

const (
	DefaultTemplate        = "<b>Secure Access</b>: {invite_link}"
	DefaultIntervalMinutes = 5
	DefaultMemberLimit     = 1
)

// Defaults seeds a fresh Settings. Zero fields fall back to the package
// defaults above.
type Defaults struct {
	Target          string
	Sources         []Source
	IntervalMinutes int
	MemberLimit     int
	Template        string
	Mode            UpdateMode
}

// Snapshot is a point-in-time read of the settings, safe to use without
// holding the lock.
type Snapshot struct {
	Sources         []Source
	Target          string
	IntervalMinutes int
	MemberLimit     int
	Template        string
	Mode            UpdateMode

	LastMessage    kit.MessageRef
	HasLastMessage bool
	ActiveJobID    string
}

func (s Snapshot) Configured() bool {
	return len(s.Sources) > 0 && s.Target != ""
}

// Settings is the single mutable configuration record for the rotation
// cycle. It lives in memory only; restarting the process resets it to the
// seeded defaults.
type Settings struct {
	mu sync.Mutex

	sources  []Source
	target   string
	interval int // minutes
	limit    int
	template string
	mode     UpdateMode

	lastMsg    kit.MessageRef
	hasLastMsg bool
	jobID      string
}

func NewSettings(d Defaults) *Settings {
	s := &Settings{
		target:   d.Target,
		sources:  append([]Source(nil), d.Sources...),
		interval: d.IntervalMinutes,
		limit:    d.MemberLimit,
		template: d.Template,
		mode:     d.Mode,
	}
	if s.interval < 1 {
		s.interval = DefaultIntervalMinutes
	}
	if s.limit < 1 {
		s.limit = DefaultMemberLimit
	}
	if s.template == "" {
		s.template = DefaultTemplate
	}
	if s.mode != ModeEdit {
		s.mode = ModeReplace
	}
	return s
}

func (s *Settings) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Sources:         append([]Source(nil), s.sources...),
		Target:          s.target,
		IntervalMinutes: s.interval,
		MemberLimit:     s.limit,
		Template:        s.template,
		Mode:            s.mode,
		LastMessage:     s.lastMsg,
		HasLastMessage:  s.hasLastMsg,
		ActiveJobID:     s.jobID,
	}
}

// SetChannels replaces the target channel and the full source list in one
// step. Identifiers must already be validated by the caller.
func (s *Settings) SetChannels(target string, sources []Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
	s.sources = append([]Source(nil), sources...)
}

func (s *Settings) SetInterval(minutes int) error {
	if minutes < 1 {
		return fmt.Errorf("interval must be at least 1 minute, got %d", minutes)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = minutes
	return nil
}

func (s *Settings) SetMemberLimit(limit int) error {
	if limit < 1 {
		return fmt.Errorf("member limit must be at least 1, got %d", limit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
	return nil
}

func (s *Settings) SetTemplate(template string) error {
	if strings.TrimSpace(template) == "" {
		return fmt.Errorf("template must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.template = template
	return nil
}

// ToggleMode flips between edit and replace and returns the new mode.
func (s *Settings) ToggleMode() UpdateMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeReplace {
		s.mode = ModeEdit
	} else {
		s.mode = ModeReplace
	}
	return s.mode
}

func (s *Settings) LastMessage() (kit.MessageRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMsg, s.hasLastMsg
}

func (s *Settings) SetLastMessage(ref kit.MessageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMsg = ref
	s.hasLastMsg = true
}

func (s *Settings) ClearLastMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMsg = kit.MessageRef{}
	s.hasLastMsg = false
}

func (s *Settings) ActiveJobID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobID
}

func (s *Settings) SetActiveJobID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobID = id
}

// TargetFor converts a stored channel identifier into an adapter target.
// Numeric identifiers (including -100 supergroup IDs) become chat IDs,
// everything else is treated as a public @username.
func TargetFor(identifier string) kit.ChatTarget {
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return kit.ChatTarget{ChatID: id}
	}
	return kit.ChatTarget{Username: identifier}
}

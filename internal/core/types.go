package core

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Rotation  RotationConfig  `json:"rotation"`

	Plugins map[string]PluginConfigRaw `json:"plugins"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat ID (as string) receiving the Telegram log sink.
	GroupLog string `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}
type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type SchedulerConfig struct {
	Workers int `json:"workers"`
	// DefaultTimeout is a Go duration string. "0s" disables the global default.
	DefaultTimeout string `json:"default_timeout"`
	HistorySize    int    `json:"history_size"`
	Timezone       string `json:"timezone,omitempty"`
}

type StorageConfig struct {
	// Driver: "file" (jsonl), "sqlite" (requires the sqlite build tag),
	// or "none"/empty to disable.
	Driver string `json:"driver"`
	Path   string `json:"path"`
	// BusyTimeout is a Go duration string; sqlite only.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// RotationConfig seeds the in-memory rotation settings at startup. Runtime
// mutations via operator commands are never written back here.
type RotationConfig struct {
	Template        string               `json:"template,omitempty"`
	IntervalMinutes int                  `json:"interval_minutes,omitempty"`
	MemberLimit     int                  `json:"member_limit,omitempty"`
	UpdateMode      string               `json:"update_mode,omitempty"` // "edit" or "replace"
	TargetChannel   string               `json:"target_channel,omitempty"`
	Sources         []RotationSourceSeed `json:"sources,omitempty"`
	// CallTimeout bounds each platform call inside a cycle (Go duration string).
	CallTimeout string `json:"call_timeout,omitempty"`
}

type RotationSourceSeed struct {
	ID    string `json:"id"`
	Alias string `json:"alias,omitempty"`
}

type PluginConfigRaw struct {
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON disallows unknown fields so removed legacy keys are caught
// early during config reload.
func (p *PluginConfigRaw) UnmarshalJSON(b []byte) error {
	type tmp struct {
		Enabled bool            `json:"enabled"`
		Config  json.RawMessage `json:"config,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var t tmp
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*p = PluginConfigRaw{Enabled: t.Enabled, Config: t.Config}
	return nil
}

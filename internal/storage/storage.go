// Package storage persists an audit trail of operator actions and rotation
// cycle outcomes. Rotation configuration itself is never stored: it lives
// in process memory only and resets on restart.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"linkguard/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free jsonl backend
//   - "sqlite": SQLite database file (requires the sqlite build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records an operator action or a rotation cycle outcome.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At      time.Time `json:"at"`
	ActorID int64     `json:"actor_id,omitempty"` // 0 for scheduler-triggered cycles
	Action  string    `json:"action"`             // e.g. "set_channels", "cycle"
	Target  string    `json:"target,omitempty"`   // target channel identifier
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
	TookMS  int64     `json:"took_ms,omitempty"`
	Meta    string    `json:"meta,omitempty"` // free-form, e.g. "links=2/3"
}

// Store is the minimal persistence API used by the engine and commands.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// Package notify delivers operator alerts through the bot adapter.
package notify

import (
	"context"
	"errors"
	"time"

	"linkguard/internal/kit"
	"linkguard/pkg/logx"
)

type Config struct {
	// DefaultTarget receives notifications whose Target is zero.
	DefaultTarget kit.ChatTarget
	SendTimeout   time.Duration
}

type Service struct {
	cfg     Config
	adapter kit.Adapter
	log     logx.Logger
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Service{cfg: cfg, adapter: adapter, log: log}
}

func (s *Service) Notify(ctx context.Context, n kit.Notification) error {
	target := n.Target
	if target.IsZero() {
		target = s.cfg.DefaultTarget
	}
	if target.IsZero() {
		return errors.New("notify: no target configured")
	}

	text := prefixFor(n.Priority) + n.Text
	opt := n.Options
	if opt == nil {
		opt = &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	if _, err := s.adapter.SendText(sendCtx, target, text, opt); err != nil {
		s.log.Warn("notification send failed", logx.Int64("chat", target.ChatID), logx.Err(err))
		return err
	}
	return nil
}

func prefixFor(p kit.Priority) string {
	switch p {
	case kit.PriorityCritical:
		return "🚨 "
	case kit.PriorityWarning:
		return "⚠️ "
	case kit.PriorityInfo:
		return "ℹ️ "
	default:
		return ""
	}
}

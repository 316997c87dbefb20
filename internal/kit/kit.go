// Package kit defines the chat-platform capability surface consumed by the
// rest of the bot. It is intentionally dependency-free: adapters implement
// it, everything else imports only kit.
package kit

import (
	"context"
	"time"
)

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int
	FromID       int64
	FromUsername string
	Text         string
}

// ChatTarget addresses a chat either by numeric ID or, when ChatID is zero,
// by public @username. Source chats and the target channel may be configured
// either way.
type ChatTarget struct {
	ChatID   int64
	Username string
	ThreadID int
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 && t.Username == "" }

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

type Priority int

const (
	PriorityNone Priority = iota
	PriorityInfo
	PriorityWarning
	PriorityCritical
)

type Notification struct {
	Target   ChatTarget
	Text     string
	Priority Priority
	Options  *SendOptions
}

type BotCommand struct {
	Command     string
	Description string
}

// Adapter is the platform client. All calls are blocking network operations;
// callers bound them with a context deadline. Errors carry no structure
// beyond failed/succeeded.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	DeleteMessage(ctx context.Context, ref MessageRef) error

	// CreateInviteLink requests a fresh invite link for chat, expiring at
	// expireAt and capped at memberLimit joins.
	CreateInviteLink(ctx context.Context, chat ChatTarget, expireAt time.Time, memberLimit int) (string, error)

	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}

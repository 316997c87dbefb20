package rotation

import (
	"context"
	"errors"
	"time"

	"linkguard/internal/kit"
)

// fakeAdapter implements kit.Adapter with per-call hooks and counters.
type fakeAdapter struct {
	sendErr   error
	editErr   error
	deleteErr error
	inviteFn  func(chat kit.ChatTarget) (string, error)

	sends   int
	edits   int
	deletes int
	invites int

	lastSentText string
	nextMsgID    int
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.sends++
	if f.sendErr != nil {
		return kit.MessageRef{}, f.sendErr
	}
	f.lastSentText = text
	f.nextMsgID++
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.nextMsgID}, nil
}

func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	f.edits++
	return f.editErr
}

func (f *fakeAdapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error {
	f.deletes++
	return f.deleteErr
}

func (f *fakeAdapter) CreateInviteLink(ctx context.Context, chat kit.ChatTarget, expireAt time.Time, memberLimit int) (string, error) {
	f.invites++
	if f.inviteFn != nil {
		return f.inviteFn(chat)
	}
	return "https://t.me/+generated", nil
}

func (f *fakeAdapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	return nil
}

var errPlatform = errors.New("platform says no")

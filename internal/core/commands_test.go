package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"linkguard/internal/kit"
	"linkguard/pkg/logx"
)

type stubAdapter struct {
	sent []string
}

func (a *stubAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (a *stubAdapter) Stop(ctx context.Context) error                         { return nil }

func (a *stubAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.sent = append(a.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(a.sent)}, nil
}

func (a *stubAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}
func (a *stubAdapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error { return nil }
func (a *stubAdapter) CreateInviteLink(ctx context.Context, chat kit.ChatTarget, expireAt time.Time, memberLimit int) (string, error) {
	return "", nil
}
func (a *stubAdapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	return nil
}

func newTestManager(t *testing.T, owners []int64) (*CommandManager, *stubAdapter) {
	t.Helper()
	path := writeConfig(t, "config.json", `{"telegram":{"token":"t"},"logging":{},"scheduler":{},"rotation":{},"plugins":{}}`)
	cfgm := NewConfigManager(path)
	if _, err := cfgm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ad := &stubAdapter{}
	return NewCommandManager(logx.Nop(), ad, cfgm, &Services{}, owners), ad
}

// route sends one message through routeMessage and runs whatever landed on
// the job queue.
func route(t *testing.T, m *CommandManager, fromID int64, text string) {
	t.Helper()
	m.routeMessage(context.Background(), kit.Update{
		Kind:    kit.UpdateMessage,
		Message: &kit.Message{ChatID: 7, FromID: fromID, Text: text},
	})
	for {
		select {
		case job := <-m.jobs:
			if job != nil {
				job()
			}
		default:
			return
		}
	}
}

func TestRouteFlatCommandAndAlias(t *testing.T) {
	m, ad := newTestManager(t, []int64{1})

	var gotArgs []string
	m.SetRegistry([]Command{{
		Route:       "set_timer",
		Aliases:     []string{"timer"},
		Description: "set regeneration interval",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			gotArgs = req.Args
			_, _ = req.Adapter.SendText(ctx, req.Chat, "ok "+req.Command, nil)
			return nil
		},
	}})

	route(t, m, 1, "/set_timer 15")
	if len(gotArgs) != 1 || gotArgs[0] != "15" {
		t.Fatalf("args = %v", gotArgs)
	}

	route(t, m, 1, "/timer 30")
	if len(gotArgs) != 1 || gotArgs[0] != "30" {
		t.Fatalf("alias args = %v", gotArgs)
	}
	if got := ad.sent[len(ad.sent)-1]; got != "ok set_timer" {
		t.Fatalf("alias must resolve to the canonical command, reply = %q", got)
	}
}

func TestRouteUnknownCommand(t *testing.T) {
	m, ad := newTestManager(t, []int64{1})
	m.SetRegistry(nil)

	route(t, m, 1, "/bogus")
	if got := ad.sent[len(ad.sent)-1]; !strings.Contains(got, "unknown command") {
		t.Fatalf("reply = %q", got)
	}
}

func TestRouteOwnerGate(t *testing.T) {
	m, ad := newTestManager(t, []int64{1})

	ran := false
	m.SetRegistry([]Command{{
		Route:  "stop_posting",
		Access: AccessOwnerOnly,
		Handle: func(ctx context.Context, req *Request) error {
			ran = true
			return nil
		},
	}})

	route(t, m, 999, "/stop_posting")
	if ran {
		t.Fatal("owner-only command must not run for non-owners")
	}
	if got := ad.sent[len(ad.sent)-1]; !strings.Contains(got, "Unauthorized") {
		t.Fatalf("reply = %q", got)
	}

	route(t, m, 1, "/stop_posting")
	if !ran {
		t.Fatal("owner must be allowed")
	}
}

func TestHelpInjectedUnlessClaimed(t *testing.T) {
	m, ad := newTestManager(t, []int64{1})

	m.SetRegistry([]Command{{
		Route:       "get_config",
		Description: "show current configuration",
		Access:      AccessEveryone,
		Handle:      func(ctx context.Context, req *Request) error { return nil },
	}})
	route(t, m, 1, "/help")
	if got := ad.sent[len(ad.sent)-1]; !strings.Contains(got, "/get_config") {
		t.Fatalf("generic help should list commands, reply = %q", got)
	}

	m.SetRegistry([]Command{{
		Route:   "start",
		Aliases: []string{"help"},
		Access:  AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			_, _ = req.Adapter.SendText(ctx, req.Chat, "custom overview", nil)
			return nil
		},
	}})
	route(t, m, 1, "/help")
	if got := ad.sent[len(ad.sent)-1]; got != "custom overview" {
		t.Fatalf("a plugin claiming help must own it, reply = %q", got)
	}
}

func TestHelpTextCommandDetail(t *testing.T) {
	m, _ := newTestManager(t, []int64{1})
	m.SetRegistry([]Command{{
		Route:       "set_limit",
		Aliases:     []string{"limit"},
		Description: "set max joins per link",
		Usage:       "/set_limit <number>",
		Access:      AccessEveryone,
		Handle:      func(ctx context.Context, req *Request) error { return nil },
	}})

	got := m.helpText([]string{"limit"})
	for _, want := range []string{"set_limit", "Usage: /set_limit <number>", "Aliases: /limit"} {
		if !strings.Contains(got, want) {
			t.Errorf("help missing %q:\n%s", want, got)
		}
	}
	if got := m.helpText([]string{"nope"}); !strings.Contains(got, "not found") {
		t.Errorf("unknown command help = %q", got)
	}
}

func TestMenuCommandsSorted(t *testing.T) {
	m, _ := newTestManager(t, []int64{1})
	m.SetRegistry([]Command{
		{Route: "stop_posting", Access: AccessEveryone, Handle: func(ctx context.Context, req *Request) error { return nil }},
		{Route: "get_config", Access: AccessEveryone, Handle: func(ctx context.Context, req *Request) error { return nil }},
	})

	menu := m.MenuCommands()
	if len(menu) != 3 { // plus injected help
		t.Fatalf("menu = %+v", menu)
	}
	for i := 1; i < len(menu); i++ {
		if menu[i-1].Command > menu[i].Command {
			t.Fatalf("menu not sorted: %+v", menu)
		}
	}
}

package linkrotate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"linkguard/internal/core"
	"linkguard/internal/kit"
	"linkguard/pkg/logx"
)

type captureAdapter struct {
	sent []string
}

func (c *captureAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (c *captureAdapter) Stop(ctx context.Context) error                         { return nil }

func (c *captureAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	c.sent = append(c.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(c.sent)}, nil
}

func (c *captureAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}
func (c *captureAdapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error { return nil }
func (c *captureAdapter) CreateInviteLink(ctx context.Context, chat kit.ChatTarget, expireAt time.Time, memberLimit int) (string, error) {
	return "https://t.me/+test", nil
}
func (c *captureAdapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	return nil
}

func newTestPlugin(t *testing.T) (*Plugin, *captureAdapter) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"telegram":{"token":"t","owner_user_ids":[1]},"logging":{},"scheduler":{},"rotation":{},"plugins":{}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfgm := core.NewConfigManager(path)
	if _, err := cfgm.Load(); err != nil {
		t.Fatal(err)
	}

	ad := &captureAdapter{}
	p := New()
	err := p.Init(context.Background(), core.PluginDeps{
		Logger:       logx.Nop(),
		Adapter:      ad,
		Config:       cfgm,
		OwnerUserIDs: []int64{1},
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return p, ad
}

func newTestRequest(ad *captureAdapter, args []string, raw string) *core.Request {
	return &core.Request{
		Chat:         kit.ChatTarget{ChatID: 100},
		FromID:       1,
		Args:         args,
		RawText:      raw,
		Adapter:      ad,
		Logger:       logx.Nop(),
		OwnerUserIDs: []int64{1},
	}
}

func lastReply(t *testing.T, ad *captureAdapter) string {
	t.Helper()
	if len(ad.sent) == 0 {
		t.Fatal("no reply sent")
	}
	return ad.sent[len(ad.sent)-1]
}

func TestCmdOverviewOwnerOnly(t *testing.T) {
	p, ad := newTestPlugin(t)

	if err := p.cmdOverview(context.Background(), newTestRequest(ad, nil, "")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lastReply(t, ad), "Admin Commands") {
		t.Errorf("owner reply = %q", lastReply(t, ad))
	}

	stranger := newTestRequest(ad, nil, "")
	stranger.FromID = 9999
	if err := p.cmdOverview(context.Background(), stranger); err != nil {
		t.Fatal(err)
	}
	reply := lastReply(t, ad)
	if !strings.Contains(reply, "privately managed") {
		t.Errorf("stranger reply = %q", reply)
	}
	if strings.Contains(reply, "/set_channels") {
		t.Errorf("stranger must not receive the command reference: %q", reply)
	}
}

func TestCmdSetChannels(t *testing.T) {
	p, ad := newTestPlugin(t)

	req := newTestRequest(ad, []string{"@links", `@grp_a:"Main"`, "-100123"}, "")
	if err := p.cmdSetChannels(context.Background(), req); err != nil {
		t.Fatalf("cmdSetChannels: %v", err)
	}

	snap := p.engine.Settings().Snapshot()
	if snap.Target != "@links" {
		t.Errorf("target = %q", snap.Target)
	}
	if len(snap.Sources) != 2 || snap.Sources[0].Alias != "Main" || snap.Sources[1].ID != "-100123" {
		t.Errorf("sources = %+v", snap.Sources)
	}
	if !strings.Contains(lastReply(t, ad), "Channels Configured") {
		t.Errorf("reply = %q", lastReply(t, ad))
	}
}

func TestCmdSetChannelsAllOrNothing(t *testing.T) {
	p, ad := newTestPlugin(t)

	good := newTestRequest(ad, []string{"@links", "@grp_a"}, "")
	if err := p.cmdSetChannels(context.Background(), good); err != nil {
		t.Fatal(err)
	}

	bad := newTestRequest(ad, []string{"@links", "@grp_b", "bogus"}, "")
	if err := p.cmdSetChannels(context.Background(), bad); err != nil {
		t.Fatal(err)
	}

	snap := p.engine.Settings().Snapshot()
	if len(snap.Sources) != 1 || snap.Sources[0].ID != "@grp_a" {
		t.Fatalf("partial batch must not apply, sources = %+v", snap.Sources)
	}
	if !strings.Contains(lastReply(t, ad), "Errors found") {
		t.Errorf("reply = %q", lastReply(t, ad))
	}
}

func TestCmdSetChannelsRejectsBadTarget(t *testing.T) {
	p, ad := newTestPlugin(t)
	req := newTestRequest(ad, []string{"nope", "@grp"}, "")
	if err := p.cmdSetChannels(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if p.engine.Settings().Snapshot().Target != "" {
		t.Fatal("invalid target must not be applied")
	}
	if !strings.Contains(lastReply(t, ad), "Invalid target channel identifier") {
		t.Errorf("reply = %q", lastReply(t, ad))
	}
}

func TestCmdSetTimerAndLimit(t *testing.T) {
	p, ad := newTestPlugin(t)

	if err := p.cmdSetTimer(context.Background(), newTestRequest(ad, []string{"30"}, "")); err != nil {
		t.Fatal(err)
	}
	if err := p.cmdSetLimit(context.Background(), newTestRequest(ad, []string{"5"}, "")); err != nil {
		t.Fatal(err)
	}
	snap := p.engine.Settings().Snapshot()
	if snap.IntervalMinutes != 30 || snap.MemberLimit != 5 {
		t.Fatalf("snap = %+v", snap)
	}

	if err := p.cmdSetTimer(context.Background(), newTestRequest(ad, []string{"0"}, "")); err != nil {
		t.Fatal(err)
	}
	if p.engine.Settings().Snapshot().IntervalMinutes != 30 {
		t.Fatal("invalid timer must not be applied")
	}
	if !strings.Contains(lastReply(t, ad), "Usage: /set_timer") {
		t.Errorf("reply = %q", lastReply(t, ad))
	}
}

func TestCmdSetTemplateUsesRawTail(t *testing.T) {
	p, ad := newTestPlugin(t)

	raw := "<b>Join us:</b>\n{links_list}"
	if err := p.cmdSetTemplate(context.Background(), newTestRequest(ad, strings.Fields(raw), raw)); err != nil {
		t.Fatal(err)
	}
	if got := p.engine.Settings().Snapshot().Template; got != raw {
		t.Fatalf("template = %q, want %q (newlines preserved)", got, raw)
	}
	reply := lastReply(t, ad)
	if !strings.Contains(reply, "Template Set") || !strings.Contains(reply, "DUMMYINVITE123") {
		t.Errorf("preview reply = %q", reply)
	}
}

func TestCmdToggleUpdateMode(t *testing.T) {
	p, ad := newTestPlugin(t)
	if err := p.cmdToggleUpdateMode(context.Background(), newTestRequest(ad, nil, "")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lastReply(t, ad), "<b>EDIT</b>") {
		t.Errorf("reply = %q", lastReply(t, ad))
	}
}

func TestCmdStopPostingWithoutJob(t *testing.T) {
	p, ad := newTestPlugin(t)
	if err := p.cmdStopPosting(context.Background(), newTestRequest(ad, nil, "")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lastReply(t, ad), "No active posting job") {
		t.Errorf("reply = %q", lastReply(t, ad))
	}
}

func TestCmdGetConfig(t *testing.T) {
	p, ad := newTestPlugin(t)
	if err := p.cmdGetConfig(context.Background(), newTestRequest(ad, nil, "")); err != nil {
		t.Fatal(err)
	}
	reply := lastReply(t, ad)
	for _, want := range []string{"Current Configuration", "REPLACE", "No source chats configured", "Not Set"} {
		if !strings.Contains(reply, want) {
			t.Errorf("reply missing %q:\n%s", want, reply)
		}
	}
}

func TestCmdPostNowUnconfigured(t *testing.T) {
	p, ad := newTestPlugin(t)
	if err := p.cmdPostNow(context.Background(), newTestRequest(ad, nil, "")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lastReply(t, ad), "/set_channels") {
		t.Errorf("reply = %q", lastReply(t, ad))
	}
}

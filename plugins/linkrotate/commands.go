package linkrotate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"linkguard/internal/core"
	"linkguard/internal/kit"
	"linkguard/internal/rotation"
	"linkguard/internal/storage"
	"linkguard/pkg/logx"
)

const overviewText = `🚀 <b>LinkGuard Bot - Admin Commands</b>

<u>Configuration Commands</u>
/set_channels &lt;target&gt; &lt;src_id&gt;[:"Alias"] [src_id2:"Alias2"...]
→ Set target channel and source chats.
→ Sources can have optional aliases for display.
  <b>Example (no aliases)</b>:
  <code>/set_channels @link_ch @group_A -100123</code>
  <b>Example (with aliases)</b>:
  <code>/set_channels @link_ch @group_A:"Main Chat" @group_B:"Updates" -100123:"Private Archive"</code>

/set_timer &lt;minutes&gt;
→ Set link regeneration interval (minimum 1 minute).

/set_limit &lt;number&gt;
→ Set max joins per generated link (minimum 1).

/set_template &lt;HTML text&gt;
→ Use <code>{links_list}</code> to show all generated invite links.
  Each link is listed as "Alias: link" or "ID: link"
  (Or "Not available" if link generation failed for that source).
→ Example: <code>/set_template &lt;b&gt;Join our communities:&lt;/b&gt;
{links_list}</code>
→ <code>{invite_link}</code> is still supported and shows the first link only.

<u>Lifecycle Commands</u>
/start_posting → Activate link rotation on the configured timer.
/post_now → Run one rotation cycle immediately.
/stop_posting → Halt link rotation.
/toggle_update_mode → Switch between EDIT and REPLACE posting.
/get_config → Show the current configuration.`

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "start",
			Aliases:     []string{"help"},
			Description: "command overview",
			Usage:       "/start",
			Access:      core.AccessEveryone,
			Handle:      p.cmdOverview,
		},
		{
			Route:       "set_channels",
			Description: "set target channel and source chats",
			Usage:       `/set_channels <target> <src_id>[:"Alias"] ...`,
			Access:      core.AccessOwnerOnly,
			Handle:      p.cmdSetChannels,
		},
		{
			Route:       "set_timer",
			Description: "set regeneration interval in minutes",
			Usage:       "/set_timer <minutes>",
			Access:      core.AccessOwnerOnly,
			Handle:      p.cmdSetTimer,
		},
		{
			Route:       "set_limit",
			Description: "set max joins per link",
			Usage:       "/set_limit <number>",
			Access:      core.AccessOwnerOnly,
			Handle:      p.cmdSetLimit,
		},
		{
			Route:       "set_template",
			Description: "set the announcement template",
			Usage:       "/set_template <HTML text>",
			Access:      core.AccessOwnerOnly,
			Handle:      p.cmdSetTemplate,
		},
		{
			Route:       "start_posting",
			Description: "activate link rotation",
			Usage:       "/start_posting",
			Access:      core.AccessOwnerOnly,
			Timeout:     2 * time.Minute,
			Handle:      p.cmdStartPosting,
		},
		{
			Route:       "post_now",
			Description: "run one rotation cycle immediately",
			Usage:       "/post_now",
			Access:      core.AccessOwnerOnly,
			Timeout:     2 * time.Minute,
			Handle:      p.cmdPostNow,
		},
		{
			Route:       "stop_posting",
			Description: "halt link rotation",
			Usage:       "/stop_posting",
			Access:      core.AccessOwnerOnly,
			Handle:      p.cmdStopPosting,
		},
		{
			Route:       "toggle_update_mode",
			Description: "switch between edit and replace posting",
			Usage:       "/toggle_update_mode",
			Access:      core.AccessOwnerOnly,
			Handle:      p.cmdToggleUpdateMode,
		},
		{
			Route:       "get_config",
			Description: "show current configuration",
			Usage:       "/get_config",
			Access:      core.AccessOwnerOnly,
			Handle:      p.cmdGetConfig,
		},
	}
}

func reply(ctx context.Context, req *core.Request, text string) error {
	_, err := req.Adapter.SendText(ctx, req.Chat, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

// recordAction appends an operator mutation to the audit trail, best-effort.
func recordAction(ctx context.Context, req *core.Request, action, target string, actionErr error) {
	if req.Services == nil || req.Services.Storage == nil {
		return
	}
	e := storage.AuditEntry{
		At:      time.Now(),
		ActorID: req.FromID,
		Action:  action,
		Target:  target,
		OK:      actionErr == nil,
	}
	if actionErr != nil {
		e.Error = actionErr.Error()
	}
	if err := req.Services.Storage.AppendAudit(ctx, e); err != nil && !errors.Is(err, storage.ErrDisabled) {
		req.Logger.Warn("audit append failed", logx.Err(err))
	}
}

// cmdOverview answers /start and /help. The command reference is for the
// operator; strangers get a brush-off.
func (p *Plugin) cmdOverview(ctx context.Context, req *core.Request) error {
	for _, id := range req.OwnerUserIDs {
		if id == req.FromID {
			return reply(ctx, req, overviewText)
		}
	}
	return reply(ctx, req, "🔒 This bot is privately managed. Contact owner for assistance.")
}

func (p *Plugin) cmdSetChannels(ctx context.Context, req *core.Request) error {
	if len(req.Args) < 2 {
		return reply(ctx, req,
			"❌ <b>Usage</b>: /set_channels &lt;target_channel&gt; &lt;source_chat_1&gt; [source_chat_2...]\n"+
				"<b>Example (1 source)</b>:\n"+
				"<code>/set_channels @my_public_channel @my_private_group</code>\n"+
				"<b>Example (multiple sources)</b>:\n"+
				"<code>/set_channels @my_public_channel @group_alpha -1001234567890</code>\n"+
				"Ensure the bot is an admin in all specified channels/groups.")
	}

	target := req.Args[0]
	if !rotation.ValidIdentifier(target) {
		recordAction(ctx, req, "set_channels", target, fmt.Errorf("invalid target identifier"))
		return reply(ctx, req, fmt.Sprintf("❌ Invalid target channel identifier: %s", target))
	}

	sources, err := rotation.ParseSourceDefs(req.Args[1:])
	if err != nil {
		recordAction(ctx, req, "set_channels", target, err)
		return reply(ctx, req, "❌ Errors found in source definitions:\n"+err.Error())
	}

	p.engine.Settings().SetChannels(target, sources)
	recordAction(ctx, req, "set_channels", target, nil)

	var b strings.Builder
	b.WriteString("✅ <b>Channels Configured</b>\n")
	fmt.Fprintf(&b, "<b>Target Channel</b>: <code>%s</code>\n", target)
	b.WriteString("<b>Source Chats &amp; Aliases</b>:\n")
	b.WriteString(formatSources(sources))
	return reply(ctx, req, b.String())
}

func formatSources(sources []rotation.Source) string {
	if len(sources) == 0 {
		return "  No source chats configured."
	}
	lines := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.Alias != "" {
			lines = append(lines, fmt.Sprintf("  - <code>%s</code> (Alias: %q)", s.ID, s.Alias))
		} else {
			lines = append(lines, fmt.Sprintf("  - <code>%s</code>", s.ID))
		}
	}
	return strings.Join(lines, "\n")
}

func (p *Plugin) cmdSetTimer(ctx context.Context, req *core.Request) error {
	minutes, err := positiveIntArg(req.Args)
	if err != nil {
		return reply(ctx, req, "❌ Usage: /set_timer <minutes> (minimum 1)")
	}
	if err := p.engine.Settings().SetInterval(minutes); err != nil {
		return reply(ctx, req, "❌ Usage: /set_timer <minutes> (minimum 1)")
	}
	recordAction(ctx, req, "set_timer", strconv.Itoa(minutes), nil)
	return reply(ctx, req, fmt.Sprintf("⏰ Timer set to %d minutes", minutes))
}

func (p *Plugin) cmdSetLimit(ctx context.Context, req *core.Request) error {
	limit, err := positiveIntArg(req.Args)
	if err != nil {
		return reply(ctx, req, "❌ Usage: /set_limit <number> (minimum 1)")
	}
	if err := p.engine.Settings().SetMemberLimit(limit); err != nil {
		return reply(ctx, req, "❌ Usage: /set_limit <number> (minimum 1)")
	}
	recordAction(ctx, req, "set_limit", strconv.Itoa(limit), nil)
	return reply(ctx, req, fmt.Sprintf("👥 User limit set to %d", limit))
}

func positiveIntArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errors.New("missing argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New("must be at least 1")
	}
	return n, nil
}

func (p *Plugin) cmdSetTemplate(ctx context.Context, req *core.Request) error {
	// templates are free-form HTML and may span lines, so read the raw tail
	template := strings.TrimSpace(req.RawText)
	if template == "" {
		return reply(ctx, req,
			"❌ Provide HTML template text after the command.\n"+
				"Use {links_list} for all generated links or {invite_link} for the first one.\n"+
				"Example:\n<code>/set_template &lt;b&gt;Join Us:&lt;/b&gt;\n{links_list}</code>")
	}
	if err := p.engine.Settings().SetTemplate(template); err != nil {
		return reply(ctx, req, "❌ "+err.Error())
	}
	recordAction(ctx, req, "set_template", "", nil)
	return reply(ctx, req, templatePreview(template, req.Logger))
}

func (p *Plugin) cmdStartPosting(ctx context.Context, req *core.Request) error {
	cycleErr, err := p.engine.StartPosting(ctx, req.FromID)
	recordAction(ctx, req, "start_posting", "", err)
	if errors.Is(err, rotation.ErrNotConfigured) {
		return reply(ctx, req, "❌ Configure target channel and at least one source chat first using /set_channels")
	}
	if err != nil {
		return reply(ctx, req, "❌ Failed to activate auto-posting: "+err.Error())
	}
	if cycleErr != nil {
		return reply(ctx, req, "🔄 Auto-posting activated, but the first cycle failed: "+cycleErr.Error())
	}
	return reply(ctx, req, "🔄 Auto-posting activated!")
}

func (p *Plugin) cmdPostNow(ctx context.Context, req *core.Request) error {
	err := p.engine.RunCycle(ctx, "command", req.FromID)
	switch {
	case errors.Is(err, rotation.ErrNotConfigured):
		return reply(ctx, req, "❌ Configure target channel and at least one source chat first using /set_channels")
	case err != nil:
		return reply(ctx, req, "❌ Cycle failed: "+err.Error())
	}
	return reply(ctx, req, "✅ Posted fresh invite links")
}

func (p *Plugin) cmdStopPosting(ctx context.Context, req *core.Request) error {
	err := p.engine.StopPosting()
	recordAction(ctx, req, "stop_posting", "", err)
	if errors.Is(err, rotation.ErrNoActiveJob) {
		return reply(ctx, req, "❌ No active posting job")
	}
	if err != nil {
		return reply(ctx, req, "❌ "+err.Error())
	}
	return reply(ctx, req, "⏹️ Auto-posting stopped")
}

func (p *Plugin) cmdToggleUpdateMode(ctx context.Context, req *core.Request) error {
	mode := p.engine.Settings().ToggleMode()
	recordAction(ctx, req, "toggle_update_mode", string(mode), nil)
	return reply(ctx, req, fmt.Sprintf(
		"⚙️ Message update mode set to: <b>%s</b>\n\n"+
			"<b>EDIT Mode</b>: The bot will try to edit the last sent message with the new link.\n"+
			"<b>REPLACE Mode</b>: The bot will delete the old message and send a new one.",
		strings.ToUpper(string(mode))))
}

func (p *Plugin) cmdGetConfig(ctx context.Context, req *core.Request) error {
	snap := p.engine.Settings().Snapshot()

	target := "Not Set"
	if snap.Target != "" {
		target = snap.Target
	}
	jobStatus := "❌ Stopped"
	if snap.ActiveJobID != "" {
		jobStatus = "✅ Running"
	}
	lastMsg := "None"
	if snap.HasLastMessage {
		lastMsg = strconv.Itoa(snap.LastMessage.MessageID)
	}

	var b strings.Builder
	b.WriteString("⚙️ <b>Current Configuration</b>\n\n")
	b.WriteString("<b>Source Chats</b>:\n")
	b.WriteString(formatSources(snap.Sources))
	b.WriteString("\n")
	fmt.Fprintf(&b, "<b>Target Channel</b>: <code>%s</code>\n", target)
	fmt.Fprintf(&b, "<b>Regeneration Timer</b>: %d minutes\n", snap.IntervalMinutes)
	fmt.Fprintf(&b, "<b>User Limit/Link</b>: %d\n", snap.MemberLimit)
	fmt.Fprintf(&b, "<b>Message Update Mode</b>: %s\n", strings.ToUpper(string(snap.Mode)))
	fmt.Fprintf(&b, "<b>Message Template</b>:\n<code>%s</code>\n", snap.Template)
	fmt.Fprintf(&b, "<b>Active Job</b>: %s\n", jobStatus)
	fmt.Fprintf(&b, "<b>Last Message ID</b>: %s", lastMsg)
	return reply(ctx, req, b.String())
}

// Package status reports process health and scheduler state to the operator.
package status

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"linkguard/internal/core"
	"linkguard/internal/kit"
)

type Plugin struct {
	core.PluginBase
	startedAt time.Time
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "status" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.InitBase(deps, p.Name())
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	p.startedAt = time.Now()
	return nil
}

func (p *Plugin) Stop(ctx context.Context) error { return p.StopBase(ctx) }

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "status",
			Description: "process and scheduler status",
			Usage:       "/status",
			Access:      core.AccessOwnerOnly,
			Handle:      p.cmdStatus,
		},
	}
}

func (p *Plugin) cmdStatus(ctx context.Context, req *core.Request) error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	var b strings.Builder
	b.WriteString("📊 <b>Status</b>\n")
	fmt.Fprintf(&b, "<b>Uptime</b>: %s\n", time.Since(p.startedAt).Round(time.Second))
	fmt.Fprintf(&b, "<b>Goroutines</b>: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&b, "<b>Heap</b>: %.1f MiB (sys %.1f MiB)\n",
		float64(ms.HeapAlloc)/(1<<20), float64(ms.Sys)/(1<<20))

	if req.Services != nil && req.Services.Scheduler != nil {
		jobs := req.Services.Scheduler.Jobs()
		if len(jobs) == 0 {
			b.WriteString("<b>Jobs</b>: none\n")
		} else {
			b.WriteString("<b>Jobs</b>:\n")
			for _, j := range jobs {
				fmt.Fprintf(&b, "  - %s (%s), next %s\n", j.Name, j.Spec, j.Next.Format(time.RFC3339))
			}
		}
		if hist := req.Services.Scheduler.History(5); len(hist) > 0 {
			b.WriteString("<b>Recent runs</b>:\n")
			for _, r := range hist {
				outcome := "ok"
				if r.Error != "" {
					outcome = "error: " + r.Error
				}
				fmt.Fprintf(&b, "  - %s %s (%s, %s)\n",
					r.Started.Format("15:04:05"), r.Name, r.Duration.Round(time.Millisecond), outcome)
			}
		}
	}

	_, err := req.Adapter.SendText(ctx, req.Chat, b.String(), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

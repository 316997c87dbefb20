// Package linkrotate is the operator surface for invite-link rotation:
// it owns the rotation engine and exposes the configuration and lifecycle
// commands.
package linkrotate

import (
	"context"
	"time"

	"linkguard/internal/core"
	"linkguard/internal/rotation"
	"linkguard/internal/storage"
)

type Plugin struct {
	core.PluginBase
	engine *rotation.Engine
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "linkrotate" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.InitBase(deps, p.Name())

	rc := deps.Config.Get().Rotation

	var callTimeout time.Duration
	if rc.CallTimeout != "" {
		if d, err := time.ParseDuration(rc.CallTimeout); err == nil {
			callTimeout = d
		}
	}

	sources := make([]rotation.Source, 0, len(rc.Sources))
	for _, s := range rc.Sources {
		sources = append(sources, rotation.Source{ID: s.ID, Alias: s.Alias})
	}

	settings := rotation.NewSettings(rotation.Defaults{
		Target:          rc.TargetChannel,
		Sources:         sources,
		IntervalMinutes: rc.IntervalMinutes,
		MemberLimit:     rc.MemberLimit,
		Template:        rc.Template,
		Mode:            rotation.UpdateMode(rc.UpdateMode),
	})

	gen := rotation.NewGenerator(deps.Adapter, callTimeout, p.Log)
	rec := rotation.NewReconciler(deps.Adapter, callTimeout, p.Log)

	var (
		sched    rotation.Scheduler
		notifier rotation.Notifier
		audit    storage.Store
	)
	if deps.Services != nil {
		sched = deps.Services.Scheduler
		notifier = deps.Services.Notifier
		audit = deps.Services.Storage
	}

	p.engine = rotation.NewEngine(settings, gen, rec, sched, notifier, audit, p.Log)
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	return nil
}

func (p *Plugin) Stop(ctx context.Context) error {
	// disabling the plugin also cancels the recurring job
	if p.engine != nil && p.engine.Active() {
		_ = p.engine.StopPosting()
	}
	return p.StopBase(ctx)
}

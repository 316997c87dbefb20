package core

import (
	"context"
	"encoding/json"

	"linkguard/pkg/logx"
)

// PluginBase is a small helper to make writing plugins faster and safer.
//
//	type Plugin struct { core.PluginBase }
//	func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error { p.InitBase(deps, p.Name()); return nil }
//	func (p *Plugin) Start(ctx context.Context) error { p.StartBase(ctx); return nil }
//	func (p *Plugin) Stop(ctx context.Context) error { return p.StopBase(ctx) }
type PluginBase struct {
	Log        logx.Logger
	Deps       PluginDeps
	Runner     *Supervisor
	pluginName string

	ctx context.Context
}

// InitBase wires deps + logger.
func (b *PluginBase) InitBase(deps PluginDeps, pluginName string) {
	b.Deps = deps
	b.pluginName = pluginName
	if !deps.Logger.IsZero() {
		b.Log = deps.Logger.With(logx.String("plugin", pluginName))
	} else {
		b.Log = logx.Nop()
	}
}

// StartBase creates a per-plugin supervisor tied to ctx.
func (b *PluginBase) StartBase(ctx context.Context) {
	b.ctx = ctx
	b.Runner = NewSupervisor(ctx, WithLogger(b.Log), WithCancelOnError(false))
}

// StopBase cancels the runner and waits, bounded by ctx.
func (b *PluginBase) StopBase(ctx context.Context) error {
	if b.Runner == nil {
		return nil
	}
	b.Runner.Cancel()
	err := b.Runner.Wait(ctx)
	b.Runner = nil
	return err
}

// Context returns the plugin runtime context (cancelled on stop/disable).
func (b *PluginBase) Context() context.Context { return b.ctx }

// DecodePluginConfig decodes a per-plugin raw json blob into a typed struct.
func DecodePluginConfig[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

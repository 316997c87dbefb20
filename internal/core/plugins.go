package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"linkguard/internal/kit"
	"linkguard/pkg/logx"
)

type Plugin interface {
	Name() string
	Init(ctx context.Context, deps PluginDeps) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Commands() []Command
}

// ConfigurablePlugin receives its raw per-plugin config blob on start and
// on every accepted hot reload.
type ConfigurablePlugin interface {
	OnConfigChange(ctx context.Context, raw json.RawMessage) error
}

// ConfigValidator lets a plugin reject its config blob before a reload is
// committed.
type ConfigValidator interface {
	ValidateConfig(ctx context.Context, raw json.RawMessage) error
}

type PluginDeps struct {
	Logger       logx.Logger
	Adapter      kit.Adapter
	Config       *ConfigManager
	Services     *Services
	OwnerUserIDs []int64
}

type PluginManager struct {
	mu sync.Mutex

	log  logx.Logger
	cfgm *ConfigManager
	deps PluginDeps
	reg  map[string]Plugin
	order []string
	run  map[string]bool

	// per-plugin run context, cancelled on disable/stop
	baseCtx    context.Context
	baseCancel context.CancelFunc
	pcancel    map[string]context.CancelFunc

	cmdm *CommandManager
}

func NewPluginManager(log logx.Logger, cfgm *ConfigManager, deps PluginDeps, cmdm *CommandManager) *PluginManager {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &PluginManager{
		log:        log,
		cfgm:       cfgm,
		deps:       deps,
		reg:        map[string]Plugin{},
		run:        map[string]bool{},
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		pcancel:    map[string]context.CancelFunc{},
		cmdm:       cmdm,
	}
}

func (pm *PluginManager) Register(ps ...Plugin) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for _, p := range ps {
		if p == nil || p.Name() == "" {
			continue
		}
		if _, dup := pm.reg[p.Name()]; dup {
			pm.log.Warn("duplicate plugin registration ignored", logx.String("plugin", p.Name()))
			continue
		}
		pm.reg[p.Name()] = p
		pm.order = append(pm.order, p.Name())
	}
}

// SetOwnerUserIDs updates the owner list handed to plugins on subsequent
// starts. Safe under hot reload.
func (pm *PluginManager) SetOwnerUserIDs(owners []int64) {
	pm.mu.Lock()
	pm.deps.OwnerUserIDs = append([]int64(nil), owners...)
	pm.mu.Unlock()
}

func (pm *PluginManager) enabled(cfg *Config, name string) bool {
	if cfg == nil || cfg.Plugins == nil {
		return true
	}
	raw, ok := cfg.Plugins[name]
	if !ok {
		return true
	}
	return raw.Enabled
}

func pluginRaw(cfg *Config, name string) json.RawMessage {
	if cfg == nil || cfg.Plugins == nil {
		return nil
	}
	return cfg.Plugins[name].Config
}

// ValidateConfig runs each registered plugin's validator against a candidate
// config. Called by the ConfigManager validator hook before a reload commits.
func (pm *PluginManager) ValidateConfig(ctx context.Context, cfg *Config) error {
	pm.mu.Lock()
	names := append([]string(nil), pm.order...)
	reg := pm.reg
	pm.mu.Unlock()

	for _, name := range names {
		v, ok := reg[name].(ConfigValidator)
		if !ok {
			continue
		}
		if err := v.ValidateConfig(ctx, pluginRaw(cfg, name)); err != nil {
			return fmt.Errorf("plugin %s: %w", name, err)
		}
	}
	return nil
}

// StartAll initializes and starts every enabled plugin, then publishes the
// aggregated command registry and syncs the platform menu. The ctx passed in
// bridges app shutdown to the long-lived plugin contexts.
func (pm *PluginManager) StartAll(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		pm.baseCancel()
	}()

	cfg := pm.cfgm.Get()

	pm.mu.Lock()
	names := append([]string(nil), pm.order...)
	pm.mu.Unlock()

	for _, name := range names {
		if !pm.enabled(cfg, name) {
			pm.log.Info("plugin disabled by config", logx.String("plugin", name))
			continue
		}
		if err := pm.startOne(name, cfg); err != nil {
			return fmt.Errorf("start plugin %s: %w", name, err)
		}
	}

	pm.publishRegistry()
	pm.syncMenu(ctx)
	return nil
}

func (pm *PluginManager) startOne(name string, cfg *Config) error {
	pm.mu.Lock()
	p := pm.reg[name]
	if p == nil || pm.run[name] {
		pm.mu.Unlock()
		return nil
	}
	pctx, cancel := context.WithCancel(pm.baseCtx)
	pm.pcancel[name] = cancel
	deps := pm.deps
	pm.mu.Unlock()

	if err := p.Init(pctx, deps); err != nil {
		cancel()
		return err
	}
	if cp, ok := p.(ConfigurablePlugin); ok {
		if err := cp.OnConfigChange(pctx, pluginRaw(cfg, name)); err != nil {
			cancel()
			return err
		}
	}
	if err := p.Start(pctx); err != nil {
		cancel()
		return err
	}

	pm.mu.Lock()
	pm.run[name] = true
	pm.mu.Unlock()
	pm.log.Info("plugin started", logx.String("plugin", name))
	return nil
}

func (pm *PluginManager) stopOne(ctx context.Context, name string) {
	pm.mu.Lock()
	p := pm.reg[name]
	running := pm.run[name]
	cancel := pm.pcancel[name]
	delete(pm.pcancel, name)
	pm.run[name] = false
	pm.mu.Unlock()

	if p == nil || !running {
		return
	}
	if cancel != nil {
		cancel()
	}

	// bounded per-plugin stop so one plugin can't stall shutdown
	sctx, scancel := context.WithTimeout(ctx, 3*time.Second)
	defer scancel()
	if err := p.Stop(sctx); err != nil {
		pm.log.Warn("plugin stop error", logx.String("plugin", name), logx.Err(err))
	} else {
		pm.log.Info("plugin stopped", logx.String("plugin", name))
	}
}

func (pm *PluginManager) StopAll(ctx context.Context) {
	pm.mu.Lock()
	names := append([]string(nil), pm.order...)
	pm.mu.Unlock()

	// stop in reverse registration order
	for i := len(names) - 1; i >= 0; i-- {
		pm.stopOne(ctx, names[i])
	}
	pm.baseCancel()
}

// OnConfigUpdate applies plugin enable/disable transitions and forwards
// per-plugin config blobs after a hot reload.
func (pm *PluginManager) OnConfigUpdate(ctx context.Context, cfg *Config) {
	pm.mu.Lock()
	names := append([]string(nil), pm.order...)
	pm.mu.Unlock()

	changed := false
	for _, name := range names {
		pm.mu.Lock()
		running := pm.run[name]
		p := pm.reg[name]
		pm.mu.Unlock()

		want := pm.enabled(cfg, name)
		switch {
		case want && !running:
			if err := pm.startOne(name, cfg); err != nil {
				pm.log.Warn("plugin enable failed", logx.String("plugin", name), logx.Err(err))
				continue
			}
			changed = true
		case !want && running:
			pm.stopOne(ctx, name)
			changed = true
		case want && running:
			if cp, ok := p.(ConfigurablePlugin); ok {
				if err := cp.OnConfigChange(ctx, pluginRaw(cfg, name)); err != nil {
					pm.log.Warn("plugin config update rejected", logx.String("plugin", name), logx.Err(err))
				}
			}
		}
	}

	if changed {
		pm.publishRegistry()
		pm.syncMenu(ctx)
	}
}

func (pm *PluginManager) publishRegistry() {
	pm.mu.Lock()
	var cmds []Command
	for _, name := range pm.order {
		if !pm.run[name] {
			continue
		}
		for _, c := range pm.reg[name].Commands() {
			c.PluginName = name
			cmds = append(cmds, c)
		}
	}
	pm.mu.Unlock()
	pm.cmdm.SetRegistry(cmds)
}

func (pm *PluginManager) syncMenu(ctx context.Context) {
	mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pm.deps.Adapter.UpdateMenuCommands(mctx, pm.cmdm.MenuCommands()); err != nil {
		pm.log.Warn("menu command sync failed", logx.Err(err))
	}
}

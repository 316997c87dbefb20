package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"linkguard/internal/adapters/telegram"
	"linkguard/internal/kit"
	"linkguard/internal/services/notify"
	"linkguard/internal/services/scheduler"
	"linkguard/internal/storage"
	"linkguard/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter kit.Adapter

	sched *scheduler.Service
	notif *notify.Service
	store storage.Store

	cmdm *CommandManager
	pm   *PluginManager

	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// The adapter exists before the log service (it is the telegram sink's
	// sender), so it gets a plain console logger.
	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))

	pollTimeout, err := parseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	callTimeout, err := parseDurationOrDefault("rotation.call_timeout", cfg.Rotation.CallTimeout, 15*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		CallTimeout: callTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}, ad)
	log = log.With(logx.String("comp", "app"))

	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" {
		if chatID, err := strconv.ParseInt(gl, 10, 64); err == nil {
			logSvc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
		}
	}

	defaultTimeout, err := parseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	schedSvc := scheduler.New(scheduler.Config{
		Workers:        cfg.Scheduler.Workers,
		DefaultTimeout: defaultTimeout,
		HistorySize:    cfg.Scheduler.HistorySize,
		Timezone:       cfg.Scheduler.Timezone,
	}, log.With(logx.String("comp", "scheduler")))

	notifSvc := notify.New(notify.Config{
		DefaultTarget: notifyTarget(cfg),
	}, ad, log.With(logx.String("comp", "notifier")))

	store, err := openStorage(cfg, log)
	if err != nil {
		return nil, err
	}

	serv := &Services{
		Scheduler: schedSvc,
		Notifier:  notifSvc,
		Storage:   store,
	}

	cmdm := NewCommandManager(log.With(logx.String("comp", "commands")),
		ad, cfgm, serv, cfg.Telegram.OwnerUserIDs)

	pm := NewPluginManager(log.With(logx.String("comp", "plugins")),
		cfgm, PluginDeps{
			Logger:       log,
			Adapter:      ad,
			Config:       cfgm,
			Services:     serv,
			OwnerUserIDs: cfg.Telegram.OwnerUserIDs,
		}, cmdm)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		sched:   schedSvc,
		notif:   notifSvc,
		store:   store,
		cmdm:    cmdm,
		pm:      pm,
		updates: make(chan kit.Update, 256),
	}, nil
}

// notifyTarget picks the chat operator alerts go to: the log group when
// configured, else the first owner's private chat.
func notifyTarget(cfg *Config) kit.ChatTarget {
	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" {
		if chatID, err := strconv.ParseInt(gl, 10, 64); err == nil {
			return kit.ChatTarget{ChatID: chatID}
		}
	}
	if len(cfg.Telegram.OwnerUserIDs) > 0 {
		return kit.ChatTarget{ChatID: cfg.Telegram.OwnerUserIDs[0]}
	}
	return kit.ChatTarget{}
}

func openStorage(cfg *Config, log logx.Logger) (storage.Store, error) {
	if cfg.Storage == nil {
		return nil, nil
	}
	busy, err := parseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
}

func (a *App) Plugins() *PluginManager { return a.pm }

// Done is closed when the app supervisor context is canceled (fatal error
// or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *Config) error {
		if cfg.Scheduler.Workers < 0 {
			return fmt.Errorf("scheduler.workers must be >= 0")
		}
		if _, err := parseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout); err != nil {
			return err
		}
		if _, err := parseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
			return err
		}
		if _, err := parseDurationField("rotation.call_timeout", cfg.Rotation.CallTimeout); err != nil {
			return err
		}
		if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
			}
		}
		if m := cfg.Rotation.UpdateMode; m != "" && m != "edit" && m != "replace" {
			return fmt.Errorf("rotation.update_mode: must be \"edit\" or \"replace\", got %q", m)
		}
		return a.pm.ValidateConfig(c, cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sched.Start(a.sup.Context())

	if err := a.pm.StartAll(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	// hot reload fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(ctx context.Context, cfg *Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	})

	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" {
		if chatID, err := strconv.ParseInt(gl, 10, 64); err == nil {
			a.logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
		}
	} else {
		a.logs.SetTelegramTarget(0, 0)
	}

	a.cmdm.SetOwners(cfg.Telegram.OwnerUserIDs)
	a.pm.SetOwnerUserIDs(cfg.Telegram.OwnerUserIDs)

	// Rotation settings are deliberately NOT re-seeded here: runtime state
	// set via operator commands survives a config file touch.

	a.pm.OnConfigUpdate(ctx, cfg)
	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops unwind immediately.
	a.sup.Cancel()

	// Run each shutdown step with an upper bound so one component can't
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	// Plugins first (they may hold scheduler jobs), then services.
	step("plugins", 4*time.Second, func(c context.Context) error { a.pm.StopAll(c); return nil })
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close error", logx.Err(err))
		}
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

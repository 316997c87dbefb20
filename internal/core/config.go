package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"linkguard/pkg/logx"
)

// ConfigManager loads the config file (JSON or YAML), watches it for
// changes, and fans validated configs out to subscribers.
type ConfigManager struct {
	path string

	mu   sync.RWMutex
	cfg  *Config
	subs []chan *Config

	log       logx.Logger
	validator func(ctx context.Context, cfg *Config) error
}

func NewConfigManager(path string) *ConfigManager {
	return &ConfigManager{path: path, log: logx.Nop()}
}

func (m *ConfigManager) SetLogger(log logx.Logger) {
	m.mu.Lock()
	m.log = log
	m.mu.Unlock()
}

// SetValidator installs a hook run against a freshly parsed config before
// it is committed and published. A validation error rejects the reload and
// keeps the previous config.
func (m *ConfigManager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.mu.Lock()
	m.validator = fn
	m.mu.Unlock()
}

func (m *ConfigManager) Load() (*Config, error) {
	cfg, err := m.parse()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

func (m *ConfigManager) parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, format, err := coerceToJSONBytes(m.path, b)
	if err != nil {
		return nil, fmt.Errorf("config %s (%s): %w", m.path, format, err)
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", m.path, err)
	}
	return &cfg, nil
}

func (m *ConfigManager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *ConfigManager) Subscribe(buffer int) <-chan *Config {
	ch := make(chan *Config, buffer)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

func (m *ConfigManager) Unsubscribe(ch <-chan *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return
		}
	}
}

func (m *ConfigManager) publish(cfg *Config) {
	m.mu.RLock()
	subs := append([]chan *Config{}, m.subs...)
	m.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- cfg:
		default:
			// drop for slow subscribers
		}
	}
}

// reload parses, validates, commits and publishes. Invalid files are
// rejected and the running config stays in effect.
func (m *ConfigManager) reload(ctx context.Context) {
	cfg, err := m.parse()
	if err != nil {
		m.log.Warn("config reload rejected", logx.Err(err))
		return
	}

	m.mu.RLock()
	validate := m.validator
	m.mu.RUnlock()
	if validate != nil {
		if err := validate(ctx, cfg); err != nil {
			m.log.Warn("config reload rejected by validator", logx.Err(err))
			return
		}
	}

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	m.publish(cfg)
}

func (m *ConfigManager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	// debounce to avoid reacting to partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			m.reload(ctx)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.Events:
			if ev.Name == filepath.Join(dir, file) {
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			}
		case <-w.Errors:
			// keep watching
		}
	}
}

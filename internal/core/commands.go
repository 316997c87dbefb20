package core

import (
	"context"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"linkguard/internal/kit"
	"linkguard/internal/services/scheduler"
	"linkguard/internal/storage"
	"linkguard/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	// Route is the command word users type, e.g. "set_channels".
	Route       string
	Aliases     []string
	Description string
	Usage       string
	Access      Access

	PluginName string
	Timeout    time.Duration // optional per-command override
	Handle     HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Path    []string
	Command string
	Args    []string
	// RawText is everything after the command token, verbatim (newlines
	// preserved). Commands taking free-form input read this instead of Args.
	RawText string
	ReqID   string

	Adapter      kit.Adapter
	Config       *Config
	Logger       logx.Logger
	Services     *Services
	OwnerUserIDs []int64
}

type Services struct {
	Scheduler SchedulerPort
	Notifier  NotifierPort
	Storage   storage.Store
}

// SchedulerPort is the recurring-job surface plugins consume.
type SchedulerPort interface {
	AddInterval(name string, every time.Duration, timeout time.Duration, job func(ctx context.Context) error) (string, error)
	Remove(id string) bool
	Jobs() []scheduler.JobInfo
	History(limit int) []scheduler.RunRecord
}

type NotifierPort interface {
	Notify(ctx context.Context, n kit.Notification) error
}

type CommandManager struct {
	mu sync.RWMutex

	cmds  map[string]*Command // command word -> command
	alias map[string]string   // alias -> command word

	owners []int64

	log     logx.Logger
	adapter kit.Adapter
	cfgm    *ConfigManager
	serv    *Services

	jobs chan func()
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, cfgm *ConfigManager, serv *Services, owners []int64) *CommandManager {
	// copy to avoid callers mutating the slice after construction
	ownCopy := append([]int64(nil), owners...)
	return &CommandManager{
		cmds:    map[string]*Command{},
		alias:   map[string]string{},
		log:     log,
		adapter: adapter,
		cfgm:    cfgm,
		serv:    serv,
		owners:  ownCopy,
		jobs:    make(chan func(), 256),
	}
}

// SetOwners updates the owner list used for AccessOwnerOnly checks.
// Safe to call during hot-reload.
func (m *CommandManager) SetOwners(owners []int64) {
	ownCopy := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = ownCopy
	m.mu.Unlock()
}

func (m *CommandManager) ownersSnapshot() []int64 {
	m.mu.RLock()
	cp := append([]int64(nil), m.owners...)
	m.mu.RUnlock()
	return cp
}

func (m *CommandManager) SetRegistry(cmds []Command) {
	// inject the generic /help unless a plugin claims that word itself
	if !claimsWord(cmds, "help") {
		cmds = append(cmds, Command{
			Route:       "help",
			Aliases:     []string{"h"},
			Description: "show help",
			Usage:       "/help [cmd]",
			Access:      AccessEveryone,
			Handle: func(ctx context.Context, req *Request) error {
				text := m.helpText(req.Args)
				_, _ = req.Adapter.SendText(ctx, req.Chat, text, &kit.SendOptions{DisablePreview: true})
				return nil
			},
		})
	}

	byWord := map[string]*Command{}
	alias := map[string]string{}

	for _, c := range cmds {
		word := routeWord(c.Route)
		if word == "" || c.Handle == nil {
			continue
		}
		cc := c // copy
		byWord[word] = &cc
		for _, a := range c.Aliases {
			a = strings.TrimSpace(a)
			if a == "" || strings.Contains(a, " ") || a == word {
				continue
			}
			alias[a] = word
		}
	}

	m.mu.Lock()
	m.cmds = byWord
	m.alias = alias
	m.mu.Unlock()
}

// routeWord collapses a route into the single word it is invoked by.
func routeWord(route string) string {
	return strings.Join(strings.Fields(route), "_")
}

func claimsWord(cmds []Command, word string) bool {
	for _, c := range cmds {
		if routeWord(c.Route) == word {
			return true
		}
		for _, a := range c.Aliases {
			if strings.TrimSpace(a) == word {
				return true
			}
		}
	}
	return false
}

// resolve maps an incoming command word, possibly an alias, to its
// registered command.
func (m *CommandManager) resolve(word string) (Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if canon, ok := m.alias[word]; ok {
		word = canon
	}
	c, ok := m.cmds[word]
	if !ok {
		return Command{}, false
	}
	return *c, true
}

// MenuCommands lists registered commands for the platform menu.
func (m *CommandManager) MenuCommands() []kit.BotCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.cmds))
	for w := range m.cmds {
		names = append(names, w)
	}
	sort.Strings(names)
	out := make([]kit.BotCommand, 0, len(names))
	for _, name := range names {
		out = append(out, kit.BotCommand{Command: name, Description: m.cmds[name].Description})
	}
	return out
}

func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}

	m.log.Info("command dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(m.jobs)))

	var (
		wg        sync.WaitGroup
		closeOnce sync.Once
	)
	closeJobs := func() {
		closeOnce.Do(func() { close(m.jobs) })
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("panic in command worker", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
			}()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-m.jobs:
					if !ok {
						return
					}
					if job == nil {
						continue
					}
					job()
				}
			}
		}()
	}

	defer func() {
		closeJobs()
		wg.Wait()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if up.Kind == kit.UpdateMessage {
				m.routeMessage(ctx, up)
			}
		}
	}
}

func (m *CommandManager) routeMessage(root context.Context, up kit.Update) {
	if up.Message == nil {
		return
	}
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	args := []string{}
	if len(parts) > 1 {
		args = parts[1:]
	}

	cmd, ok := m.resolve(word)
	if !ok {
		_, _ = m.adapter.SendText(root, kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}, "unknown command. try /help", nil)
		return
	}
	m.enqueueCommand(root, up, cmd, []string{routeWord(cmd.Route)}, args)
}

func (m *CommandManager) enqueueCommand(root context.Context, up kit.Update, cmd Command, path []string, args []string) {
	msg := up.Message
	if msg == nil {
		return
	}

	owners := m.ownersSnapshot()
	if cmd.Access == AccessOwnerOnly && !isOwner(msg.FromID, owners) {
		_, _ = m.adapter.SendText(root, kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}, "⛔ Unauthorized: this command is owner-only", nil)
		return
	}

	rid := newReqID()
	reqLog := m.log.With(
		logx.String("rid", rid),
		logx.Int64("chat_id", msg.ChatID),
		logx.Int64("from_id", msg.FromID),
		logx.String("cmd", cmd.Route),
	)

	req := &Request{
		Update:       up,
		Chat:         kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:       msg.FromID,
		Path:         path,
		Command:      cmd.Route,
		Args:         args,
		RawText:      commandArgsTail(msg.Text),
		ReqID:        rid,
		Adapter:      m.adapter,
		Config:       m.cfgm.Get(),
		Logger:       reqLog,
		Services:     m.serv,
		OwnerUserIDs: owners,
	}

	final := Chain(
		cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(cmd.Timeout),
	)

	select {
	case m.jobs <- func() { _ = final(root, req) }:
	default:
		_, _ = m.adapter.SendText(root, req.Chat, "busy, try again", nil)
	}
}

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}

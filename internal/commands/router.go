package commands

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pulsebot/internal/transport"
	logx "pulsebot/pkg/logx"
	"pulsebot/pkg/tgui"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	Name        string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type Request struct {
	Msg    transport.Message
	Chat   transport.ChatTarget
	FromID int64

	Command string
	Args    []string
	Flags   map[string]string
	Bools   map[string]bool

	Adapter transport.Adapter
	Logger  logx.Logger
}

// Reply sends HTML back to the chat the command came from.
func (r *Request) Reply(ctx context.Context, h tgui.H) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, h.String(), &transport.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	return err
}

// Manager routes slash commands to handlers.
type Manager struct {
	mu   sync.RWMutex
	cmds map[string]Command

	owners  []int64
	adapter transport.Adapter
	log     logx.Logger

	defaultTimeout time.Duration
}

func NewManager(adapter transport.Adapter, owners []int64, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		cmds:           map[string]Command{},
		owners:         owners,
		adapter:        adapter,
		log:            log,
		defaultTimeout: 15 * time.Second,
	}
}

func (m *Manager) Register(cmds ...Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cmds {
		m.cmds[strings.ToLower(c.Name)] = c
	}
}

// MenuCommands returns the registered public commands for the platform menu.
func (m *Manager) MenuCommands() []transport.BotCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]transport.BotCommand, 0, len(m.cmds))
	for _, c := range m.cmds {
		if c.Access != AccessEveryone {
			continue
		}
		out = append(out, transport.BotCommand{Command: c.Name, Description: c.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// Dispatch routes a message starting with '/' to its handler.
// It reports whether the message was consumed as a command.
func (m *Manager) Dispatch(ctx context.Context, msg transport.Message) bool {
	name, rest, ok := splitCommand(msg.Text)
	if !ok {
		return false
	}

	m.mu.RLock()
	cmd, found := m.cmds[name]
	m.mu.RUnlock()
	if !found {
		return false
	}

	req := &Request{
		Msg:     msg,
		Chat:    msg.Chat,
		FromID:  msg.FromID,
		Command: name,
		Adapter: m.adapter,
		Logger:  m.log.With(logx.String("cmd", name)),
	}
	req.Args, req.Flags, req.Bools = parseArgs(rest)

	if cmd.Access == AccessOwnerOnly && !m.isOwner(msg.FromID) {
		_ = req.Reply(ctx, tgui.Esc("This command is restricted."))
		return true
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}

	h := Chain(cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(timeout),
	)
	if err := h(ctx, req); err != nil {
		_ = req.Reply(ctx, tgui.Esc("Something went wrong running that command."))
	}
	return true
}

func (m *Manager) isOwner(id int64) bool {
	for _, o := range m.owners {
		if o == id {
			return true
		}
	}
	return false
}

// splitCommand parses "/name@bot arg arg" into (name, rest, true).
func splitCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	// Strip the "@botname" suffix Telegram appends in groups.
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

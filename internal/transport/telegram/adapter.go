package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"pulsebot/internal/transport"
	logx "pulsebot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// HistorySize bounds the per-chat recent-message ring.
	HistorySize int
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	history *chatHistory

	runMu     sync.Mutex
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
	running   bool

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the poll loop. Logged periodically to avoid per-update spam.
	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:     cfg,
		log:     log,
		bot:     b,
		history: newChatHistory(cfg.HistorySize),
	}, nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.runWG.Add(2)
	a.runMu.Unlock()

	// Periodic summary for dropped updates.
	go func() {
		defer a.runWG.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n))
				}
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n))
				}
			}
		}
	}()

	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil || m.Chat == nil {
			return nil
		}
		msg := fromTele(m)

		// Every observed message feeds the history ring, bots included:
		// the rate window counts all traffic, only the participant set
		// filters bots out.
		if msg.IsGroup {
			a.history.Record(msg)
		}

		up := transport.Update{Kind: transport.UpdateMessage, Message: &msg}
		select {
		case out <- up:
		default:
			atomic.AddUint64(&a.droppedUpdates, 1)
		}
		return nil
	})

	go func() {
		defer a.runWG.Done()
		a.bot.Start()
	}()

	// Stop the poller when the run context ends.
	go func() {
		<-rctx.Done()
		a.bot.Stop()
	}()

	a.log.Info("telegram adapter started")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	running := a.running
	a.running = false
	a.runMu.Unlock()

	if !running {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	return a.send(ctx, tele.ChatID(to.ChatID), to.ThreadID, text, opt)
}

func (a *Adapter) SendDirect(ctx context.Context, userID int64, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	return a.send(ctx, tele.ChatID(userID), 0, text, opt)
}

func (a *Adapter) send(ctx context.Context, to tele.Recipient, threadID int, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}

	sendOpts := &tele.SendOptions{ThreadID: threadID}
	if opt != nil {
		sendOpts.ParseMode = opt.ParseMode
		sendOpts.DisableWebPagePreview = opt.DisablePreview
	}

	m, err := a.bot.Send(to, text, sendOpts)
	if err != nil {
		return transport.MessageRef{}, err
	}
	ref := transport.MessageRef{MessageID: m.ID}
	if m.Chat != nil {
		ref.ChatID = m.Chat.ID
	}
	ref.ThreadID = m.ThreadID
	return ref, nil
}

// Recent implements transport.HistorySource from the in-memory ring.
func (a *Adapter) Recent(ctx context.Context, chat transport.ChatTarget, limit int) ([]transport.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.history.Recent(chat, limit), nil
}

// UpdateMenuCommands implements transport.CommandMenuUpdater.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []transport.BotCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tc := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		tc = append(tc, tele.Command{Text: c.Command, Description: c.Description})
	}
	return a.bot.SetCommands(tc)
}

func fromTele(m *tele.Message) transport.Message {
	chat := transport.ChatTarget{ChatID: m.Chat.ID, ThreadID: m.ThreadID}
	display := strings.TrimSpace(m.Sender.FirstName + " " + m.Sender.LastName)
	return transport.Message{
		ID:           m.ID,
		Chat:         chat,
		ChatTitle:    m.Chat.Title,
		FromID:       m.Sender.ID,
		FromUsername: m.Sender.Username,
		FromDisplay:  display,
		FromBot:      m.Sender.IsBot,
		Text:         m.Text,
		At:           m.Time(),
		IsGroup:      m.Chat.Type == tele.ChatGroup || m.Chat.Type == tele.ChatSuperGroup,
	}
}

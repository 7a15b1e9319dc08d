package transport

import (
	"context"
	"strconv"
	"time"
)

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

// Message is a single chat message observed by the adapter.
type Message struct {
	ID           int
	Chat         ChatTarget
	ChatTitle    string
	FromID       int64
	FromUsername string
	FromDisplay  string
	FromBot      bool
	Text         string
	At           time.Time
	IsGroup      bool
}

// ChatTarget identifies a chat, optionally narrowed to a forum topic thread.
// A bare chat (ThreadID == 0) is the "group" scope; chat+thread is the
// "channel" scope.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// Key returns a stable string form usable as a scope identifier.
func (t ChatTarget) Key() string {
	if t.ThreadID == 0 {
		return strconv.FormatInt(t.ChatID, 10)
	}
	return strconv.FormatInt(t.ChatID, 10) + ":" + strconv.Itoa(t.ThreadID)
}

// Group returns the target widened to the whole chat (thread stripped).
func (t ChatTarget) Group() ChatTarget { return ChatTarget{ChatID: t.ChatID} }

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	// SendDirect delivers a private message to a user (used for notifications).
	SendDirect(ctx context.Context, userID int64, text string, opt *SendOptions) (MessageRef, error)
}

// HistorySource serves the most recent messages of a chat, newest-first.
//
// The Telegram Bot API cannot fetch history, so the adapter answers this from
// an in-memory ring filled by incoming updates. Fewer than limit messages may
// be returned for chats the bot joined recently.
type HistorySource interface {
	Recent(ctx context.Context, chat ChatTarget, limit int) ([]Message, error)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}

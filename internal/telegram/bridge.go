// Package telegram lets investigators question an incident from a Telegram
// chat. Each chat keeps its own playback cursor and chat session.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"incident-review/internal/assistant"
	"incident-review/internal/timeline"
)

const (
	maxTelegramMessage = 4096
	channelName        = "telegram"
)

var errBadSeek = errors.New("usage: /seek <seconds>")

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type chatState struct {
	sessionID string
	cursor    float64
}

// Bridge answers Telegram messages with the incident assistant.
type Bridge struct {
	bot      *tgbotapi.BotAPI
	send     sender
	chat     *assistant.Service
	duration float64

	mu    sync.Mutex
	chats map[int64]*chatState
}

// New connects to the Bot API with token.
func New(token string, chat *assistant.Service, duration float64) (*Bridge, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	b := newBridge(bot, chat, duration)
	b.bot = bot
	return b, nil
}

func newBridge(s sender, chat *assistant.Service, duration float64) *Bridge {
	return &Bridge{
		send:     s,
		chat:     chat,
		duration: duration,
		chats:    make(map[int64]*chatState),
	}
}

// Start long-polls for updates until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	slog.Info("telegram bridge started", "bot", b.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			b.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			slog.Info("telegram bridge stopped")
			return nil
		}
	}
}

func (b *Bridge) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	st, err := b.state(ctx, chatID)
	if err != nil {
		slog.Error("open telegram chat session", "chat", chatID, "error", err)
		b.sendResponse(chatID, "Sorry, I could not open a session for this chat.")
		return
	}

	_, reply, err := b.chat.Ask(ctx, st.sessionID, st.cursor, msg.Text)
	if err != nil {
		slog.Error("answer telegram message", "chat", chatID, "error", err)
		b.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
		return
	}
	if reply.Content == "" {
		b.sendResponse(chatID, fmt.Sprintf("%s (%.1fs).", timeline.NoSampleMessage, st.cursor))
		return
	}
	b.sendResponse(chatID, reply.Content)
}

func (b *Bridge) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.reset(chatID)
		if _, err := b.state(ctx, chatID); err != nil {
			slog.Error("open telegram chat session", "chat", chatID, "error", err)
		}
		b.sendResponse(chatID, assistant.Greeting)

	case "seek":
		t, err := parseSeek(msg.CommandArguments())
		if err != nil {
			b.sendResponse(chatID, err.Error())
			return
		}
		st, err := b.state(ctx, chatID)
		if err != nil {
			b.sendResponse(chatID, "Sorry, I could not open a session for this chat.")
			return
		}
		b.mu.Lock()
		st.cursor = t
		b.mu.Unlock()
		b.sendResponse(chatID, fmt.Sprintf("Cursor moved to %.1fs.", t))

	case "time":
		st, err := b.state(ctx, chatID)
		if err != nil {
			b.sendResponse(chatID, "Sorry, I could not open a session for this chat.")
			return
		}
		b.sendResponse(chatID, fmt.Sprintf("Cursor is at %.1fs of %.1fs.", b.cursor(st), b.duration))

	default:
		b.sendResponse(chatID, "Unknown command. Available: /start, /seek <seconds>, /time")
	}
}

// state returns the chat's state, opening a chat session on first use.
func (b *Bridge) state(ctx context.Context, chatID int64) (*chatState, error) {
	b.mu.Lock()
	st, ok := b.chats[chatID]
	b.mu.Unlock()
	if ok {
		return st, nil
	}

	session, _, err := b.chat.StartSession(ctx, channelName)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.chats[chatID]; ok {
		return existing, nil
	}
	st = &chatState{sessionID: session.ID}
	b.chats[chatID] = st
	return st, nil
}

func (b *Bridge) cursor(st *chatState) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return st.cursor
}

func (b *Bridge) reset(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.chats, chatID)
}

func (b *Bridge) sendResponse(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		if _, err := b.send.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			slog.Error("send telegram message", "chat", chatID, "error", err)
		}
	}
}

// parseSeek reads a cursor position. Positions outside the timeline are kept
// so questions there get the missing-sample notice.
func parseSeek(args string) (float64, error) {
	args = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(args), "s"))
	if args == "" {
		return 0, errBadSeek
	}
	t, err := strconv.ParseFloat(args, 64)
	if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, errBadSeek
	}
	return t, nil
}

// splitMessage cuts text into Telegram-sized parts on rune boundaries.
func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end >= len(text) {
			end = len(text)
		} else {
			for end > 0 && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

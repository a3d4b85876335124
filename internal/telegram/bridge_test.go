package telegram

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"incident-review/internal/assistant"
	"incident-review/internal/dataset"
	"incident-review/internal/db"
	"incident-review/internal/timeline"
)

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

func newTestBridge(t *testing.T) (*Bridge, *fakeSender, *db.Database) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "tg.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	inc := dataset.Incident("")
	if err := database.UpsertIncident(ctx, &inc); err != nil {
		t.Fatalf("upsert incident: %v", err)
	}
	samples, _ := dataset.Generate()
	fake := &fakeSender{}
	chat := assistant.NewService(database, inc.ID, samples, nil)
	return newBridge(fake, chat, timeline.Duration(samples)), fake, database
}

func message(chatID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chatID}}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func TestStartSendsGreeting(t *testing.T) {
	b, fake, _ := newTestBridge(t)
	b.handleMessage(context.Background(), message(1, "/start"))
	if fake.last() != assistant.Greeting {
		t.Errorf("expected greeting, got %q", fake.last())
	}
}

func TestSeekThenAsk(t *testing.T) {
	b, fake, database := newTestBridge(t)
	ctx := context.Background()

	b.handleMessage(ctx, message(7, "/seek 25"))
	if fake.last() != "Cursor moved to 25.0s." {
		t.Errorf("unexpected seek reply %q", fake.last())
	}
	b.handleMessage(ctx, message(7, "/time"))
	if !strings.HasPrefix(fake.last(), "Cursor is at 25.0s") {
		t.Errorf("unexpected time reply %q", fake.last())
	}

	b.handleMessage(ctx, message(7, "Did the airbag deploy?"))
	if fake.last() != "At 25.0s, airbags were deployed." {
		t.Errorf("unexpected answer %q", fake.last())
	}

	stats, err := database.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["chat_sessions"] != int64(1) {
		t.Errorf("expected one persisted session, got %v", stats["chat_sessions"])
	}
}

func TestAskBetweenSamples(t *testing.T) {
	b, fake, _ := newTestBridge(t)
	ctx := context.Background()

	b.handleMessage(ctx, message(3, "/seek 24.25"))
	b.handleMessage(ctx, message(3, "speed?"))
	if !strings.HasPrefix(fake.last(), timeline.NoSampleMessage) {
		t.Errorf("expected missing-sample notice, got %q", fake.last())
	}
}

func TestAskPastTimeline(t *testing.T) {
	b, fake, _ := newTestBridge(t)
	ctx := context.Background()

	b.handleMessage(ctx, message(4, "/seek 60"))
	if fake.last() != "Cursor moved to 60.0s." {
		t.Errorf("unexpected seek reply %q", fake.last())
	}
	b.handleMessage(ctx, message(4, "How fast was it going?"))
	if fake.last() != timeline.NoSampleMessage+" (60.0s)." {
		t.Errorf("expected missing-sample notice, got %q", fake.last())
	}
}

func TestParseSeek(t *testing.T) {
	tests := []struct {
		args    string
		want    float64
		wantErr bool
	}{
		{"25", 25, false},
		{" 12.5s ", 12.5, false},
		{"-3", -3, false},
		{"999", 999, false},
		{"", 0, true},
		{"soon", 0, true},
		{"NaN", 0, true},
	}
	for _, tt := range tests {
		got, err := parseSeek(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSeek(%q) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSeek(%q) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestSplitMessage(t *testing.T) {
	if parts := splitMessage("short"); len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}

	long := strings.Repeat("a", 5000)
	parts := splitMessage(long)
	if len(parts) != 2 || len(parts[0]) != maxTelegramMessage {
		t.Fatalf("expected split at %d, got %d parts", maxTelegramMessage, len(parts))
	}

	runes := strings.Repeat("é", 3000)
	for _, p := range splitMessage(runes) {
		if !strings.HasPrefix(p, "é") || len(p) > maxTelegramMessage {
			t.Errorf("part not split on a rune boundary")
		}
	}
}

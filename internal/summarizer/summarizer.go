// Package summarizer generates the rolling weekly and monthly chat digests
// the context builder folds into the system prompt.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gryag-bot/gryag/internal/llm"
	"github.com/gryag-bot/gryag/internal/store"
)

// maxSummaryMessages bounds how many messages feed one summary request.
const maxSummaryMessages = 500

// Completer is the slice of the llm client the summarizer needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Config tunes summary generation.
type Config struct {
	// Model overrides the client default for summarization when set.
	Model string
	// WeeklyMaxTokens and MonthlyMaxTokens cap the generated digests.
	WeeklyMaxTokens  int
	MonthlyMaxTokens int
}

type Summarizer struct {
	store  *store.Store
	client Completer
	cfg    Config

	now func() time.Time
}

func New(s *store.Store, client Completer, cfg Config) *Summarizer {
	if cfg.WeeklyMaxTokens <= 0 {
		cfg.WeeklyMaxTokens = 500
	}
	if cfg.MonthlyMaxTokens <= 0 {
		cfg.MonthlyMaxTokens = 1000
	}
	return &Summarizer{store: s, client: client, cfg: cfg, now: time.Now}
}

// Generate summarizes one chat's messages over the window the kind implies
// and stores the result. A chat with no messages in the window is skipped
// without error.
func (s *Summarizer) Generate(ctx context.Context, chatID int64, kind string) error {
	var days, maxTokens int
	switch kind {
	case store.SummaryWeekly:
		days, maxTokens = 7, s.cfg.WeeklyMaxTokens
	case store.SummaryMonthly:
		days, maxTokens = 30, s.cfg.MonthlyMaxTokens
	default:
		return fmt.Errorf("unknown summary kind %q", kind)
	}

	end := s.now().UTC()
	start := end.AddDate(0, 0, -days)

	msgs, err := s.store.MessagesSince(ctx, chatID, start)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) > maxSummaryMessages {
		msgs = msgs[len(msgs)-maxSummaryMessages:]
	}

	content, err := s.client.Complete(ctx, llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: buildPrompt(msgs, days)}},
		Model:     s.cfg.Model,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return fmt.Errorf("summarize chat %d: %w", chatID, err)
	}

	if err := s.store.PutSummary(ctx, store.Summary{
		ChatID:      chatID,
		Kind:        kind,
		Content:     content,
		PeriodStart: start,
		PeriodEnd:   end,
	}); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}

	slog.Info("summary generated", "chat_id", chatID, "kind", kind, "messages", len(msgs))
	return nil
}

// GenerateAll runs one kind of summary for every known chat. Failures are
// logged per chat and do not stop the sweep.
func (s *Summarizer) GenerateAll(ctx context.Context, kind string) {
	chatIDs, err := s.store.ListChatIDs(ctx)
	if err != nil {
		slog.Error("list chats for summaries", "error", err)
		return
	}
	for _, chatID := range chatIDs {
		if err := s.Generate(ctx, chatID, kind); err != nil {
			slog.Error("generate summary", "chat_id", chatID, "kind", kind, "error", err)
		}
	}
}

func buildPrompt(msgs []store.Message, days int) string {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("[")
		sb.WriteString(m.CreatedAt.Format("2006-01-02"))
		sb.WriteString("] ")
		sb.WriteString(truncate(m.Content, 200))
	}

	return fmt.Sprintf(`Підсумуй наступний контекст чату за останні %d днів.
Зосередься на ключових темах, учасниках та важливих подіях.
Будь лаконічним, але інформативним.

Контекст:
%s

Підсумок:`, days, sb.String())
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gryag-bot/gryag/internal/llm"
	"github.com/gryag-bot/gryag/internal/store"
	"github.com/gryag-bot/gryag/internal/tools"
)

// BuilderConfig configures context assembly.
type BuilderConfig struct {
	PromptFile      string
	BotName         string
	BotUsername     string
	TriggerKeywords []string
	HistoryLimit    int
	MaxUserFacts    int
}

// Builder assembles the model-facing transcript for one turn: system prompt
// with substituted variables and background summaries, recent history as
// structured turns, and an optional trailing image turn.
type Builder struct {
	store    *store.Store
	registry *tools.Registry
	cfg      BuilderConfig

	mentionRe  *regexp.Regexp
	keywordRes []*regexp.Regexp

	now func() time.Time
}

// BuildRequest identifies the turn being assembled.
type BuildRequest struct {
	ChatID      int64
	UserID      int64
	ChatTitle   string
	ChatType    string
	MemberCount int

	// ReplyImageURL is a fetchable URL for the image the triggering message
	// replied to, resolved by the transport. Empty when there is none.
	ReplyImageURL string
}

func NewBuilder(s *store.Store, registry *tools.Registry, cfg BuilderConfig) *Builder {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 200
	}
	if cfg.MaxUserFacts <= 0 {
		cfg.MaxUserFacts = 15
	}

	b := &Builder{
		store:    s,
		registry: registry,
		cfg:      cfg,
		now:      time.Now,
	}
	if cfg.BotUsername != "" {
		b.mentionRe = regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(cfg.BotUsername) + `\b`)
	}
	for _, kw := range cfg.TriggerKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		b.keywordRes = append(b.keywordRes, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(kw)))
	}
	return b
}

// Build assembles the transcript. The result always starts with exactly one
// system turn and is deterministic for identical inputs within the same
// timestamp second.
func (b *Builder) Build(ctx context.Context, req BuildRequest) ([]llm.Message, error) {
	systemPrompt, err := b.systemPrompt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("build system prompt: %w", err)
	}

	if summaries := b.summaries(ctx, req.ChatID); summaries != "" {
		systemPrompt += "\n\n" + summaries
	}

	transcript := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}

	history, err := b.history(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("build history: %w", err)
	}
	transcript = append(transcript, history...)

	if req.ReplyImageURL != "" {
		transcript = append(transcript, llm.Message{
			Role:    llm.RoleUser,
			Content: "I am replying to this image:",
			Images:  []llm.ImageRef{{URL: req.ReplyImageURL}},
		})
	}

	return transcript, nil
}

func (b *Builder) systemPrompt(ctx context.Context, req BuildRequest) (string, error) {
	user, err := b.store.GetUser(ctx, req.UserID)
	if err != nil {
		return "", err
	}

	facts, err := b.store.ListFacts(ctx, req.UserID, b.cfg.MaxUserFacts)
	if err != nil {
		return "", err
	}
	var memories strings.Builder
	for i, f := range facts {
		if i > 0 {
			memories.WriteByte('\n')
		}
		memories.WriteString("- ")
		memories.WriteString(f.Fact)
	}

	var toolLines []string
	for _, def := range b.registry.Schemas() {
		toolLines = append(toolLines, fmt.Sprintf("- `%s`: %s", def.Function.Name, def.Function.Description))
	}

	chatName := req.ChatTitle
	if chatName == "" {
		chatName = "Private Chat"
	}
	username, fullName, pronouns := "", "Unknown", ""
	if user != nil {
		username = user.Username
		fullName = user.FullName
		pronouns = user.Pronouns
	}

	now := b.now()
	vars := map[string]string{
		"chatname":      chatName,
		"chatid":        strconv.FormatInt(req.ChatID, 10),
		"chattype":      req.ChatType,
		"username":      username,
		"userfullname":  fullName,
		"userid":        strconv.FormatInt(req.UserID, 10),
		"timestamp":     now.Format("2006-01-02 15:04:05"),
		"date":          now.Format("2006-01-02"),
		"time":          now.Format("15:04"),
		"botname":       b.cfg.BotName,
		"botusername":   b.cfg.BotUsername,
		"membercount":   strconv.Itoa(req.MemberCount),
		"tools":         strings.Join(toolLines, "\n"),
		"user_memories": memories.String(),
		"user_pronouns": pronouns,
	}
	return LoadSystemPrompt(b.cfg.PromptFile, vars), nil
}

// summaries returns the monthly and weekly chat digests as a text block, or
// "" when neither exists. Missing summaries are not an error.
func (b *Builder) summaries(ctx context.Context, chatID int64) string {
	var parts []string

	monthly, err := b.store.LatestSummary(ctx, chatID, store.SummaryMonthly)
	if err != nil {
		slog.Error("load monthly summary", "chat_id", chatID, "error", err)
	} else if monthly != nil {
		parts = append(parts, "## Контекст за місяць\n"+monthly.Content)
	}

	weekly, err := b.store.LatestSummary(ctx, chatID, store.SummaryWeekly)
	if err != nil {
		slog.Error("load weekly summary", "chat_id", chatID, "error", err)
	} else if weekly != nil {
		parts = append(parts, "## Контекст за тиждень\n"+weekly.Content)
	}

	return strings.Join(parts, "\n\n")
}

func (b *Builder) history(ctx context.Context, req BuildRequest) ([]llm.Message, error) {
	msgs, err := b.store.RecentMessages(ctx, req.ChatID, b.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	byTGID := make(map[int64]store.Message, len(msgs))
	for _, m := range msgs {
		byTGID[m.TGMessageID] = m
	}

	isGroup := req.ChatType == "group" || req.ChatType == "supergroup"
	userCache := make(map[int64]*store.User)

	var (
		out           []llm.Message
		seenBotPrefix = make(map[string]bool)
		botCount      int
	)
	for _, m := range msgs {
		if m.IsBot {
			// Collapse repeated bot answers and cap how many are surfaced,
			// so old repetition does not feed back into the model.
			prefix := contentPrefix(m.Content, 200)
			if seenBotPrefix[prefix] {
				continue
			}
			seenBotPrefix[prefix] = true
			if botCount >= 3 {
				continue
			}
			botCount++
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
			continue
		}

		content := m.Content
		if isGroup {
			content = b.stripTriggers(content)
			if content == "" {
				continue
			}
		}

		user, cached := userCache[m.UserID]
		if !cached && m.UserID != 0 {
			user, err = b.store.GetUser(ctx, m.UserID)
			if err != nil {
				return nil, err
			}
			userCache[m.UserID] = user
		}

		fullName, username := "Unknown", ""
		if user != nil {
			fullName = user.FullName
			username = user.Username
		}
		prefix := "[" + fullName + "]"
		if username != "" {
			prefix = fmt.Sprintf("[%s (@%s)]", fullName, username)
		}

		replyInfo := ""
		if m.ReplyToID != 0 {
			if replied, ok := byTGID[m.ReplyToID]; ok {
				replyInfo = fmt.Sprintf(" (replying to %q)", contentPrefix(replied.Content, 50)+ellipsis(replied.Content, 50))
			}
		}

		out = append(out, llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("%s%s: %s", prefix, replyInfo, content),
		})
	}
	return out, nil
}

// stripTriggers removes the bot's mention and trigger keywords from a group
// message so the model answers the substantive remainder.
func (b *Builder) stripTriggers(text string) string {
	result := text
	if b.mentionRe != nil {
		result = b.mentionRe.ReplaceAllString(result, "")
	}
	for _, re := range b.keywordRes {
		result = re.ReplaceAllString(result, "")
	}
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ",.:;!?-–— \t\n")
	return strings.TrimSpace(result)
}

// contentPrefix returns the first max runes of s.
func contentPrefix(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func ellipsis(s string, max int) string {
	if len([]rune(s)) > max {
		return "..."
	}
	return ""
}

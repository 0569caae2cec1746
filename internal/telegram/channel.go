// Package telegram connects the agent to the Telegram Bot API via long
// polling: it decides which messages address the bot, records history,
// runs the agent loop, and replies.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/gryag-bot/gryag/internal/agent"
	"github.com/gryag-bot/gryag/internal/llm"
	"github.com/gryag-bot/gryag/internal/store"
)

// maxStoredResponse caps how much of a bot answer is persisted to history.
const maxStoredResponse = 4000

// Config holds channel-level settings.
type Config struct {
	Token           string
	TriggerKeywords []string
	TypingIndicator bool
}

// Deps are the collaborators the channel dispatches into.
type Deps struct {
	Store   *store.Store
	Builder *agent.Builder
	Loop    *agent.Loop
	Gate    *agent.Gate
	Limiter *Limiter
}

// Channel polls Telegram for updates and answers the messages that address
// the bot.
type Channel struct {
	bot     *telego.Bot
	cfg     Config
	matcher *Matcher

	store   *store.Store
	builder *agent.Builder
	loop    *agent.Loop
	gate    *agent.Gate
	limiter *Limiter

	pollCancel context.CancelFunc
	pollDone   chan struct{}
	handlers   sync.WaitGroup
}

// New wraps an already-constructed bot. The trigger matcher is derived from
// the configured keywords and the bot's own username.
func New(bot *telego.Bot, cfg Config, deps Deps) *Channel {
	return &Channel{
		bot:     bot,
		cfg:     cfg,
		matcher: NewMatcher(cfg.TriggerKeywords, bot.Username()),
		store:   deps.Store,
		builder: deps.Builder,
		loop:    deps.Loop,
		gate:    deps.Gate,
		limiter: deps.Limiter,
	}
}

// Start begins long polling. It returns once polling is established; updates
// are consumed on a background goroutine until Stop or context cancellation.
func (c *Channel) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	slog.Info("telegram bot connected", "username", c.bot.Username())

	go func() {
		defer close(c.pollDone)
		consumeUpdates(pollCtx, updates, &c.handlers, func(update telego.Update) {
			if update.Message != nil {
				c.handleMessage(pollCtx, update.Message)
			}
		})
	}()

	return nil
}

// consumeUpdates dispatches each update on its own goroutine so a slow turn
// in one chat never delays another, and a second message from the same
// (chat, user) hits the gate instead of waiting in line behind it.
func consumeUpdates(ctx context.Context, updates <-chan telego.Update, wg *sync.WaitGroup, handle func(telego.Update)) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				slog.Info("telegram updates channel closed")
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				handle(update)
			}()
		}
	}
}

// Stop cancels long polling and waits for the update consumer and any
// in-flight handlers to finish, so Telegram releases the getUpdates lock
// before a new instance starts.
func (c *Channel) Stop() {
	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone == nil {
		return
	}
	drained := make(chan struct{})
	go func() {
		<-c.pollDone
		c.handlers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		slog.Info("telegram bot stopped")
	case <-time.After(10 * time.Second):
		slog.Warn("telegram handlers did not drain within timeout")
	}
}

func (c *Channel) handleMessage(ctx context.Context, msg *telego.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if strings.HasPrefix(msg.Text, "/") {
		c.handleCommand(ctx, msg)
		return
	}
	// Service messages (pins, joins) are not conversation.
	if text == "" && len(msg.Photo) == 0 {
		return
	}

	chatID, userID := msg.Chat.ID, msg.From.ID
	replyToBot := msg.ReplyToMessage != nil &&
		msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.Username == c.bot.Username()
	respond := c.matcher.ShouldRespond(msg.Chat.Type, text, replyToBot)

	members := c.memberCount(ctx, msg.Chat)
	c.recordIncoming(ctx, msg, text, members, respond)

	if !respond {
		return
	}

	if !c.gate.TryAcquire(chatID, userID) {
		slog.Debug("turn already in flight, skipping", "chat_id", chatID, "user_id", userID)
		return
	}
	defer c.gate.Release(chatID, userID)

	if allowed, wait := c.limiter.Allow(userID); !allowed {
		c.reply(ctx, msg, RejectionMessage(wait))
		return
	}

	turnID := uuid.NewString()
	slog.Info("turn started", "turn_id", turnID, "chat_id", chatID, "user_id", userID, "chat_type", msg.Chat.Type)

	if c.cfg.TypingIndicator {
		if err := c.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil {
			slog.Debug("send typing action", "error", err)
		}
	}

	transcript, err := c.builder.Build(ctx, agent.BuildRequest{
		ChatID:        chatID,
		UserID:        userID,
		ChatTitle:     msg.Chat.Title,
		ChatType:      msg.Chat.Type,
		MemberCount:   members,
		ReplyImageURL: c.replyImageURL(ctx, msg),
	})
	if err != nil {
		slog.Error("build context", "chat_id", chatID, "error", err)
		c.reply(ctx, msg, "❌ "+apologyFor(err))
		return
	}

	answer, err := c.loop.Run(ctx, agent.TurnRequest{
		ChatID:     chatID,
		UserID:     userID,
		UserText:   text,
		Transcript: transcript,
	})
	if err != nil {
		slog.Error("agent turn failed", "turn_id", turnID, "chat_id", chatID, "user_id", userID, "error", err)
		prefix := "❌ "
		if llm.KindOf(err) != "" {
			prefix = "⚠️ "
		}
		c.reply(ctx, msg, prefix+apologyFor(err))
		return
	}

	sent := c.reply(ctx, msg, answer)
	if sent == nil {
		return
	}
	slog.Info("turn answered", "turn_id", turnID, "chat_id", chatID, "answer_len", len(answer))
	stored := store.Message{
		TGMessageID: int64(sent.MessageID),
		ChatID:      chatID,
		Content:     contentPrefix(answer, maxStoredResponse),
		ContentType: "text",
		ReplyToID:   int64(msg.MessageID),
		IsBot:       true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.store.AddMessage(ctx, stored); err != nil {
		slog.Error("store bot response", "chat_id", chatID, "error", err)
	}
}

const startReply = "Привіт! Я Гряг 🤖\n" +
	"Пиши мені що завгодно — відповім, порахую, знайду погоду чи запам'ятаю факт про тебе.\n\n" +
	"Команди: /memories — що я пам'ятаю про тебе."

// handleCommand answers the couple of commands the bot supports. Everything
// else addressed as a command is ignored.
func (c *Channel) handleCommand(ctx context.Context, msg *telego.Message) {
	cmd := strings.ToLower(msg.Text)
	if i := strings.IndexAny(cmd, " @"); i > 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/start", "/help":
		c.reply(ctx, msg, startReply)
	case "/memories":
		facts, err := c.store.ListFacts(ctx, msg.From.ID, 0)
		if err != nil {
			slog.Error("list facts", "user_id", msg.From.ID, "error", err)
			c.reply(ctx, msg, "❌ "+apologyFor(err))
			return
		}
		c.reply(ctx, msg, formatMemories(facts))
	}
}

// formatMemories renders the user's stored facts as a numbered list.
func formatMemories(facts []store.Fact) string {
	if len(facts) == 0 {
		return "🧠 Я поки що не пам'ятаю нічого особливого про тебе."
	}
	var sb strings.Builder
	sb.WriteString("🧠 Що я пам'ятаю про тебе:\n")
	for i, f := range facts {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, f.Fact)
	}
	return sb.String()
}

// recordIncoming upserts the sender and chat and persists the message.
// Trigger-only pings are answered but never stored. Storage failures are
// logged, not fatal: answering matters more than the archive.
func (c *Channel) recordIncoming(ctx context.Context, msg *telego.Message, text string, members int, respond bool) {
	fullName := msg.From.FirstName
	if msg.From.LastName != "" {
		fullName += " " + msg.From.LastName
	}
	err := c.store.UpsertUser(ctx, store.User{
		ID:       msg.From.ID,
		Username: msg.From.Username,
		FullName: fullName,
	})
	if err != nil {
		slog.Error("upsert user", "user_id", msg.From.ID, "error", err)
	}

	title := msg.Chat.Title
	if title == "" {
		title = fullName
	}
	err = c.store.UpsertChat(ctx, store.Chat{
		ID:          msg.Chat.ID,
		Title:       title,
		Type:        msg.Chat.Type,
		MemberCount: members,
	})
	if err != nil {
		slog.Error("upsert chat", "chat_id", msg.Chat.ID, "error", err)
	}

	if respond && c.matcher.IsTriggerOnly(text) {
		return
	}

	content, contentType := text, "text"
	if len(msg.Photo) > 0 {
		contentType = "photo"
		if content == "" {
			content = "[Photo]"
		}
	}
	var replyToID int64
	if msg.ReplyToMessage != nil {
		replyToID = int64(msg.ReplyToMessage.MessageID)
	}
	err = c.store.AddMessage(ctx, store.Message{
		TGMessageID: int64(msg.MessageID),
		ChatID:      msg.Chat.ID,
		UserID:      msg.From.ID,
		Content:     content,
		ContentType: contentType,
		ReplyToID:   replyToID,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		slog.Error("store message", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (c *Channel) memberCount(ctx context.Context, chat telego.Chat) int {
	if chat.Type != "group" && chat.Type != "supergroup" {
		return 0
	}
	count, err := c.bot.GetChatMemberCount(ctx, &telego.GetChatMemberCountParams{ChatID: tu.ID(chat.ID)})
	if err != nil || count == nil {
		slog.Debug("get chat member count", "chat_id", chat.ID, "error", err)
		return 0
	}
	return *count
}

// replyImageURL resolves a fetchable URL for the photo the triggering
// message replied to, or "" when there is none or resolution fails.
func (c *Channel) replyImageURL(ctx context.Context, msg *telego.Message) string {
	if msg.ReplyToMessage == nil || len(msg.ReplyToMessage.Photo) == 0 {
		return ""
	}
	// The last photo size is the largest.
	largest := msg.ReplyToMessage.Photo[len(msg.ReplyToMessage.Photo)-1]
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: largest.FileID})
	if err != nil || file.FilePath == "" {
		slog.Warn("resolve reply photo", "file_id", largest.FileID, "error", err)
		return ""
	}
	return fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", c.cfg.Token, file.FilePath)
}

func (c *Channel) reply(ctx context.Context, to *telego.Message, text string) *telego.Message {
	params := tu.Message(tu.ID(to.Chat.ID), text)
	params.ReplyParameters = &telego.ReplyParameters{MessageID: to.MessageID}
	sent, err := c.bot.SendMessage(ctx, params)
	if err != nil {
		slog.Error("send reply", "chat_id", to.Chat.ID, "error", err)
		return nil
	}
	return sent
}

// apologyFor maps a turn failure to its user-facing message.
func apologyFor(err error) string {
	switch llm.KindOf(err) {
	case llm.KindTimedOut:
		return "Я занадто довго думаю... Спробуй ще раз? 🤔"
	case llm.KindRateLimited:
		return "API зайнятий. Зачекай хвильку. ⏳"
	case llm.KindModelUnavailable:
		return "Переключаюсь на запасну модель... 🔄"
	default:
		return "Упс, щось пішло не так. Спробуй ще раз. 😅"
	}
}

// contentPrefix returns the first max runes of s.
func contentPrefix(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

package telegram

import (
	"regexp"
	"strings"
)

// triggerTrimSet is stripped from the remainder when deciding whether a
// message carried anything beyond the trigger itself.
const triggerTrimSet = ".,:;!?-–— \n\t"

// Matcher decides whether an incoming message addresses the bot. Private
// chats always do; group chats need a trigger keyword, an @mention, or a
// reply to one of the bot's messages.
type Matcher struct {
	keywords   []string
	mention    string
	keywordRes []*regexp.Regexp
	mentionRe  *regexp.Regexp
}

func NewMatcher(keywords []string, botUsername string) *Matcher {
	m := &Matcher{}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		m.keywords = append(m.keywords, strings.ToLower(kw))
		m.keywordRes = append(m.keywordRes, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(kw)))
	}
	if botUsername != "" {
		m.mention = "@" + strings.ToLower(botUsername)
		m.mentionRe = regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(botUsername) + `\b`)
	}
	return m
}

// ShouldRespond reports whether the bot should answer a message with the
// given text. replyToBot is true when the message replies to the bot.
func (m *Matcher) ShouldRespond(chatType, text string, replyToBot bool) bool {
	if chatType == "private" {
		return true
	}
	if replyToBot {
		return true
	}

	lowered := strings.ToLower(text)
	for _, kw := range m.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return m.mention != "" && strings.Contains(lowered, m.mention)
}

// IsTriggerOnly reports whether the message is a bare ping: nothing is left
// once the keywords, the mention, and surrounding punctuation are removed.
// Such messages are answered but not stored, so they do not pollute history.
func (m *Matcher) IsTriggerOnly(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	rest := text
	if m.mentionRe != nil {
		rest = m.mentionRe.ReplaceAllString(rest, "")
	}
	for _, re := range m.keywordRes {
		rest = re.ReplaceAllString(rest, "")
	}
	rest = strings.TrimSpace(rest)
	rest = strings.Trim(rest, triggerTrimSet)
	return rest == ""
}

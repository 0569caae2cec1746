package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/gryag-bot/gryag/internal/store"
)

// factMatchStopWords are filler words stripped before keyword matching, so
// "забудь про той факт з горами" still finds the fact about mountains.
var factMatchStopWords = map[string]bool{
	"про": true, "то": true, "той": true, "факт": true,
	"about": true, "the": true, "that": true, "fact": true,
}

// SaveFactTool persists a fact about the calling user.
type SaveFactTool struct {
	store *store.Store
}

func NewSaveFactTool(s *store.Store) *SaveFactTool { return &SaveFactTool{store: s} }

func (t *SaveFactTool) Name() string { return "save_user_fact" }

func (t *SaveFactTool) Description() string {
	return "MANDATORY: Save a fact about the user to long-term storage. You MUST call this when: (1) user says 'запам'ятай' / 'remember' / 'запам'ятай що', (2) user tells you a personal fact (location, preferences, name, etc.), (3) user says 'I live in...' / 'я живу в...' / 'I like...' / 'я люблю...'. DO NOT just say you remembered - YOU MUST CALL THIS TOOL. The fact is NOT saved until you call this function."
}

func (t *SaveFactTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fact": map[string]any{
				"type":        "string",
				"description": "The fact to save.",
			},
		},
		"required": []string{"fact"},
	}
}

func (t *SaveFactTool) Execute(ctx context.Context, args map[string]any, caller Caller) *Result {
	if caller.UserID == 0 {
		return Failed("User ID required for memory operations.")
	}
	fact, _ := args["fact"].(string)
	if strings.TrimSpace(fact) == "" {
		return Failed("fact is required")
	}

	if err := t.store.AddFact(ctx, caller.UserID, fact); err != nil {
		return Failed(fmt.Sprintf("Failed to save fact: %v", err))
	}
	return OKData(fmt.Sprintf("Fact saved: %s", fact), map[string]any{"fact": fact})
}

// GetFactsTool returns the stored facts for the calling user, optionally
// filtered by a substring query.
type GetFactsTool struct {
	store *store.Store
}

func NewGetFactsTool(s *store.Store) *GetFactsTool { return &GetFactsTool{store: s} }

func (t *GetFactsTool) Name() string { return "get_user_facts" }

func (t *GetFactsTool) Description() string {
	return "Retrieve all saved facts about the user."
}

func (t *GetFactsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Optional search query.",
			},
		},
	}
}

func (t *GetFactsTool) Execute(ctx context.Context, args map[string]any, caller Caller) *Result {
	if caller.UserID == 0 {
		return Failed("User ID required for memory operations.")
	}

	facts, err := t.store.ListFacts(ctx, caller.UserID, 0)
	if err != nil {
		return Failed(fmt.Sprintf("Failed to get facts: %v", err))
	}
	if len(facts) == 0 {
		return OKData("No facts found about this user.", []string{})
	}

	query, _ := args["query"].(string)
	var matched []string
	for _, f := range facts {
		if query == "" || strings.Contains(strings.ToLower(f.Fact), strings.ToLower(query)) {
			matched = append(matched, f.Fact)
		}
	}

	var sb strings.Builder
	sb.WriteString("Known facts:")
	for _, f := range matched {
		sb.WriteString("\n- ")
		sb.WriteString(f)
	}
	return OKData(sb.String(), matched)
}

// DeleteFactTool removes one fact for the calling user, matching exactly
// first, then by substring, then by keyword.
type DeleteFactTool struct {
	store *store.Store
}

func NewDeleteFactTool(s *store.Store) *DeleteFactTool { return &DeleteFactTool{store: s} }

func (t *DeleteFactTool) Name() string { return "delete_user_fact" }

func (t *DeleteFactTool) Description() string {
	return "MANDATORY: Delete a specific fact about the user. You MUST call this when: (1) user says 'забудь' / 'forget' / 'забудь то' / 'забудь той факт', (2) user wants to remove incorrect information. ALWAYS call get_user_facts first to find the fact, then call this tool with the fact_text. DO NOT just say you forgot - YOU MUST CALL THIS TOOL. The fact is NOT deleted until you call this function."
}

func (t *DeleteFactTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fact_text": map[string]any{
				"type":        "string",
				"description": "The exact text of the fact to delete, or a partial match. If multiple facts match, the first one will be deleted.",
			},
		},
		"required": []string{"fact_text"},
	}
}

func (t *DeleteFactTool) Execute(ctx context.Context, args map[string]any, caller Caller) *Result {
	if caller.UserID == 0 {
		return Failed("User ID required for memory operations.")
	}
	factText, _ := args["fact_text"].(string)
	if strings.TrimSpace(factText) == "" {
		return Failed("fact_text is required")
	}

	facts, err := t.store.ListFacts(ctx, caller.UserID, 0)
	if err != nil {
		return Failed(fmt.Sprintf("Failed to delete fact: %v", err))
	}
	if len(facts) == 0 {
		return Failed("No facts found to delete.")
	}

	matched := matchFact(facts, factText)
	if matched == nil {
		var available []string
		for i := 0; i < len(facts) && i < 5; i++ {
			available = append(available, "- "+facts[i].Fact)
		}
		return Failed(fmt.Sprintf("Fact not found: '%s'. Available facts:\n%s",
			factText, strings.Join(available, "\n")))
	}

	deleted, err := t.store.DeleteFact(ctx, caller.UserID, matched.ID)
	if err != nil || !deleted {
		return Failed("Failed to delete fact.")
	}
	return OKData(fmt.Sprintf("Fact deleted: %s", matched.Fact), map[string]any{"deleted_fact": matched.Fact})
}

// matchFact finds the stored fact a deletion request refers to: exact match
// first, then substring either way, then stop-word-filtered keywords.
func matchFact(facts []store.Fact, factText string) *store.Fact {
	wanted := strings.ToLower(strings.TrimSpace(factText))

	for i := range facts {
		if strings.ToLower(strings.TrimSpace(facts[i].Fact)) == wanted {
			return &facts[i]
		}
	}

	for i := range facts {
		stored := strings.ToLower(facts[i].Fact)
		if strings.Contains(stored, wanted) || strings.Contains(wanted, stored) {
			return &facts[i]
		}
	}

	var keywords []string
	for _, w := range strings.Fields(wanted) {
		if !factMatchStopWords[w] && len([]rune(w)) > 2 {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) > 0 {
		for i := range facts {
			stored := strings.ToLower(facts[i].Fact)
			for _, kw := range keywords {
				if strings.Contains(stored, kw) {
					return &facts[i]
				}
			}
		}
	}
	return nil
}

// DeleteAllFactsTool wipes every fact for the calling user.
type DeleteAllFactsTool struct {
	store *store.Store
}

func NewDeleteAllFactsTool(s *store.Store) *DeleteAllFactsTool {
	return &DeleteAllFactsTool{store: s}
}

func (t *DeleteAllFactsTool) Name() string { return "delete_all_user_facts" }

func (t *DeleteAllFactsTool) Description() string {
	return "MANDATORY: Delete ALL facts about the user. You MUST call this when: (1) user says 'забудь усе' / 'забудь все' / 'forget everything' / 'delete all', (2) user explicitly asks to forget everything they told you. DO NOT just say you deleted everything - YOU MUST CALL THIS TOOL. Nothing is deleted until you call this function."
}

func (t *DeleteAllFactsTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *DeleteAllFactsTool) Execute(ctx context.Context, _ map[string]any, caller Caller) *Result {
	if caller.UserID == 0 {
		return Failed("User ID required for memory operations.")
	}

	count, err := t.store.DeleteAllFacts(ctx, caller.UserID)
	if err != nil {
		return Failed(fmt.Sprintf("Failed to delete facts: %v", err))
	}
	return OKData(fmt.Sprintf("Deleted %d facts about this user.", count), map[string]any{"deleted_count": count})
}

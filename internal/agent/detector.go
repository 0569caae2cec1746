// Package agent contains the orchestration core: the per-turn tool-calling
// loop, the conversation context builder, the unbacked-claim detector, and
// the per-identity admission gate.
package agent

import "strings"

// Correction is the instruction injected when the model claims an effect it
// never produced through a tool call.
type Correction struct {
	Instruction string
}

// Detector decides whether a model response makes a memory claim that no
// tool call backs up. Called only for responses that carried zero tool
// calls. Implementations are heuristics; the loop treats a nil return as
// "response is fine".
type Detector interface {
	Detect(responseText, userText string) *Correction
}

// PhraseSets holds the substring lists the detector matches against, in
// Ukrainian and English. They are data, not logic: swap them to tune or
// disable detection.
type PhraseSets struct {
	// Response-side: the model claims it committed something to memory.
	RememberClaims []string
	// User-side: the user stated a personal fact or asked to remember.
	FactStatements []string

	// Response-side: the model claims it forgot or deleted.
	ForgetClaims []string
	// User-side: the user asked to forget or delete.
	ForgetRequests []string
	// User-side: the user asked to forget everything.
	DeleteAllRequests []string
}

// DefaultPhraseSets returns the stock Ukrainian/English phrase lists.
func DefaultPhraseSets() PhraseSets {
	return PhraseSets{
		RememberClaims: []string{
			"запам'ятав", "запам'ятала", "remembered", "i remember", "i'll remember", "збережу", "saved", "готово",
		},
		FactStatements: []string{
			"запам'ятай", "remember", "я живу", "i live", "я люблю", "i like", "я з", "i'm from",
		},
		ForgetClaims: []string{
			"забув", "забула", "forgot", "deleted", "видалено", "видалені", "removed", "видалив",
		},
		ForgetRequests: []string{
			"забудь", "forget", "видали", "delete", "забудь то", "забудь той",
		},
		DeleteAllRequests: []string{
			"забудь усе", "забудь все", "forget everything", "delete all", "видали все",
			"видали усе", "забудь усе що", "забудь все що", "forget all",
		},
	}
}

// Corrective instructions sent back to the model as system turns.
const (
	correctSaveFact = "ERROR: You said you remembered but did NOT call save_user_fact. You MUST call the tool. The fact is NOT saved. Call save_user_fact NOW with the fact the user told you."

	correctDeleteFact = "ERROR: You said you forgot/deleted but did NOT call delete_user_fact. You MUST call get_user_facts first to find the fact, then call delete_user_fact. The fact is NOT deleted. Call the tools NOW."

	correctDeleteAll = "ERROR: User asked to forget EVERYTHING ('забудь усе'), but you did NOT call delete_all_user_facts. You MUST call delete_all_user_facts NOW. Nothing is deleted until you call this tool."
)

// PhraseDetector matches phrase sets by case-insensitive substring.
type PhraseDetector struct {
	phrases PhraseSets
}

func NewPhraseDetector(phrases PhraseSets) *PhraseDetector {
	return &PhraseDetector{phrases: phrases}
}

func (d *PhraseDetector) Detect(responseText, userText string) *Correction {
	response := strings.ToLower(responseText)
	user := strings.ToLower(userText)

	if matchesAny(response, d.phrases.RememberClaims) && matchesAny(user, d.phrases.FactStatements) {
		return &Correction{Instruction: correctSaveFact}
	}

	if matchesAny(response, d.phrases.ForgetClaims) && matchesAny(user, d.phrases.ForgetRequests) {
		if matchesAny(user, d.phrases.DeleteAllRequests) {
			return &Correction{Instruction: correctDeleteAll}
		}
		return &Correction{Instruction: correctDeleteFact}
	}

	return nil
}

func matchesAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

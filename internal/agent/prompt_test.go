package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadSystemPromptFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.md")
	content := "Бот {botname} у чаті {chatname} о {timestamp}. Невідоме: {unknown}"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got := LoadSystemPrompt(path, map[string]string{
		"botname":   "Гряг",
		"chatname":  "Тест",
		"timestamp": "2025-06-01 12:00:00",
	})
	want := "Бот Гряг у чаті Тест о 2025-06-01 12:00:00. Невідоме: {unknown}"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadSystemPromptFallsBackToDefault(t *testing.T) {
	got := LoadSystemPrompt("/does/not/exist.md", map[string]string{
		"chatname":     "Тест",
		"chatid":       "5",
		"userfullname": "Olena K",
	})
	if !strings.Contains(got, "Тест (ID: 5)") {
		t.Errorf("default prompt missing chat context: %q", got)
	}
	if !strings.Contains(got, "Olena K") {
		t.Errorf("default prompt missing user: %q", got)
	}
	// Empty sections get their placeholders.
	if !strings.Contains(got, "Немає записів") {
		t.Errorf("default prompt missing memory placeholder: %q", got)
	}
}

func TestLoadSystemPromptEmptyPathUsesDefault(t *testing.T) {
	got := LoadSystemPrompt("", map[string]string{"chatname": "X"})
	if !strings.Contains(got, "Ти Грягі") {
		t.Errorf("expected built-in default, got %q", got)
	}
}

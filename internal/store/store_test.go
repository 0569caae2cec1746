package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMessagesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := s.AddMessage(ctx, Message{
			TGMessageID: int64(100 + i),
			ChatID:      1,
			UserID:      42,
			Content:     fmt.Sprintf("message %d", i),
			ContentType: "text",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("add message %d: %v", i, err)
		}
	}

	msgs, err := s.RecentMessages(ctx, 1, 3)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	// Chronological order, last 3 of 5.
	if msgs[0].Content != "message 2" || msgs[2].Content != "message 4" {
		t.Errorf("wrong window: first=%q last=%q", msgs[0].Content, msgs[2].Content)
	}

	since, err := s.MessagesSince(ctx, 1, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("messages since: %v", err)
	}
	if len(since) != 2 {
		t.Errorf("expected 2 messages since cutoff, got %d", len(since))
	}
}

func TestBotMessageHasNoUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.AddMessage(ctx, Message{TGMessageID: 1, ChatID: 1, Content: "hi", ContentType: "text", IsBot: true})
	if err != nil {
		t.Fatalf("add message: %v", err)
	}

	msgs, err := s.RecentMessages(ctx, 1, 10)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].IsBot || msgs[0].UserID != 0 {
		t.Errorf("unexpected message: %+v", msgs[0])
	}
}

func TestUpsertUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, User{ID: 7, Username: "olena", FullName: "Olena K"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.SetPronouns(ctx, 7, "she/her"); err != nil {
		t.Fatalf("set pronouns: %v", err)
	}
	// A later upsert must not clobber pronouns.
	if err := s.UpsertUser(ctx, User{ID: 7, Username: "olena_k", FullName: "Olena K"}); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	u, err := s.GetUser(ctx, 7)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u == nil {
		t.Fatal("user not found")
	}
	if u.Username != "olena_k" {
		t.Errorf("username = %q, want olena_k", u.Username)
	}
	if u.Pronouns != "she/her" {
		t.Errorf("pronouns = %q, want she/her", u.Pronouns)
	}

	missing, err := s.GetUser(ctx, 999)
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown user, got %+v", missing)
	}
}

func TestFactsCapAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < maxFactsPerUser+5; i++ {
		if err := s.AddFact(ctx, 42, fmt.Sprintf("fact %d", i)); err != nil {
			t.Fatalf("add fact %d: %v", i, err)
		}
	}

	facts, err := s.ListFacts(ctx, 42, 0)
	if err != nil {
		t.Fatalf("list facts: %v", err)
	}
	if len(facts) != maxFactsPerUser {
		t.Fatalf("expected cap of %d facts, got %d", maxFactsPerUser, len(facts))
	}
	// Oldest facts were evicted; the survivors start at "fact 5".
	if facts[0].Fact != "fact 5" {
		t.Errorf("oldest surviving fact = %q, want fact 5", facts[0].Fact)
	}

	limited, err := s.ListFacts(ctx, 42, 15)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 15 {
		t.Fatalf("expected 15 facts, got %d", len(limited))
	}
	if limited[14].Fact != facts[len(facts)-1].Fact {
		t.Errorf("limited list should end at the newest fact")
	}

	deleted, err := s.DeleteFact(ctx, 42, facts[len(facts)-1].ID)
	if err != nil {
		t.Fatalf("delete fact: %v", err)
	}
	if !deleted {
		t.Error("expected fact to be deleted")
	}
	// Deleting with the wrong user must not touch it.
	deleted, err = s.DeleteFact(ctx, 99, facts[0].ID)
	if err != nil {
		t.Fatalf("delete fact wrong user: %v", err)
	}
	if deleted {
		t.Error("fact deleted across users")
	}

	n, err := s.DeleteAllFacts(ctx, 42)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != int64(maxFactsPerUser-1) {
		t.Errorf("deleted %d facts, want %d", n, maxFactsPerUser-1)
	}

	rest, err := s.ListFacts(ctx, 42, 0)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(rest) != 0 {
		t.Errorf("expected no facts left, got %d", len(rest))
	}
}

func TestFactsAreScopedPerUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AddFact(ctx, 1, "lives in Kyiv"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddFact(ctx, 2, "lives in Lviv"); err != nil {
		t.Fatal(err)
	}

	n, err := s.DeleteAllFacts(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}

	other, err := s.ListFacts(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 1 || other[0].Fact != "lives in Lviv" {
		t.Errorf("user 2 facts affected: %+v", other)
	}
}

func TestSummaries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	none, err := s.LatestSummary(ctx, 1, SummaryWeekly)
	if err != nil {
		t.Fatalf("latest on empty: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil summary, got %+v", none)
	}

	end := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	for i, content := range []string{"first week", "second week"} {
		err := s.PutSummary(ctx, Summary{
			ChatID:      1,
			Kind:        SummaryWeekly,
			Content:     content,
			PeriodStart: end.AddDate(0, 0, 7*(i-1)),
			PeriodEnd:   end.AddDate(0, 0, 7*i),
		})
		if err != nil {
			t.Fatalf("put summary %d: %v", i, err)
		}
	}

	latest, err := s.LatestSummary(ctx, 1, SummaryWeekly)
	if err != nil {
		t.Fatalf("latest summary: %v", err)
	}
	if latest == nil || latest.Content != "second week" {
		t.Fatalf("latest = %+v, want second week", latest)
	}

	monthly, err := s.LatestSummary(ctx, 1, SummaryMonthly)
	if err != nil {
		t.Fatal(err)
	}
	if monthly != nil {
		t.Errorf("kinds must not mix: got %+v", monthly)
	}
}

func TestListChatIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{3, 1, 2} {
		if err := s.UpsertChat(ctx, Chat{ID: id, Type: "group"}); err != nil {
			t.Fatalf("upsert chat %d: %v", id, err)
		}
	}
	// Upsert again must not duplicate.
	if err := s.UpsertChat(ctx, Chat{ID: 2, Title: "renamed", Type: "supergroup", MemberCount: 10}); err != nil {
		t.Fatal(err)
	}

	ids, err := s.ListChatIDs(ctx)
	if err != nil {
		t.Fatalf("list chat ids: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Errorf("ids = %v, want [1 2 3]", ids)
	}
}

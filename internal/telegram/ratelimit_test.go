package telegram

import (
	"strings"
	"testing"
	"time"
)

func TestLimiterDeniesPastBudget(t *testing.T) {
	l := NewLimiter(2, time.Hour, nil)

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow(1); !ok {
			t.Fatalf("request %d denied within budget", i+1)
		}
	}
	ok, wait := l.Allow(1)
	if ok {
		t.Fatal("third request allowed past budget")
	}
	if wait <= 0 {
		t.Errorf("wait = %v, want positive", wait)
	}
}

func TestLimiterIsPerUser(t *testing.T) {
	l := NewLimiter(1, time.Hour, nil)

	if ok, _ := l.Allow(1); !ok {
		t.Fatal("first user denied")
	}
	if ok, _ := l.Allow(2); !ok {
		t.Error("second user must have an independent budget")
	}
	if ok, _ := l.Allow(1); ok {
		t.Error("first user allowed past budget")
	}
}

func TestLimiterAdminBypass(t *testing.T) {
	l := NewLimiter(1, time.Hour, []int64{99})

	for i := 0; i < 5; i++ {
		if ok, _ := l.Allow(99); !ok {
			t.Fatal("admin must never be limited")
		}
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(0, time.Hour, nil)
	for i := 0; i < 10; i++ {
		if ok, _ := l.Allow(1); !ok {
			t.Fatal("disabled limiter must always allow")
		}
	}
}

func TestRejectionMessage(t *testing.T) {
	got := RejectionMessage(5 * time.Minute)
	if !strings.Contains(got, "Занадто багато запитів") || !strings.Contains(got, "5 хв") {
		t.Errorf("message = %q", got)
	}
	// Sub-minute waits round up so the user is never told zero.
	if !strings.Contains(RejectionMessage(10*time.Second), "1 хв") {
		t.Error("short waits must round up to one minute")
	}
}

package telegram

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedUsers bounds the per-user limiter map. When exceeded the map is
// reset wholesale, which briefly forgives everyone rather than leaking.
const maxTrackedUsers = 10000

// Limiter enforces a per-user prompt budget. Admins bypass it entirely.
type Limiter struct {
	mu    sync.Mutex
	users map[int64]*rate.Limiter

	limit  rate.Limit
	burst  int
	admins map[int64]struct{}
}

// NewLimiter allows prompts requests per window for each user. A prompts
// value of zero or less disables limiting.
func NewLimiter(prompts int, window time.Duration, adminIDs []int64) *Limiter {
	l := &Limiter{
		users:  make(map[int64]*rate.Limiter),
		admins: make(map[int64]struct{}, len(adminIDs)),
	}
	for _, id := range adminIDs {
		l.admins[id] = struct{}{}
	}
	if prompts > 0 && window > 0 {
		l.limit = rate.Every(window / time.Duration(prompts))
		l.burst = prompts
	}
	return l
}

// Allow reports whether the user may send a prompt now. When denied it also
// returns how long until the next prompt would be admitted.
func (l *Limiter) Allow(userID int64) (bool, time.Duration) {
	if l.burst == 0 {
		return true, 0
	}
	if _, admin := l.admins[userID]; admin {
		return true, 0
	}

	l.mu.Lock()
	if len(l.users) > maxTrackedUsers {
		l.users = make(map[int64]*rate.Limiter)
	}
	lim, ok := l.users[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.users[userID] = lim
	}
	l.mu.Unlock()

	r := lim.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

// RejectionMessage is the reply sent to a rate-limited user.
func RejectionMessage(wait time.Duration) string {
	minutes := int(wait.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("⏳ Занадто багато запитів!\nСпробуй через %d хв.", minutes)
}

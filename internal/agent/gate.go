package agent

import "sync"

type gateKey struct {
	chatID int64
	userID int64
}

// Gate allows at most one in-flight agent turn per (chat, user). A second
// concurrent turn is rejected, not queued. The mutex guards only set
// membership; the turn itself runs without it.
type Gate struct {
	mu       sync.Mutex
	inflight map[gateKey]struct{}
}

func NewGate() *Gate {
	return &Gate{inflight: make(map[gateKey]struct{})}
}

// TryAcquire reports whether the identity was free and marks it in flight.
func (g *Gate) TryAcquire(chatID, userID int64) bool {
	key := gateKey{chatID, userID}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return false
	}
	g.inflight[key] = struct{}{}
	return true
}

// Release frees the identity. Safe to call for an identity that is not in
// flight; callers defer it on every exit path.
func (g *Gate) Release(chatID, userID int64) {
	key := gateKey{chatID, userID}
	g.mu.Lock()
	delete(g.inflight, key)
	g.mu.Unlock()
}

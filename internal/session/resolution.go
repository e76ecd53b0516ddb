package session

import (
	"sync"

	"streamvault-go/internal/models"
)

// LatestResolution keeps the payee resolution from the most recently started
// validation. Results of validations that were overtaken are dropped.
type LatestResolution struct {
	mu      sync.Mutex
	latest  uint64
	current models.AddressResolution
	has     bool
}

// Begin registers a new validation and returns its ticket
func (l *LatestResolution) Begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.latest++
	return l.latest
}

// Commit stores r if ticket still belongs to the latest validation and
// reports whether it was accepted.
func (l *LatestResolution) Commit(ticket uint64, r models.AddressResolution) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ticket != l.latest {
		return false
	}
	l.current = r
	l.has = true
	return true
}

func (l *LatestResolution) Current() (models.AddressResolution, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current, l.has
}

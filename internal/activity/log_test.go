package activity

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"streamvault-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	entries []models.ActivityEntry
	err     error
}

func (m *memorySink) Record(entry models.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func TestPush_NewestFirstAndBounded(t *testing.T) {
	log := NewLog()
	for i := 1; i <= 45; i++ {
		log.Info(fmt.Sprintf("event %d", i), "")
	}

	items := log.Items()
	require.Len(t, items, Capacity)
	assert.Equal(t, "event 45", items[0].Title)
	assert.Equal(t, "event 6", items[Capacity-1].Title)

	seen := make(map[string]bool)
	for _, e := range items {
		assert.False(t, seen[e.Id], "ids must be unique")
		seen[e.Id] = true
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestPush_NoDeduplication(t *testing.T) {
	log := NewLog()
	a := log.Warn("Tx failed", "reverted")
	b := log.Warn("Tx failed", "reverted")

	assert.NotEqual(t, a.Id, b.Id)
	assert.Equal(t, 2, log.Len())
}

func TestClear(t *testing.T) {
	log := NewLog()
	log.Ok("Stream created", "id 1")
	log.Clear()
	assert.Empty(t, log.Items())

	log.Tx("Approve submitted", "", "0xabc")
	items := log.Items()
	require.Len(t, items, 1)
	assert.Equal(t, models.ActivityTx, items[0].Kind)
	assert.Equal(t, "0xabc", items[0].TxHash)
}

func TestItems_ReturnsCopy(t *testing.T) {
	log := NewLog()
	log.Info("one", "")
	items := log.Items()
	items[0].Title = "mutated"
	assert.Equal(t, "one", log.Items()[0].Title)
}

func TestRecent(t *testing.T) {
	log := NewLog()
	for i := 0; i < 15; i++ {
		log.Info(fmt.Sprintf("event %d", i), "")
	}
	recent := log.Recent(FeedSize)
	require.Len(t, recent, FeedSize)
	assert.Equal(t, "event 14", recent[0].Title)
}

func TestSinks(t *testing.T) {
	ok := &memorySink{}
	failing := &memorySink{err: errors.New("disk full")}
	log := NewLog(ok)
	log.AddSink(failing)

	entry := log.Ok("Claimed", "")

	assert.Equal(t, []models.ActivityEntry{entry}, ok.entries)
	assert.Len(t, failing.entries, 1, "a failing sink does not block the log")
	assert.Equal(t, 1, log.Len())
}

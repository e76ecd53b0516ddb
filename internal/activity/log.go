package activity

import (
	"sync"
	"time"

	"streamvault-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Capacity is the number of entries retained, newest first
const Capacity = 40

// FeedSize is the number of entries shown in the recent activity view
const FeedSize = 10

// Sink receives every pushed entry, e.g. to persist it
type Sink interface {
	Record(entry models.ActivityEntry) error
}

type Log struct {
	mu      sync.Mutex
	entries []models.ActivityEntry
	sinks   []Sink
	now     func() time.Time
}

func NewLog(sinks ...Sink) *Log {
	return &Log{
		entries: make([]models.ActivityEntry, 0, Capacity),
		sinks:   sinks,
		now:     time.Now,
	}
}

// AddSink attaches a sink for entries pushed from now on
func (l *Log) AddSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

// Push stamps the entry with a fresh id and timestamp, prepends it and drops
// the oldest entries beyond Capacity. Identical entries are not merged.
func (l *Log) Push(kind models.ActivityKind, title, detail, txHash string) models.ActivityEntry {
	l.mu.Lock()
	entry := models.ActivityEntry{
		Id:        uuid.NewString(),
		Timestamp: l.now(),
		Kind:      kind,
		Title:     title,
		Detail:    detail,
		TxHash:    txHash,
	}

	next := make([]models.ActivityEntry, 0, Capacity)
	next = append(next, entry)
	next = append(next, l.entries...)
	if len(next) > Capacity {
		next = next[:Capacity]
	}
	l.entries = next
	sinks := append([]Sink(nil), l.sinks...)
	l.mu.Unlock()

	for _, s := range sinks {
		if err := s.Record(entry); err != nil {
			zap.L().Warn("Activity sink failed",
				zap.String("entry_id", entry.Id),
				zap.Error(err))
		}
	}
	return entry
}

func (l *Log) Info(title, detail string) models.ActivityEntry {
	return l.Push(models.ActivityInfo, title, detail, "")
}

func (l *Log) Ok(title, detail string) models.ActivityEntry {
	return l.Push(models.ActivityOk, title, detail, "")
}

func (l *Log) Warn(title, detail string) models.ActivityEntry {
	return l.Push(models.ActivityWarn, title, detail, "")
}

func (l *Log) Tx(title, detail, txHash string) models.ActivityEntry {
	return l.Push(models.ActivityTx, title, detail, txHash)
}

// Clear removes every entry. Sinks keep what they already recorded.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]models.ActivityEntry, 0, Capacity)
}

// Items returns a copy of the entries, newest first
func (l *Log) Items() []models.ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.ActivityEntry(nil), l.entries...)
}

// Recent returns at most n of the newest entries
func (l *Log) Recent(n int) []models.ActivityEntry {
	items := l.Items()
	if n >= 0 && len(items) > n {
		items = items[:n]
	}
	return items
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

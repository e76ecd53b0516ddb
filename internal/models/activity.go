package models

import "time"

// ActivityKind classifies an activity entry for display
type ActivityKind string

const (
	ActivityInfo ActivityKind = "info"
	ActivityOk   ActivityKind = "ok"
	ActivityWarn ActivityKind = "warn"
	ActivityTx   ActivityKind = "tx"
)

// ActivityEntry represents one user-visible event. Entries are immutable once
// pushed to the log.
type ActivityEntry struct {
	Id        string       `json:"id" db:"id"`
	Timestamp time.Time    `json:"timestamp" db:"created_at"`
	Kind      ActivityKind `json:"kind" db:"kind"`
	Title     string       `json:"title" db:"title"`
	Detail    string       `json:"detail,omitempty" db:"detail"`
	TxHash    string       `json:"tx_hash,omitempty" db:"tx_hash"`
}

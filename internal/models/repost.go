package models

import (
	"encoding/json"
	"time"
)

// RepostEntry schedules a boost of an already-published post. URI and CID
// address the parent record on the network, so an entry can only come into
// existence after the parent's publish call returned them.
type RepostEntry struct {
	ID           int64     `json:"id"`
	URI          string    `json:"uri"`
	CID          string    `json:"cid"`
	ScheduledFor time.Time `json:"scheduledFor"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`

	// PostData is a snapshot of the parent record, resolved from the network
	// when listing. Never persisted.
	PostData json.RawMessage `json:"postData,omitempty"`
}

type RepostCreation struct {
	URI          string    `json:"uri"`
	CID          string    `json:"cid"`
	ScheduledFor time.Time `json:"scheduledFor"`
}

type RepostUpdate struct {
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	Status       *string    `json:"status,omitempty"`
	Error        *string    `json:"error,omitempty"`
}

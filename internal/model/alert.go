package model

import "time"

// Alert is a transient record pushed by the realtime feed. It is never
// persisted locally.
type Alert struct {
	Message   string    `json:"message" firestore:"message"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// ChangeKind tags a realtime feed event.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// AlertChange is a single event delivered by the realtime feed.
type AlertChange struct {
	Kind  ChangeKind
	Alert Alert
}

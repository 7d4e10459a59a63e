package store

import (
	"context"
	"errors"
)

// Slot keys of the tab-local persistent storage.
const (
	SlotToken    = "token"
	SlotIdentity = "identity"
)

// ErrEmptySlot is returned when a write would leave one slot empty.
var ErrEmptySlot = errors.New("token and identity slots must both be set")

// Slots is the raw content of the two session slots. An absent slot is the
// empty string.
type Slots struct {
	Token    string
	Identity string
}

// Empty reports whether neither slot is set.
func (s Slots) Empty() bool {
	return s.Token == "" && s.Identity == ""
}

// Complete reports whether both slots are set.
func (s Slots) Complete() bool {
	return s.Token != "" && s.Identity != ""
}

// SlotStore persists the bearer credential and the serialized identity.
// Implementations write and clear both slots as one unit: a reader never
// observes one slot without the other.
type SlotStore interface {
	ReadSlots(ctx context.Context) (Slots, error)
	WriteSlots(ctx context.Context, token, identity string) error
	ClearSlots(ctx context.Context) error
}

package store

import (
	"context"
	"fmt"
)

// Publisher announces that a storage key changed. It is satisfied by every
// change feed endpoint.
type Publisher interface {
	Publish(ctx context.Context, key string) error
}

// BroadcastError reports that the slots were persisted but other instances
// could not be told about it. The stored state is still authoritative.
type BroadcastError struct {
	Err error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcasting slot change: %v", e.Err)
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}

// BroadcastingSlots decorates a SlotStore so that every successful write or
// clear is published to the other client instances.
type BroadcastingSlots struct {
	inner SlotStore
	pub   Publisher
}

// NewBroadcastingSlots wraps inner with change publication on pub.
func NewBroadcastingSlots(inner SlotStore, pub Publisher) *BroadcastingSlots {
	return &BroadcastingSlots{inner: inner, pub: pub}
}

func (b *BroadcastingSlots) ReadSlots(ctx context.Context) (Slots, error) {
	return b.inner.ReadSlots(ctx)
}

func (b *BroadcastingSlots) WriteSlots(ctx context.Context, token, identity string) error {
	if err := b.inner.WriteSlots(ctx, token, identity); err != nil {
		return err
	}
	return b.publish(ctx)
}

func (b *BroadcastingSlots) ClearSlots(ctx context.Context) error {
	if err := b.inner.ClearSlots(ctx); err != nil {
		return err
	}
	return b.publish(ctx)
}

func (b *BroadcastingSlots) publish(ctx context.Context) error {
	if err := b.pub.Publish(ctx, SlotIdentity); err != nil {
		return &BroadcastError{Err: err}
	}
	return nil
}

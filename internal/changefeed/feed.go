// Package changefeed carries the cross-instance storage-change signal: when one
// client instance mutates the shared session slots, every other instance is
// told that a key changed. Events carry no state; receivers re-read storage.
package changefeed

import (
	"context"

	"github.com/nhle/registry-portal/internal/subscription"
)

// Event announces that Key changed in the shared storage.
type Event struct {
	// Origin identifies the instance that performed the write.
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// Feed is one instance's endpoint on the change feed. Publish never delivers
// back to the publishing endpoint.
type Feed interface {
	Publish(ctx context.Context, key string) error
	Subscribe(fn func(Event)) *subscription.Subscription
}

package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/registry-portal/internal/store"
)

const (
	serviceName = "registry-portal"

	// sessionItemKey holds both session slots as one keyring item, so a write
	// or removal is a single keyring operation.
	sessionItemKey = "session"
)

// Open returns a keyring configured for the portal. fileDir is used by the
// encrypted file backend when no OS keychain is available.
func Open(fileDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("registry-portal-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// sessionItem is the combined payload stored under sessionItemKey.
type sessionItem struct {
	Token    string `json:"token"`
	Identity string `json:"identity"`
}

// KeyringSlots implements store.SlotStore on top of the system keyring.
type KeyringSlots struct {
	ring keyring.Keyring
}

var _ store.SlotStore = (*KeyringSlots)(nil)

// NewKeyringSlots returns a SlotStore backed by ring.
func NewKeyringSlots(ring keyring.Keyring) *KeyringSlots {
	return &KeyringSlots{ring: ring}
}

// ReadSlots returns empty slots when nothing is stored. A payload that does not
// decode is reported as an error; callers treat it as logged out.
func (k *KeyringSlots) ReadSlots(_ context.Context) (store.Slots, error) {
	item, err := k.ring.Get(sessionItemKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return store.Slots{}, nil
		}
		return store.Slots{}, fmt.Errorf("getting credential %q: %w", sessionItemKey, err)
	}

	var payload sessionItem
	if err := json.Unmarshal(item.Data, &payload); err != nil {
		return store.Slots{}, fmt.Errorf("decoding credential %q: %w", sessionItemKey, err)
	}

	return store.Slots{Token: payload.Token, Identity: payload.Identity}, nil
}

// WriteSlots stores both slots in one keyring item.
func (k *KeyringSlots) WriteSlots(_ context.Context, token, identity string) error {
	if token == "" || identity == "" {
		return store.ErrEmptySlot
	}

	data, err := json.Marshal(sessionItem{Token: token, Identity: identity})
	if err != nil {
		return fmt.Errorf("encoding credential %q: %w", sessionItemKey, err)
	}

	err = k.ring.Set(keyring.Item{
		Key:   sessionItemKey,
		Data:  data,
		Label: "Registry portal session",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", sessionItemKey, err)
	}

	return nil
}

// ClearSlots removes the session item. Removing a missing item is not an error.
func (k *KeyringSlots) ClearSlots(_ context.Context) error {
	err := k.ring.Remove(sessionItemKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", sessionItemKey, err)
	}

	return nil
}

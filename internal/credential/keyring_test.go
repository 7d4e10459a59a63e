package credential

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/registry-portal/internal/store"
)

func TestKeyringSlots_WriteReadClear(t *testing.T) {
	k := NewKeyringSlots(keyring.NewArrayKeyring(nil))
	ctx := context.Background()

	slots, err := k.ReadSlots(ctx)
	require.NoError(t, err)
	assert.True(t, slots.Empty())

	require.NoError(t, k.WriteSlots(ctx, "tok", `{"id":"u1"}`))
	slots, err = k.ReadSlots(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Slots{Token: "tok", Identity: `{"id":"u1"}`}, slots)

	require.NoError(t, k.ClearSlots(ctx))
	require.NoError(t, k.ClearSlots(ctx))
	slots, err = k.ReadSlots(ctx)
	require.NoError(t, err)
	assert.True(t, slots.Empty())
}

func TestKeyringSlots_RejectsHalfWrite(t *testing.T) {
	k := NewKeyringSlots(keyring.NewArrayKeyring(nil))

	assert.ErrorIs(t, k.WriteSlots(context.Background(), "tok", ""), store.ErrEmptySlot)
}

func TestKeyringSlots_CorruptPayload(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: sessionItemKey, Data: []byte("not json")}})
	k := NewKeyringSlots(ring)

	_, err := k.ReadSlots(context.Background())
	assert.Error(t, err)
}

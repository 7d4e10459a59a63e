package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/registry-portal/internal/store"
	"github.com/nhle/registry-portal/tests/testutil"
)

func TestSQLiteStore_ReadEmpty(t *testing.T) {
	s := testutil.NewTestStore(t)

	slots, err := s.ReadSlots(context.Background())
	require.NoError(t, err)
	assert.True(t, slots.Empty())
}

func TestSQLiteStore_WriteReadClear(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteSlots(ctx, "tok-1", `{"id":"u1"}`))

	slots, err := s.ReadSlots(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Slots{Token: "tok-1", Identity: `{"id":"u1"}`}, slots)

	require.NoError(t, s.WriteSlots(ctx, "tok-2", `{"id":"u2"}`))
	slots, err = s.ReadSlots(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", slots.Token)

	require.NoError(t, s.ClearSlots(ctx))
	slots, err = s.ReadSlots(ctx)
	require.NoError(t, err)
	assert.True(t, slots.Empty())
}

func TestSQLiteStore_RejectsHalfWrite(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.WriteSlots(ctx, "tok", ""), store.ErrEmptySlot)
	assert.ErrorIs(t, s.WriteSlots(ctx, "", "{}"), store.ErrEmptySlot)

	slots, err := s.ReadSlots(ctx)
	require.NoError(t, err)
	assert.True(t, slots.Empty())
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	stores := testutil.NewSharedStores(t, 2)
	ctx := context.Background()

	require.NoError(t, stores[0].WriteSlots(ctx, "tok", "{}"))
	slots, err := stores[1].ReadSlots(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", slots.Token)
}

// A reader on another handle never sees one slot without the other.
func TestSQLiteStore_ConcurrentReadersSeeCompleteSlots(t *testing.T) {
	stores := testutil.NewSharedStores(t, 2)
	writer, reader := stores[0], stores[1]
	ctx := context.Background()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if i%3 == 2 {
				if err := writer.ClearSlots(ctx); err != nil {
					errCh <- err
					return
				}
				continue
			}
			token := fmt.Sprintf("tok-%d", i)
			identity := fmt.Sprintf(`{"id":"u-%d"}`, i)
			if err := writer.WriteSlots(ctx, token, identity); err != nil {
				errCh <- err
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			slots, err := reader.ReadSlots(ctx)
			if err != nil {
				errCh <- err
				return
			}
			if !slots.Empty() && !slots.Complete() {
				errCh <- fmt.Errorf("partial slots observed: %+v", slots)
				return
			}
			if slots.Complete() {
				var n int
				if _, err := fmt.Sscanf(slots.Token, "tok-%d", &n); err != nil {
					errCh <- err
					return
				}
				if slots.Identity != fmt.Sprintf(`{"id":"u-%d"}`, n) {
					errCh <- fmt.Errorf("mismatched slots observed: %+v", slots)
					return
				}
			}
		}
	}()

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
}

type recordingPublisher struct {
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, key string) error {
	p.keys = append(p.keys, key)
	return p.err
}

func TestBroadcastingSlots_PublishesAfterWriteAndClear(t *testing.T) {
	pub := &recordingPublisher{}
	s := store.NewBroadcastingSlots(testutil.NewTestStore(t), pub)
	ctx := context.Background()

	require.NoError(t, s.WriteSlots(ctx, "tok", "{}"))
	require.NoError(t, s.ClearSlots(ctx))

	assert.Equal(t, []string{store.SlotIdentity, store.SlotIdentity}, pub.keys)
}

func TestBroadcastingSlots_NoPublishOnFailedWrite(t *testing.T) {
	pub := &recordingPublisher{}
	s := store.NewBroadcastingSlots(testutil.NewTestStore(t), pub)

	err := s.WriteSlots(context.Background(), "", "")
	assert.ErrorIs(t, err, store.ErrEmptySlot)
	assert.Empty(t, pub.keys)
}

func TestBroadcastingSlots_PublishFailureKeepsWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	inner := testutil.NewTestStore(t)
	s := store.NewBroadcastingSlots(inner, pub)
	ctx := context.Background()

	err := s.WriteSlots(ctx, "tok", "{}")
	var bErr *store.BroadcastError
	require.ErrorAs(t, err, &bErr)

	slots, err := inner.ReadSlots(ctx)
	require.NoError(t, err)
	assert.True(t, slots.Complete())
}

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/report"
	"github.com/nhle/registry-portal/internal/store"
	"github.com/nhle/registry-portal/tests/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func citizen() model.Identity {
	return model.Identity{
		ID:      "u-1",
		Name:    "Awa",
		Surname: "Diop",
		Email:   "awa@example.org",
		Role:    model.RoleCitizen,
	}
}

func newTestStore(t *testing.T, slots store.SlotStore, nav Navigator) *Store {
	t.Helper()
	s, err := NewStore(StoreOptions{
		Slots:     slots,
		Navigator: nav,
		Reporter:  report.NewRecorder(0, nil),
		Logger:    discardLogger(),
	})
	require.NoError(t, err)
	return s
}

func TestNewStore_RequiresSlots(t *testing.T) {
	_, err := NewStore(StoreOptions{})
	assert.Error(t, err)
}

func TestStore_ReadAbsent(t *testing.T) {
	s := newTestStore(t, testutil.NewTestStore(t), nil)

	id, ok := s.Read(context.Background())
	assert.False(t, ok)
	assert.Nil(t, id)
	assert.False(t, s.IsAuthenticated(context.Background()))
}

func TestStore_WriteThenRead(t *testing.T) {
	s := newTestStore(t, testutil.NewTestStore(t), nil)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, citizen(), "tok-1"))

	id, ok := s.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, citizen(), *id)
	assert.True(t, s.IsAuthenticated(ctx))

	token, ok := s.Token(ctx)
	require.True(t, ok)
	assert.Equal(t, "tok-1", token)
}

func TestStore_MalformedIdentityIsAbsent(t *testing.T) {
	slots := testutil.NewTestStore(t)
	s := newTestStore(t, slots, nil)
	ctx := context.Background()

	for _, raw := range []string{"{not json", `{"id":"u-1","role":"root"}`, `{"role":"citizen"}`} {
		require.NoError(t, slots.WriteSlots(ctx, "tok", raw))

		id, ok := s.Read(ctx)
		assert.False(t, ok, raw)
		assert.Nil(t, id, raw)
		assert.False(t, s.IsAuthenticated(ctx), raw)
	}
}

func TestStore_WriteRejectsInvalidInput(t *testing.T) {
	s := newTestStore(t, testutil.NewTestStore(t), nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.Write(ctx, model.Identity{Role: model.RoleAgent}, "tok"), ErrInvalidIdentity)
	assert.ErrorIs(t, s.Write(ctx, citizen(), ""), ErrMissingToken)
	assert.False(t, s.IsAuthenticated(ctx))
}

func TestStore_WriteRaisesUserUpdated(t *testing.T) {
	s := newTestStore(t, testutil.NewTestStore(t), nil)

	var got []SignalKind
	s.Signal().Subscribe(func(k SignalKind) { got = append(got, k) })

	require.NoError(t, s.Write(context.Background(), citizen(), "tok"))
	assert.Equal(t, []SignalKind{SignalUserUpdated}, got)
}

func TestStore_ClearSignalsThenRedirects(t *testing.T) {
	var events []string
	nav := NavigatorFunc(func(route string) { events = append(events, "redirect:"+route) })
	s := newTestStore(t, testutil.NewTestStore(t), nav)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, citizen(), "tok"))
	s.Signal().Subscribe(func(k SignalKind) {
		events = append(events, fmt.Sprintf("signal:%s:auth=%t", k, s.IsAuthenticated(ctx)))
	})

	require.NoError(t, s.Clear(ctx))

	assert.Equal(t, []string{
		"signal:sessionEnded:auth=false",
		"redirect:/",
	}, events)
	_, ok := s.Read(ctx)
	assert.False(t, ok)
}

type failingSlots struct {
	store.SlotStore
	clearErr error
}

func (f failingSlots) ClearSlots(context.Context) error { return f.clearErr }

func TestStore_ClearFailureStillRedirects(t *testing.T) {
	redirected := false
	slots := failingSlots{SlotStore: testutil.NewTestStore(t), clearErr: errors.New("disk full")}
	s := newTestStore(t, slots, NavigatorFunc(func(string) { redirected = true }))

	err := s.Clear(context.Background())
	assert.Error(t, err)
	assert.True(t, redirected)
}

type brokenPublisher struct{}

func (brokenPublisher) Publish(context.Context, string) error { return errors.New("feed down") }

func TestStore_BroadcastFailureIsReportedNotFatal(t *testing.T) {
	rec := report.NewRecorder(0, nil)
	s, err := NewStore(StoreOptions{
		Slots:    store.NewBroadcastingSlots(testutil.NewTestStore(t), brokenPublisher{}),
		Reporter: rec,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), citizen(), "tok"))
	assert.True(t, s.IsAuthenticated(context.Background()))
	require.Len(t, rec.Entries(), 1)
	assert.Equal(t, "session", rec.Entries()[0].Component)
}

// Readers racing a writer see either the old or the new session, never a mix.
func TestStore_ConcurrentReadersSeeConsistentSession(t *testing.T) {
	stores := testutil.NewSharedStores(t, 2)
	writer := newTestStore(t, stores[0], nil)
	reader := newTestStore(t, stores[1], nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			id := citizen()
			id.ID = fmt.Sprintf("u-%d", i)
			assert.NoError(t, writer.Write(ctx, id, fmt.Sprintf("tok-%d", i)))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			slots, err := stores[1].ReadSlots(ctx)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, slots.Token != "", slots.Identity != "")
			_, ok := reader.Read(ctx)
			_ = ok
		}
	}()

	wg.Wait()
	assert.True(t, reader.IsAuthenticated(ctx))
}

func TestStore_RoleHelpers(t *testing.T) {
	s := newTestStore(t, testutil.NewTestStore(t), nil)

	agent := citizen()
	agent.Role = model.RoleAgent

	assert.Equal(t, model.RoleCitizen, s.RoleRank(citizen()))
	assert.False(t, s.HasElevatedAccess(citizen()))
	assert.True(t, s.HasElevatedAccess(agent))
}

package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	ev := Event{EventID: "e-1", Kind: "pipe.workflow.started.v1", WorkflowID: "wf-1"}

	ok, err := s.Begin(ctx, ev)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Failed(ctx, ev.EventID, "boom"))

	ok, err = s.Begin(ctx, ev)
	require.NoError(t, err)
	require.True(t, ok, "failed events are retried")

	require.NoError(t, s.Done(ctx, ev.EventID))

	ok, err = s.Begin(ctx, ev)
	require.NoError(t, err)
	require.False(t, ok, "done events are skipped")
	require.Equal(t, 3, s.Attempts(ev.EventID))
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	_, err := s.Begin(ctx, Event{EventID: "a"})
	require.NoError(t, err)
	require.NoError(t, s.Done(ctx, "a"))

	ok, err := s.Begin(ctx, Event{EventID: "b"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, s.Attempts("c"))
}

func TestMemoryStoreConcurrentDeliveryIsInProgress(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	ev := Event{EventID: "e-1"}

	ok, err := s.Begin(ctx, ev)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Begin(ctx, ev)
	require.ErrorIs(t, err, ErrInProgress)
	require.False(t, ok, "a second delivery must not run while the first holds the claim")

	require.NoError(t, s.Done(ctx, ev.EventID))
	ok, err = s.Begin(ctx, ev)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreReclaimsStaleClaim(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	s.ClaimTimeout = time.Millisecond

	_, err := s.Begin(ctx, Event{EventID: "e-1"})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	ok, err := s.Begin(ctx, Event{EventID: "e-1"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, s.Attempts("e-1"))
}

func TestMemoryStoreConcurrentBeginHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Begin(ctx, Event{EventID: "e-1"})
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, ErrInProgress) {
				t.Errorf("unexpected result: %v %v", ok, err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

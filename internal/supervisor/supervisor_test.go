package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseMutualExclusion(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.Acquire(context.Background(), "polygon_mainnet"))
	require.True(t, s.Busy("bloxberg_mainnet"))
	require.False(t, s.Busy("polygon_mainnet"))

	s.Release("polygon_mainnet")
	require.False(t, s.Busy("bloxberg_mainnet"))
}

func TestAcquireWaitsForRelease(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.Acquire(context.Background(), "a"))

	acquired := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.Acquire(ctx, "b"); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should not have succeeded while a holds the mutex")
	case <-time.After(100 * time.Millisecond):
	}

	s.Release("a")

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestAcquireReturnsOnContextCancellation(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.Acquire(context.Background(), "a"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Acquire(ctx, "b") }()

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("acquire did not observe context cancellation")
	}
}

func TestRunIntegrationTestOnceRunsExactlyOnce(t *testing.T) {
	s := New(zerolog.Nop())
	var calls int
	var mu sync.Mutex

	run := func(ctx context.Context) (bool, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return true, nil
	}

	var wg sync.WaitGroup
	results := make([]bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.RunIntegrationTestOnce(context.Background(), run)
			require.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
	for _, ok := range results {
		require.True(t, ok)
	}
}

func TestRunRestartsPoolOnTimerAndStopsOnContextCancel(t *testing.T) {
	s := New(zerolog.Nop())

	var spawns int32
	var mu sync.Mutex
	var spawnStops []bool

	spawn := func(ctx context.Context, network string) {
		mu.Lock()
		spawns++
		mu.Unlock()
		<-ctx.Done()
		mu.Lock()
		spawnStops = append(spawnStops, s.Stopped())
		mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx, 40*time.Millisecond, []string{"polygon_mainnet", "bloxberg_mainnet"}, spawn)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run never returned after context cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, spawns, int32(4), "expected at least one restart cycle across two networks")
	require.True(t, s.Stopped(), "final shutdown leaves stop_event set rather than clearing it")
}

package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellanby-hall/portal/internal/session"
)

func TestRace_OperationWins(t *testing.T) {
	got, err := session.Race(context.Background(), time.Second, func(context.Context) (string, error) {
		return "value", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

func TestRace_OperationErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	_, err := session.Race(context.Background(), time.Second, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRace_TimerWins(t *testing.T) {
	start := time.Now()
	_, err := session.Race(context.Background(), 30*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "too late", ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRace_LateSettlementDiscarded(t *testing.T) {
	release := make(chan struct{})
	_, err := session.Race(context.Background(), 20*time.Millisecond, func(context.Context) (string, error) {
		<-release
		return "late", nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Letting the loser settle must not panic or block anything.
	close(release)
	time.Sleep(10 * time.Millisecond)
}

func TestRace_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := session.Race(ctx, time.Minute, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

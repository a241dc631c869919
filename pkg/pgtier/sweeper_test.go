package pgtier

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSweeperRunsAndStops(t *testing.T) {
	store, mock := setupStore(t)

	// At least one sweep should fire before Stop.
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 10; i++ {
		mock.ExpectExec("DELETE FROM semcache_records").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	sweeper := NewSweeper(store, 10*time.Millisecond)
	sweeper.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	sweeper.Stop()

	// Stop must wait for the loop to exit; a second Stop would panic on the
	// closed channel, so none is attempted.
}

func TestSweeperDefaultInterval(t *testing.T) {
	store, _ := setupStore(t)

	sweeper := NewSweeper(store, 0)
	if sweeper.interval != 10*time.Minute {
		t.Errorf("Expected default interval 10m, got %v", sweeper.interval)
	}
}

func TestSweeperContextCancel(t *testing.T) {
	store, _ := setupStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	sweeper := NewSweeper(store, time.Hour)
	sweeper.Start(ctx)

	cancel()

	select {
	case <-sweeper.done:
	case <-time.After(time.Second):
		t.Fatal("Sweeper did not exit on context cancellation")
	}
}

package cli

import (
	"context"
	"testing"
	"time"
)

func TestSpinnerStop(t *testing.T) {
	s := newSpinner("Refreshing...")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestSpinnerContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSpinnerWithContext(ctx, "Refreshing...")
	s.Start()
	cancel()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("spinner should be cancelled after context cancellation")
	}
	s.Stop()
}

func TestSpinnerSetMessage(t *testing.T) {
	s := newSpinner("Refreshing...")
	s.Start()
	s.SetMessage("Refreshing... 3 jobs left")
	time.Sleep(100 * time.Millisecond)
	s.StopWithSuccess("Done")

	if s.width < len("Refreshing... 3 jobs left") {
		t.Errorf("width = %d, want the longest message drawn", s.width)
	}
}

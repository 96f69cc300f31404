package timeutil

import (
	"testing"
	"time"
)

func TestMockClockAdvance(t *testing.T) {
	start := time.Unix(1700000000, 0)
	clk := NewMockClock(start)

	if !clk.Now().Equal(start) {
		t.Errorf("Now = %v, want %v", clk.Now(), start)
	}

	clk.Advance(250 * time.Millisecond)
	if got := clk.Since(start); got != 250*time.Millisecond {
		t.Errorf("Since = %v, want 250ms", got)
	}

	clk.Set(start.Add(time.Hour))
	if got := clk.Since(start); got != time.Hour {
		t.Errorf("Since after Set = %v, want 1h", got)
	}
}

func TestMockTickerFiresOnAdvance(t *testing.T) {
	clk := NewMockClock(time.Unix(0, 0))
	ticker := clk.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its interval elapsed")
	default:
	}

	clk.Advance(100 * time.Millisecond)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire after a full interval")
	}
}

func TestMockTickerDropsBackloggedTicks(t *testing.T) {
	clk := NewMockClock(time.Unix(0, 0))
	ticker := clk.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	// Three intervals without a read fill the 1-slot channel once.
	clk.Advance(10 * time.Millisecond)
	clk.Advance(10 * time.Millisecond)
	clk.Advance(10 * time.Millisecond)

	received := 0
	for {
		select {
		case <-ticker.C():
			received++
			continue
		default:
		}
		break
	}
	if received != 1 {
		t.Errorf("received %d ticks, want 1", received)
	}
}

func TestMockTickerStop(t *testing.T) {
	clk := NewMockClock(time.Unix(0, 0))
	ticker := clk.NewTicker(10 * time.Millisecond)

	ticker.Stop()
	clk.Advance(50 * time.Millisecond)

	select {
	case <-ticker.C():
		t.Fatal("stopped ticker should not fire")
	default:
	}
}

func TestRealClockSince(t *testing.T) {
	clk := RealClock{}
	start := clk.Now()
	if d := clk.Since(start); d < 0 {
		t.Errorf("Since returned negative duration %v", d)
	}
}

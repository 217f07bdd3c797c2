package metrics

import (
	"math"
	"testing"
)

func TestMeanOf_Empty(t *testing.T) {
	if got := meanOf(nil); got != nil {
		t.Errorf("expected nil mean for empty input, got %v", *got)
	}
}

func TestMeanOf(t *testing.T) {
	got := meanOf([]float64{1, 2, 3, 4})
	if got == nil {
		t.Fatal("expected mean, got nil")
	}
	if math.Abs(*got-2.5) > 1e-9 {
		t.Errorf("expected 2.5, got %f", *got)
	}
}

func TestWinRatePct_ZeroIsNotAWin(t *testing.T) {
	got := winRatePct([]float64{0, 1, -1, 2})
	if got == nil {
		t.Fatal("expected rate, got nil")
	}
	if *got != 50 {
		t.Errorf("expected 50, got %f", *got)
	}
}

func TestRatePct_NoSamples(t *testing.T) {
	if got := ratePct(0, 0); got != nil {
		t.Errorf("expected nil, got %v", *got)
	}
	if got := ratePct(0, 3); got == nil || *got != 0 {
		t.Errorf("expected 0 when samples exist, got %v", got)
	}
}

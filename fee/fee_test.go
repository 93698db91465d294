package fee_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/xraph/parkledger/fee"
)

func TestPerMinute(t *testing.T) {
	p := fee.PerMinute(100)

	tests := []struct {
		elapsed uint64
		want    uint64
	}{
		{0, 0},
		{59, 0},
		{60, 100},
		{119, 100},
		{600, 1000},
		{3600, 6000},
	}

	for _, tt := range tests {
		got, err := p.Fee(tt.elapsed)
		if err != nil {
			t.Fatalf("Fee(%d): %v", tt.elapsed, err)
		}
		if got != tt.want {
			t.Errorf("Fee(%d) = %d, want %d", tt.elapsed, got, tt.want)
		}
	}
}

func TestPerUnitMonotonic(t *testing.T) {
	p := fee.PerUnit{Rate: 7, Unit: 15 * time.Second}

	var prev uint64
	for e := uint64(0); e < 1000; e++ {
		got, err := p.Fee(e)
		if err != nil {
			t.Fatalf("Fee(%d): %v", e, err)
		}
		if got < prev {
			t.Fatalf("fee decreased at %d: %d < %d", e, got, prev)
		}
		prev = got
	}
}

func TestPerUnitOverflow(t *testing.T) {
	p := fee.PerUnit{Rate: math.MaxUint64, Unit: time.Second}
	if _, err := p.Fee(2); !errors.Is(err, fee.ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
	if v, err := p.Fee(1); err != nil || v != math.MaxUint64 {
		t.Errorf("Fee(1) = %d, %v", v, err)
	}
}

func TestNewPerUnitRejectsBadUnit(t *testing.T) {
	for _, unit := range []time.Duration{0, -time.Second, 500 * time.Millisecond, 1500 * time.Millisecond} {
		if _, err := fee.NewPerUnit(1, unit); !errors.Is(err, fee.ErrInvalidUnit) {
			t.Errorf("unit %s: expected ErrInvalidUnit, got %v", unit, err)
		}
	}
	if _, err := fee.NewPerUnit(1, time.Hour); err != nil {
		t.Errorf("unit 1h: %v", err)
	}
}

func TestFree(t *testing.T) {
	if v, err := fee.Free.Fee(math.MaxUint64); err != nil || v != 0 {
		t.Errorf("Free = %d, %v", v, err)
	}
}

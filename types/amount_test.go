package types

import (
	"math"
	"testing"
)

func TestCheckedArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   func() (uint64, bool)
		want uint64
		ok   bool
	}{
		{"Add", func() (uint64, bool) { return CheckedAdd(100, 200) }, 300, true},
		{"Add overflow", func() (uint64, bool) { return CheckedAdd(math.MaxUint64, 1) }, 0, false},
		{"Add max", func() (uint64, bool) { return CheckedAdd(math.MaxUint64-1, 1) }, math.MaxUint64, true},
		{"Sub", func() (uint64, bool) { return CheckedSub(500, 200) }, 300, true},
		{"Sub to zero", func() (uint64, bool) { return CheckedSub(7, 7) }, 0, true},
		{"Sub underflow", func() (uint64, bool) { return CheckedSub(1, 2) }, math.MaxUint64, false},
		{"Mul", func() (uint64, bool) { return CheckedMul(10, 100) }, 1000, true},
		{"Mul by zero", func() (uint64, bool) { return CheckedMul(math.MaxUint64, 0) }, 0, true},
		{"Mul overflow", func() (uint64, bool) { return CheckedMul(math.MaxUint64/2+1, 2) }, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.op()
			if ok != tt.ok {
				t.Fatalf("ok: got %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		v        uint64
		decimals int
		expected string
	}{
		{1_500_000_000, 9, "1.500000000"},
		{1, 9, "0.000000001"},
		{0, 9, "0.000000000"},
		{4900, 2, "49.00"},
		{12345, 0, "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatUnits(tt.v, tt.decimals); got != tt.expected {
				t.Errorf("FormatUnits: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"1.5", 1_500_000_000, false},
		{"0.000000001", 1, false},
		{"2", 2_000_000_000, false},
		{".25", 250_000_000, false},
		{"0", 0, false},
		{"1.0000000001", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"18446744074", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUnits(tt.in, DefaultDecimals)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

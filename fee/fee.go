// Package fee computes parking fees from elapsed session time.
package fee

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/parkledger/types"
)

// ErrOverflow is returned when a fee does not fit in a u64.
var ErrOverflow = errors.New("fee: arithmetic overflow")

// ErrInvalidUnit is returned for billing units that are not a positive
// whole number of seconds.
var ErrInvalidUnit = errors.New("fee: unit must be a whole number of seconds >= 1s")

// Policy maps an elapsed session duration in seconds to a fee in base units.
// Implementations must be non-decreasing in elapsed.
type Policy interface {
	Fee(elapsedSeconds uint64) (uint64, error)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(elapsedSeconds uint64) (uint64, error)

// Fee implements Policy.
func (f PolicyFunc) Fee(elapsedSeconds uint64) (uint64, error) { return f(elapsedSeconds) }

// PerUnit charges Rate for every whole Unit of elapsed time. Partial units are free.
type PerUnit struct {
	Rate uint64
	Unit time.Duration
}

var _ Policy = PerUnit{}

// PerMinute returns a PerUnit policy billed per whole minute.
func PerMinute(rate uint64) PerUnit {
	return PerUnit{Rate: rate, Unit: time.Minute}
}

// NewPerUnit validates unit and returns the policy.
func NewPerUnit(rate uint64, unit time.Duration) (PerUnit, error) {
	p := PerUnit{Rate: rate, Unit: unit}
	if err := p.Validate(); err != nil {
		return PerUnit{}, err
	}
	return p, nil
}

// Validate checks that Unit is a positive whole number of seconds.
func (p PerUnit) Validate() error {
	if p.Unit < time.Second || p.Unit%time.Second != 0 {
		return fmt.Errorf("%w: %s", ErrInvalidUnit, p.Unit)
	}
	return nil
}

// Fee returns floor(elapsed / unit) * rate.
func (p PerUnit) Fee(elapsedSeconds uint64) (uint64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	units := elapsedSeconds / uint64(p.Unit/time.Second)
	v, ok := types.CheckedMul(units, p.Rate)
	if !ok {
		return 0, fmt.Errorf("%w: %d units at rate %d", ErrOverflow, units, p.Rate)
	}
	return v, nil
}

// String describes the policy, e.g. "100/1m0s".
func (p PerUnit) String() string {
	return fmt.Sprintf("%d/%s", p.Rate, p.Unit)
}

// Free charges nothing.
var Free Policy = PolicyFunc(func(uint64) (uint64, error) { return 0, nil })

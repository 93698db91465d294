package parkledger

import (
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/xraph/parkledger/address"
)

// stripes serializes in-process operations that touch the same accounts.
// Addresses hash onto a fixed set of mutexes that are always acquired in
// ascending index order, so overlapping operations cannot deadlock.
type stripes struct {
	mus []sync.Mutex
}

func newStripes(n int) *stripes {
	if n < 1 {
		n = 1
	}
	return &stripes{mus: make([]sync.Mutex, n)}
}

func (s *stripes) index(a address.Address) int {
	return int(xxhash.Sum64(a[:]) % uint64(len(s.mus)))
}

// lock acquires the stripes covering addrs and returns the release func.
func (s *stripes) lock(addrs ...address.Address) func() {
	idx := make([]int, 0, len(addrs))
	for _, a := range addrs {
		idx = append(idx, s.index(a))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		s.mus[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			s.mus[idx[j]].Unlock()
		}
	}
}

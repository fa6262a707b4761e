// Package placement decides which Files backends receive a write.
//
// The Selector keeps an approximate live-file count per backend address and
// orders candidates so that backends already holding a replica come first,
// followed by the least loaded of the remaining backends. Counts move only
// through RecordPlacement and RecordRemoval; they are a load-balancing hint,
// not a source of truth, and are never reconciled against the file map.
package placement

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/marmos91/dittodir/internal/logger"
)

// DefaultMaxCandidates caps how many backends without a replica are offered.
const DefaultMaxCandidates = 3

// Backends lists the known backend addresses in registration order.
type Backends interface {
	Addresses() []string
}

// Metrics receives load updates. A nil Metrics disables reporting.
type Metrics interface {
	SetBackendLoad(address string, files int64)
}

// Selector tracks per-backend load and orders write candidates.
//
// Thread safety:
// All methods are safe for concurrent use. Counters are atomics held in a
// sync.Map, created on first use and never evicted.
type Selector struct {
	backends      Backends
	maxCandidates int
	counts        sync.Map // address -> *atomic.Int64
	metrics       Metrics
}

// New returns a Selector over backends. maxCandidates <= 0 selects
// DefaultMaxCandidates.
func New(backends Backends, maxCandidates int, metrics Metrics) *Selector {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Selector{
		backends:      backends,
		maxCandidates: maxCandidates,
		metrics:       metrics,
	}
}

// Candidates returns the ordered backend addresses for a write.
//
// Addresses in existing come first, in the given order and without
// duplicates. Then up to maxCandidates other known backends follow in
// non-decreasing order of live file count; equal counts keep registration
// order.
func (s *Selector) Candidates(existing []string) []string {
	result := make([]string, 0, len(existing)+s.maxCandidates)
	seen := make(map[string]struct{}, len(existing))

	for _, addr := range existing {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}

	type load struct {
		addr  string
		files int64
	}
	var others []load
	for _, addr := range s.backends.Addresses() {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		others = append(others, load{addr: addr, files: s.Load(addr)})
	}

	slices.SortStableFunc(others, func(a, b load) int {
		switch {
		case a.files < b.files:
			return -1
		case a.files > b.files:
			return 1
		default:
			return 0
		}
	})

	if len(others) > s.maxCandidates {
		others = others[:s.maxCandidates]
	}
	for _, o := range others {
		result = append(result, o.addr)
	}

	logger.Debug("Placement: candidates=%v", result)
	return result
}

// RecordPlacement counts a new replica on address.
func (s *Selector) RecordPlacement(address string) {
	n := s.counter(address).Add(1)
	s.report(address, n)
}

// RecordRemoval uncounts a replica on address. The count never goes below
// zero.
func (s *Selector) RecordRemoval(address string) {
	c := s.counter(address)
	for {
		cur := c.Load()
		if cur <= 0 {
			logger.Debug("Placement: removal on %s with no recorded files", address)
			return
		}
		if c.CompareAndSwap(cur, cur-1) {
			s.report(address, cur-1)
			return
		}
	}
}

// Load returns the live file count recorded for address.
func (s *Selector) Load(address string) int64 {
	if v, ok := s.counts.Load(address); ok {
		return v.(*atomic.Int64).Load()
	}
	return 0
}

// Loads returns a snapshot of every recorded count.
func (s *Selector) Loads() map[string]int64 {
	out := make(map[string]int64)
	s.counts.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

func (s *Selector) counter(address string) *atomic.Int64 {
	if v, ok := s.counts.Load(address); ok {
		return v.(*atomic.Int64)
	}
	v, _ := s.counts.LoadOrStore(address, new(atomic.Int64))
	return v.(*atomic.Int64)
}

func (s *Selector) report(address string, n int64) {
	if s.metrics != nil {
		s.metrics.SetBackendLoad(address, n)
	}
}

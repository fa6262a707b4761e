package placement

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticBackends []string

func (b staticBackends) Addresses() []string { return b }

type recordingMetrics struct {
	mu    sync.Mutex
	loads map[string]int64
}

func (m *recordingMetrics) SetBackendLoad(address string, files int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loads == nil {
		m.loads = make(map[string]int64)
	}
	m.loads[address] = files
}

func TestCandidatesExistingFirst(t *testing.T) {
	s := New(staticBackends{"a", "b", "c"}, 3, nil)
	s.RecordPlacement("b")
	s.RecordPlacement("b")
	s.RecordPlacement("b")

	got := s.Candidates([]string{"b"})
	assert.Equal(t, "b", got[0], "existing replica must be tried first")
	assert.Equal(t, []string{"b", "a", "c"}, got)
}

func TestCandidatesLeastLoaded(t *testing.T) {
	s := New(staticBackends{"a", "b", "c", "d"}, 3, nil)
	for i := 0; i < 3; i++ {
		s.RecordPlacement("a")
	}
	s.RecordPlacement("b")
	s.RecordPlacement("b")
	s.RecordPlacement("d")

	got := s.Candidates(nil)
	assert.Equal(t, []string{"c", "d", "b"}, got)

	var prev int64 = -1
	for _, addr := range got {
		assert.GreaterOrEqual(t, s.Load(addr), prev)
		prev = s.Load(addr)
	}
}

func TestCandidatesTiesKeepRegistrationOrder(t *testing.T) {
	s := New(staticBackends{"x", "y", "z"}, 0, nil)
	assert.Equal(t, []string{"x", "y", "z"}, s.Candidates(nil))
}

func TestCandidatesCapOnlyAppliesToOthers(t *testing.T) {
	s := New(staticBackends{"a", "b", "c", "d", "e"}, 2, nil)

	got := s.Candidates([]string{"e", "d", "e"})
	assert.Equal(t, []string{"e", "d", "a", "b"}, got)
}

func TestCandidatesUnknownExisting(t *testing.T) {
	s := New(staticBackends{"a"}, 3, nil)
	assert.Equal(t, []string{"gone", "a"}, s.Candidates([]string{"gone"}))
}

func TestRecordRemovalNeverNegative(t *testing.T) {
	m := &recordingMetrics{}
	s := New(staticBackends{"a"}, 3, m)

	s.RecordRemoval("a")
	assert.Equal(t, int64(0), s.Load("a"))

	s.RecordPlacement("a")
	s.RecordRemoval("a")
	s.RecordRemoval("a")
	assert.Equal(t, int64(0), s.Load("a"))
	assert.Equal(t, int64(0), m.loads["a"])
}

func TestConcurrentCounting(t *testing.T) {
	s := New(staticBackends{"a", "b"}, 3, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.RecordPlacement("a")
		}()
		go func() {
			defer wg.Done()
			s.RecordPlacement("b")
			s.RecordRemoval("b")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), s.Load("a"))
	assert.Equal(t, int64(0), s.Load("b"))
	assert.Equal(t, map[string]int64{"a": 50, "b": 0}, s.Loads())
}

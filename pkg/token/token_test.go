package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSigner(t *testing.T, now time.Time) *Signer {
	t.Helper()
	s, err := New("test-secret", 10*time.Second)
	require.NoError(t, err)
	s.Now = func() time.Time { return now }
	return s
}

func TestNewRejectsEmptySecret(t *testing.T) {
	_, err := New("", time.Second)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestNewDefaultsWindow(t *testing.T) {
	s, err := New("x", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindow, s.Window())
}

func TestIssueIsDeterministic(t *testing.T) {
	t0 := time.UnixMilli(1_700_000_000_000)
	s := newSigner(t, t0)

	a := s.Issue("alice$$$report.txt", t0)
	b := s.Issue("alice$$$report.txt", t0)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasSuffix(a, "/1700000000000"), a)

	other, err := New("other-secret", 10*time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, a, other.Issue("alice$$$report.txt", t0))
}

func TestValidateWindow(t *testing.T) {
	t0 := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name  string
		delta time.Duration
		want  bool
	}{
		{"immediately", 0, true},
		{"just inside", 9999 * time.Millisecond, true},
		{"at window", 10 * time.Second, false},
		{"after window", 11 * time.Second, false},
		{"slightly in the future", -time.Second, true},
		{"far in the future", -10 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSigner(t, t0.Add(tt.delta))
			tok := s.Issue("alice", t0)
			assert.Equal(t, tt.want, s.Validate("alice", tok))
		})
	}
}

func TestValidateRejectsOtherSubject(t *testing.T) {
	t0 := time.UnixMilli(1_700_000_000_000)
	s := newSigner(t, t0)

	tok := s.Issue("alice", t0)
	assert.False(t, s.Validate("bob", tok))
}

func TestValidateMalformed(t *testing.T) {
	t0 := time.UnixMilli(1_700_000_000_000)
	s := newSigner(t, t0)
	good := s.Issue("alice", t0)
	tag, _, _ := strings.Cut(good, "/")

	for _, tok := range []string{
		"",
		"no-separator",
		"/1700000000000",
		tag + "/not-a-number",
		tag + "/1700000000001",
		"deadbeef/1700000000000",
	} {
		assert.False(t, s.Validate("alice", tok), "token %q", tok)
	}
}

func TestLongSecret(t *testing.T) {
	s, err := New(strings.Repeat("k", 200), time.Second)
	require.NoError(t, err)

	tok := s.IssueNow("alice")
	assert.True(t, s.Validate("alice", tok))
}

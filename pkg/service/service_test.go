package service

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"plain", "alice", true},
		{"with dot", "report.txt", true},
		{"empty", "", false},
		{"contains delimiter", "a$$$b", false},
		{"single dollar", "a$b", true},
		{"double dollar inside", "a$$b", true},
		{"leading dollar", "$y", false},
		{"trailing dollar", "x$", false},
		{"only dollars", "$$", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidName(tt.input))
		})
	}
}

func TestFileIDRoundTrip(t *testing.T) {
	id := FileID("alice", "report.txt")
	assert.Equal(t, "alice$$$report.txt", id)

	user, name, ok := SplitFileID(id)
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "report.txt", name)

	_, _, ok = SplitFileID("no-delimiter")
	assert.False(t, ok)
}

func TestFileIDIsUnambiguous(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		filename string
	}{
		{"owner ends with dollar", "x$", "y"},
		{"filename starts with dollar", "x", "$y"},
		{"owner ends with two dollars", "x$$", "y"},
		{"filename starts with two dollars", "x", "$$y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, ValidName(tt.userID) && ValidName(tt.filename),
				"%q/%q must be rejected", tt.userID, tt.filename)

			_, _, ok := SplitFileID(FileID(tt.userID, tt.filename))
			assert.False(t, ok)
		})
	}

	// Every pair of valid names splits back into itself.
	names := []string{"x", "a$b", "a$$b", "y.txt"}
	for _, u := range names {
		for _, f := range names {
			gotUser, gotFile, ok := SplitFileID(FileID(u, f))
			require.True(t, ok, "%q/%q", u, f)
			assert.Equal(t, u, gotUser)
			assert.Equal(t, f, gotFile)
		}
	}
}

func TestLocationParse(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		fileID   string
		wantLoc  string
		wantBase string
	}{
		{
			name:     "http backend",
			base:     "http://files-1:8080",
			fileID:   "alice$$$report.txt",
			wantLoc:  "http://files-1:8080/files/alice$$$report.txt",
			wantBase: "http://files-1:8080",
		},
		{
			name:     "trailing slash",
			base:     "http://files-1:8080/",
			fileID:   "bob$$$a b",
			wantLoc:  "http://files-1:8080/files/bob$$$a%20b",
			wantBase: "http://files-1:8080",
		},
		{
			name:     "filename with slash",
			base:     "local://files-0",
			fileID:   "bob$$$dir/x",
			wantLoc:  "local://files-0/files/bob$$$dir%2Fx",
			wantBase: "local://files-0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := Location(tt.base, tt.fileID)
			assert.Equal(t, tt.wantLoc, loc)

			base, id, ok := ParseLocation(loc)
			require.True(t, ok)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.fileID, id)
			assert.Equal(t, tt.wantBase, BackendOf(loc))
		})
	}

	_, _, ok := ParseLocation("http://nowhere")
	assert.False(t, ok)
	assert.Equal(t, "http://nowhere", BackendOf("http://nowhere"))
}

func TestErrorCodes(t *testing.T) {
	for c := ErrInternal; c <= ErrRedirect; c++ {
		parsed, ok := ParseErrorCode(c.String())
		require.True(t, ok, c.String())
		assert.Equal(t, c, parsed)

		back, ok := CodeFromStatus(c.HTTPStatus())
		require.True(t, ok, c.String())
		assert.Equal(t, c, back)
	}

	_, ok := CodeFromStatus(http.StatusBadGateway)
	assert.False(t, ok)
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Errorf(ErrNotFound, "file %s", "x"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsForbidden(err))
	assert.True(t, errors.Is(err, NewError(ErrNotFound)))
	assert.Equal(t, ErrNotFound, CodeOf(err))

	foreign := errors.New("boom")
	assert.Equal(t, ErrInternal, CodeOf(foreign))
	assert.Equal(t, ErrInternal, AsError(foreign).Code)
	assert.Nil(t, AsError(nil))
}

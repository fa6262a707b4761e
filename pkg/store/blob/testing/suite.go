// Package testing provides a reusable contract test suite for blob.Store
// implementations.
package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittodir/pkg/store/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite tests the blob.Store contract, not implementation details.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &blobtesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) blob.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) blob.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("PutGet", suite.testPutGet)
	t.Run("Overwrite", suite.testOverwrite)
	t.Run("EmptyBlob", suite.testEmptyBlob)
	t.Run("GetMissing", suite.testGetMissing)
	t.Run("Delete", suite.testDelete)
	t.Run("DeleteMissing", suite.testDeleteMissing)
	t.Run("DeletePrefix", suite.testDeletePrefix)
	t.Run("InvalidKey", suite.testInvalidKey)
	t.Run("CallerOwnsBuffers", suite.testCallerOwnsBuffers)
	t.Run("CancelledContext", suite.testCancelledContext)
}

func (suite *StoreTestSuite) newStore(t *testing.T) blob.Store {
	t.Helper()
	s := suite.NewStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func (suite *StoreTestSuite) testPutGet(t *testing.T) {
	ctx := context.Background()
	s := suite.newStore(t)

	require.NoError(t, s.Put(ctx, "alice/report.pdf", []byte("Hello, World!")))

	data, err := s.Get(ctx, "alice/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello, World!"), data)
}

func (suite *StoreTestSuite) testOverwrite(t *testing.T) {
	ctx := context.Background()
	s := suite.newStore(t)

	require.NoError(t, s.Put(ctx, "alice/a", []byte("old data")))
	require.NoError(t, s.Put(ctx, "alice/a", []byte("new")))

	data, err := s.Get(ctx, "alice/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func (suite *StoreTestSuite) testEmptyBlob(t *testing.T) {
	ctx := context.Background()
	s := suite.newStore(t)

	require.NoError(t, s.Put(ctx, "alice/empty", nil))

	data, err := s.Get(ctx, "alice/empty")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func (suite *StoreTestSuite) testGetMissing(t *testing.T) {
	s := suite.newStore(t)

	_, err := s.Get(context.Background(), "alice/missing")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	ctx := context.Background()
	s := suite.newStore(t)

	require.NoError(t, s.Put(ctx, "alice/a", []byte("x")))
	require.NoError(t, s.Delete(ctx, "alice/a"))

	_, err := s.Get(ctx, "alice/a")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func (suite *StoreTestSuite) testDeleteMissing(t *testing.T) {
	s := suite.newStore(t)

	err := s.Delete(context.Background(), "alice/missing")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func (suite *StoreTestSuite) testDeletePrefix(t *testing.T) {
	ctx := context.Background()
	s := suite.newStore(t)

	for _, key := range []string{"alice/a", "alice/b", "alice/c", "alicex/a", "bob/a"} {
		require.NoError(t, s.Put(ctx, key, []byte(key)))
	}

	n, err := s.DeletePrefix(ctx, "alice/")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, key := range []string{"alice/a", "alice/b", "alice/c"} {
		_, err := s.Get(ctx, key)
		assert.ErrorIs(t, err, blob.ErrNotFound, key)
	}
	for _, key := range []string{"alicex/a", "bob/a"} {
		data, err := s.Get(ctx, key)
		require.NoError(t, err, key)
		assert.Equal(t, []byte(key), data)
	}

	n, err = s.DeletePrefix(ctx, "nobody/")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func (suite *StoreTestSuite) testInvalidKey(t *testing.T) {
	ctx := context.Background()
	s := suite.newStore(t)

	for _, key := range []string{"", "/abs", "alice/..", "../escape", "a//b"} {
		err := s.Put(ctx, key, []byte("x"))
		assert.ErrorIs(t, err, blob.ErrInvalidKey, "key %q", key)
	}
}

func (suite *StoreTestSuite) testCallerOwnsBuffers(t *testing.T) {
	ctx := context.Background()
	s := suite.newStore(t)

	in := []byte("abc")
	require.NoError(t, s.Put(ctx, "alice/buf", in))
	in[0] = 'X'

	out, err := s.Get(ctx, "alice/buf")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)
	out[0] = 'Y'

	again, err := s.Get(ctx, "alice/buf")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	s := suite.newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Put(ctx, "alice/a", []byte("x"))
	assert.True(t, errors.Is(err, context.Canceled))
}

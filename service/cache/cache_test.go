package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGet_MissReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	found, err := s.Has("missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	raw := []byte(`{"signature":"abc","slot":42}`)
	require.NoError(t, s.Put("abc", raw))

	found, err := s.Has("abc")
	require.NoError(t, err)
	assert.True(t, found)

	got, err := s.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestPut_LastWriteWins(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("abc", []byte("first")))
	require.NoError(t, s.Put("abc", []byte("second")))

	got, err := s.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDurableAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("abc", []byte("payload")))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestForEach(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("a", []byte("1")))
	require.NoError(t, s.Put("b", []byte("2")))

	seen := make(map[string]string)
	err := s.ForEach(func(sig string, raw []byte) error {
		seen[sig] = string(raw)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)
}

func TestForEach_StopIteration(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("a", []byte("1")))
	require.NoError(t, s.Put("b", []byte("2")))
	require.NoError(t, s.Put("c", []byte("3")))

	var count int
	err := s.ForEach(func(sig string, raw []byte) error {
		count++
		if count == 2 {
			return ErrStopIteration
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

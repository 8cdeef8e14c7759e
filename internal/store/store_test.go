package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := New()
	rec := s.Put("k", "v1", 10.0)
	require.Equal(t, "v1", *rec.Value)

	got, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, "v1", *got.Value)
	require.Equal(t, 10.0, got.Ts)
	require.False(t, got.Tombstone)
}

func TestDeleteProducesTombstone(t *testing.T) {
	s := New()
	s.Put("k", "v1", 10.0)
	rec := s.Delete("k", 20.0)

	require.True(t, rec.Tombstone)
	require.Nil(t, rec.Value)

	got, ok := s.Get("k")
	require.True(t, ok)
	require.True(t, got.Tombstone)
	require.Equal(t, 20.0, got.Ts)
}

func TestPutOverwritesUnconditionally(t *testing.T) {
	s := New()
	s.Put("k", "new", 5.0)
	s.Put("k", "stale", 1.0) // lower ts still wins — no write-time arbitration

	got, _ := s.Get("k")
	require.Equal(t, "stale", *got.Value)
	require.Equal(t, 1.0, got.Ts)
}

func TestGetAbsentKey(t *testing.T) {
	s := New()
	_, ok := s.Get("missing")
	require.False(t, ok)
}

func TestNewerPicksLargerTsTieBreaksFirst(t *testing.T) {
	v1, v2 := "a", "b"
	a := &Record{Value: &v1, Ts: 5}
	b := &Record{Value: &v2, Ts: 10}

	require.Same(t, b, Newer(a, b))
	require.Same(t, b, Newer(b, a))

	tie := &Record{Value: &v2, Ts: 5}
	require.Same(t, a, Newer(a, tie))
}

func TestNewerTreatsNilAsOldest(t *testing.T) {
	v := "v"
	rec := &Record{Value: &v, Ts: 0}

	require.Same(t, rec, Newer(nil, rec))
	require.Same(t, rec, Newer(rec, nil))
	require.Nil(t, Newer(nil, nil))
}

func TestKeysExcludesTombstones(t *testing.T) {
	s := New()
	s.Put("a", "1", 1)
	s.Put("b", "2", 2)
	s.Delete("b", 3)

	keys := s.Keys()
	require.ElementsMatch(t, []string{"a"}, keys)
}

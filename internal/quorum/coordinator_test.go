package quorum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
}

func downServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	return srv
}

func TestReplicatePutEarlyReturnOnThreshold(t *testing.T) {
	var hits int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()

	fast1, fast2 := okServer(t), okServer(t)
	defer fast1.Close()
	defer fast2.Close()

	c := New(2 * time.Second)
	start := time.Now()
	res := c.ReplicatePut(context.Background(), []string{fast1.URL, fast2.URL, slow.URL}, "k", "v", 1.0, 2)
	elapsed := time.Since(start)

	require.Equal(t, 2, res.Acks)
	require.Equal(t, 2, res.Needed)
	require.True(t, res.Met())
	require.Less(t, elapsed, 150*time.Millisecond, "should return before the slow replica responds")
}

func TestReplicatePutQuorumNotMet(t *testing.T) {
	down1, down2 := downServer(t), downServer(t)
	defer down1.Close()
	defer down2.Close()
	up := okServer(t)
	defer up.Close()

	c := New(time.Second)
	res := c.ReplicatePut(context.Background(), []string{down1.URL, down2.URL, up.URL}, "k", "v", 1.0, 2)

	require.False(t, res.Met())
	require.Equal(t, 1, res.Acks)
}

func TestReplicateDeleteUsesDeletePath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(time.Second)
	res := c.ReplicateDelete(context.Background(), []string{srv.URL}, "k", 5.0, 1)
	require.True(t, res.Met())
	require.Equal(t, "/internal/replica/delete", gotPath)
}

func recordServer(t *testing.T, value *string, ts float64, tombstone bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(wireRecord{Value: value, Ts: ts, Tombstone: tombstone})
	}))
}

func TestQuorumGetReconcilesViaLWW(t *testing.T) {
	a, b := "A", "B"
	older := recordServer(t, &a, 50, false)
	newer := recordServer(t, &b, 100, false)
	defer older.Close()
	defer newer.Close()

	c := New(time.Second)
	res := c.QuorumGet(context.Background(), []string{older.URL, newer.URL}, "k", 2)

	require.True(t, res.Ok)
	require.True(t, res.Found)
	require.Equal(t, "B", *res.Record.Value)
}

func TestQuorumGetNoQuorumWhenAllFail(t *testing.T) {
	down := downServer(t)
	defer down.Close()

	c := New(time.Second)
	res := c.QuorumGet(context.Background(), []string{down.URL}, "k", 1)

	require.False(t, res.Ok)
	require.Equal(t, "no_quorum", res.Reason)
}

func TestQuorumGetAbsentAsTombstoneLosesToRealWrite(t *testing.T) {
	absent := recordServer(t, nil, 0, true)
	real := "v"
	written := recordServer(t, &real, 42, false)
	defer absent.Close()
	defer written.Close()

	c := New(time.Second)
	res := c.QuorumGet(context.Background(), []string{absent.URL, written.URL}, "k", 2)

	require.True(t, res.Ok)
	require.True(t, res.Found)
	require.Equal(t, "v", *res.Record.Value)
}

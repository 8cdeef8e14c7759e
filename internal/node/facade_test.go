package node

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mini-dynamo/internal/membership"
	"mini-dynamo/internal/quorum"
	"mini-dynamo/internal/ring"
	"mini-dynamo/internal/store"
)

// fakeReplica is a minimal standalone /internal/replica/* server backed by
// its own Store, used to exercise the facade's fan-out against real HTTP
// without booting a second full node.
func fakeReplica(t *testing.T) (*httptest.Server, *store.Store) {
	s := store.New()
	mux := http.NewServeMux()
	mux.HandleFunc("/internal/replica/put", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Key   string  `json:"key"`
			Value string  `json:"value"`
			Ts    float64 `json:"ts"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.Put(body.Key, body.Value, body.Ts)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/internal/replica/delete", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Key string  `json:"key"`
			Ts  float64 `json:"ts"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.Delete(body.Key, body.Ts)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/internal/replica/get", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		rec, ok := s.Get(key)
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"value": nil, "ts": 0.0, "tombstone": true})
			return
		}
		_ = json.NewEncoder(w).Encode(rec)
	})
	return httptest.NewServer(mux), s
}

func buildFacade(t *testing.T, selfURL string, peerURLs []string, n, w, q int) *Facade {
	st := store.New()
	m := membership.New(selfURL, peerURLs, time.Minute)
	r := ring.New(50)
	r.SetNodes(m.AllNodes())
	c := quorum.New(time.Second)
	return New(Config{SelfURL: selfURL, Replication: n, W: w, Q: q}, st, r, m, c)
}

func TestFacadePutQuorumMetAndReadsBack(t *testing.T) {
	self, selfStore := fakeReplica(t)
	p1, _ := fakeReplica(t)
	p2, _ := fakeReplica(t)
	defer self.Close()
	defer p1.Close()
	defer p2.Close()

	f := buildFacade(t, self.URL, []string{p1.URL, p2.URL}, 3, 2, 2)

	res, err := f.Put(context.Background(), "k", "v1")
	require.NoError(t, err)
	require.Len(t, res.Replicas, 3)
	require.GreaterOrEqual(t, res.Quorum.Acks, 2)

	// If self is in the preference list, the local store is written
	// synchronously before fan-out even completes.
	if contains(res.Replicas, self.URL) {
		rec, ok := selfStore.Get("k")
		require.True(t, ok)
		require.Equal(t, "v1", *rec.Value)
	}

	got, err := f.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, got.Read.Ok)
	require.True(t, got.Read.Found)
	require.Equal(t, "v1", *got.Read.Record.Value)
}

func TestFacadePutQuorumNotMetWithOneReplicaDown(t *testing.T) {
	self, _ := fakeReplica(t)
	p1, _ := fakeReplica(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer self.Close()
	defer p1.Close()
	defer down.Close()

	f := buildFacade(t, self.URL, []string{p1.URL, down.URL}, 3, 3, 2)

	_, err := f.Put(context.Background(), "k", "v")
	require.Error(t, err)

	var notMet *quorum.NotMetError
	require.ErrorAs(t, err, &notMet)
	require.Equal(t, "write", notMet.Op)
	require.Less(t, notMet.Result.Acks, notMet.Result.Needed)
}

func TestFacadeDeleteThenGetReportsTombstone(t *testing.T) {
	self, _ := fakeReplica(t)
	defer self.Close()

	f := buildFacade(t, self.URL, nil, 1, 1, 1)

	_, err := f.Put(context.Background(), "k", "v")
	require.NoError(t, err)

	_, err = f.Delete(context.Background(), "k")
	require.NoError(t, err)

	got, err := f.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, got.Read.Ok)
	require.False(t, got.Read.Found)
	require.True(t, got.Read.Record.Tombstone)
}

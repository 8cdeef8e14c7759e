// Package node wires the store, ring, membership, and quorum coordinator
// together into the single entry point client requests go through: the
// node facade.
package node

import (
	"context"
	"time"

	"mini-dynamo/internal/membership"
	"mini-dynamo/internal/quorum"
	"mini-dynamo/internal/ring"
	"mini-dynamo/internal/store"
)

// ringRefreshInterval is the safety-net period for re-applying membership
// into the ring even if a request-time refresh was elided.
const ringRefreshInterval = 500 * time.Millisecond

// Facade glues components A–D behind the per-request operations a client
// performs: put, get, delete.
type Facade struct {
	selfURL string

	store       *store.Store
	ring        *ring.Ring
	membership  *membership.Membership
	coordinator *quorum.Coordinator

	replication int
	w           int
	q           int

	stopCh chan struct{}
	doneCh chan struct{}
}

// Config holds the per-node quorum parameters the facade needs.
type Config struct {
	SelfURL     string
	Replication int
	W           int
	Q           int
}

// New builds a Facade over the given components.
func New(cfg Config, s *store.Store, r *ring.Ring, m *membership.Membership, c *quorum.Coordinator) *Facade {
	return &Facade{
		selfURL:     cfg.SelfURL,
		store:       s,
		ring:        r,
		membership:  m,
		coordinator: c,
		replication: cfg.Replication,
		w:           cfg.W,
		q:           cfg.Q,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// refreshRing re-applies the current active node set to the ring.
func (f *Facade) refreshRing() {
	f.ring.SetNodes(f.membership.AllNodes())
}

// StartRingRefreshLoop runs the ~500ms background ring refresh documented
// in spec §4.5 as a safety net for request-time refresh.
func (f *Facade) StartRingRefreshLoop(ctx context.Context) {
	go func() {
		defer close(f.doneCh)
		ticker := time.NewTicker(ringRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-f.stopCh:
				return
			case <-ticker.C:
				f.refreshRing()
			}
		}
	}()
}

// StopRingRefreshLoop signals the background loop to exit and waits for it.
func (f *Facade) StopRingRefreshLoop() {
	close(f.stopCh)
	<-f.doneCh
}

// PutResult is the outcome of a client Put.
type PutResult struct {
	Key      string
	Ts       float64
	Replicas []string
	Quorum   quorum.FanoutResult
}

// Put stamps one ts, writes locally if self is a replica, then fans the
// write out to every replica (including self, over loopback) via the
// coordinator.
func (f *Facade) Put(ctx context.Context, key, value string) (PutResult, error) {
	f.refreshRing()
	replicas, err := f.ring.Replicas(key, f.replication)
	if err != nil {
		return PutResult{}, err
	}
	ts := nowSeconds()

	if contains(replicas, f.selfURL) {
		f.store.Put(key, value, ts)
	}

	res := f.coordinator.ReplicatePut(ctx, replicas, key, value, ts, f.w)
	out := PutResult{Key: key, Ts: ts, Replicas: replicas, Quorum: res}
	if !res.Met() {
		return out, &quorum.NotMetError{Op: "write", Result: res}
	}
	return out, nil
}

// DeleteResult is the outcome of a client Delete.
type DeleteResult struct {
	Key      string
	Ts       float64
	Replicas []string
	Quorum   quorum.FanoutResult
}

// Delete mirrors Put but writes a tombstone.
func (f *Facade) Delete(ctx context.Context, key string) (DeleteResult, error) {
	f.refreshRing()
	replicas, err := f.ring.Replicas(key, f.replication)
	if err != nil {
		return DeleteResult{}, err
	}
	ts := nowSeconds()

	if contains(replicas, f.selfURL) {
		f.store.Delete(key, ts)
	}

	res := f.coordinator.ReplicateDelete(ctx, replicas, key, ts, f.w)
	out := DeleteResult{Key: key, Ts: ts, Replicas: replicas, Quorum: res}
	if !res.Met() {
		return out, &quorum.NotMetError{Op: "delete", Result: res}
	}
	return out, nil
}

// GetResult is the outcome of a client Get.
type GetResult struct {
	Replicas []string
	Read     quorum.ReadResult
}

// Get fans a quorum read out across the current preference list.
func (f *Facade) Get(ctx context.Context, key string) (GetResult, error) {
	f.refreshRing()
	replicas, err := f.ring.Replicas(key, f.replication)
	if err != nil {
		return GetResult{}, err
	}

	read := f.coordinator.QuorumGet(ctx, replicas, key, f.q)
	return GetResult{Replicas: replicas, Read: read}, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

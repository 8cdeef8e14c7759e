// Package ring implements the consistent-hash ring: a deterministic mapping
// from a key to an ordered preference list of node URLs, built from virtual
// nodes so that adding or removing one physical node only reshuffles a
// small, roughly even fraction of keys.
//
// The hash function is pinned to MD5-truncated-to-32-bits so that every
// node in a cluster computes the same ring for the same node set — this
// must not drift between nodes, or preference lists would disagree.
package ring

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrEmptyRing is returned by Owner/Replicas when no nodes are registered.
var ErrEmptyRing = errors.New("ring: no nodes registered")

type entry struct {
	token uint32
	node  string
}

// Ring holds an immutable snapshot of (token, node) entries sorted by
// token, swapped out wholesale on every SetNodes call so concurrent readers
// never observe a torn intermediate state.
type Ring struct {
	mu      sync.RWMutex
	vnodes  int
	nodes   []string
	entries []entry
}

// New creates an empty ring that will place vnodes virtual nodes per
// physical node once SetNodes is called.
func New(vnodes int) *Ring {
	if vnodes <= 0 {
		vnodes = 1
	}
	return &Ring{vnodes: vnodes}
}

// hashToken reproduces hashlib.md5(key).hexdigest()[:8] interpreted as a
// big-endian uint32 — the first 4 bytes of the MD5 digest.
func hashToken(key string) uint32 {
	sum := md5.Sum([]byte(key))
	return binary.BigEndian.Uint32(sum[:4])
}

// SetNodes replaces the active node set with sort(unique(nodes)) and
// rebuilds the ring. The previous ring snapshot remains valid for any
// reader holding it until this call completes.
func (r *Ring) SetNodes(nodes []string) {
	unique := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		unique[n] = struct{}{}
	}
	sorted := make([]string, 0, len(unique))
	for n := range unique {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	entries := make([]entry, 0, len(sorted)*r.vnodes)
	for _, n := range sorted {
		for i := 0; i < r.vnodes; i++ {
			entries = append(entries, entry{token: hashToken(fmt.Sprintf("%s#%d", n, i)), node: n})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].token < entries[j].token })

	r.mu.Lock()
	r.nodes = sorted
	r.entries = entries
	r.mu.Unlock()
}

// Nodes returns the current active node set (sorted).
func (r *Ring) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// startIndex returns the index of the first ring entry with token strictly
// greater than hash(key), wrapping to 0 if none exists.
func startIndex(entries []entry, keyHash uint32) int {
	idx := sort.Search(len(entries), func(i int) bool { return entries[i].token > keyHash })
	if idx == len(entries) {
		idx = 0
	}
	return idx
}

// Owner returns the node responsible for key: the first ring entry
// encountered clockwise from hash(key).
func (r *Ring) Owner(key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.entries) == 0 {
		return "", ErrEmptyRing
	}
	idx := startIndex(r.entries, hashToken(key))
	return r.entries[idx].node, nil
}

// Replicas returns the ordered, distinct preference list for key: up to
// min(max(1,n), len(nodes)) nodes, walked clockwise from the same start
// index as Owner.
func (r *Ring) Replicas(key string, n int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return nil, ErrEmptyRing
	}
	if n < 1 {
		n = 1
	}
	want := n
	if want > len(r.nodes) {
		want = len(r.nodes)
	}

	idx := startIndex(r.entries, hashToken(key))
	seen := make(map[string]struct{}, want)
	out := make([]string, 0, want)
	for i := 0; len(out) < want; i++ {
		e := r.entries[(idx+i)%len(r.entries)]
		if _, ok := seen[e.node]; ok {
			continue
		}
		seen[e.node] = struct{}{}
		out = append(out, e.node)
	}
	return out, nil
}

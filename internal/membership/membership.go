// Package membership tracks peer liveness via best-effort heartbeats and
// exposes the active node set (self plus alive peers) that the hash ring
// is rebuilt from.
package membership

import (
	"sort"
	"sync"
	"time"
)

// PeerState is the liveness record for one peer.
type PeerState struct {
	BaseURL  string    `json:"base_url"`
	LastSeen time.Time `json:"last_seen"`
	Alive    bool      `json:"alive"`
}

// Membership owns the peer map for one node. Safe for concurrent use.
type Membership struct {
	mu        sync.RWMutex
	selfURL   string
	peers     map[string]*PeerState
	deadAfter time.Duration
}

// New seeds a Membership with an initial peer set, all marked alive.
func New(selfURL string, peers []string, deadAfter time.Duration) *Membership {
	m := &Membership{
		selfURL:   selfURL,
		peers:     make(map[string]*PeerState),
		deadAfter: deadAfter,
	}
	now := time.Now()
	seen := make(map[string]struct{})
	for _, p := range peers {
		if p == selfURL {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		m.peers[p] = &PeerState{BaseURL: p, LastSeen: now, Alive: true}
	}
	return m
}

// SelfURL returns this node's own base URL.
func (m *Membership) SelfURL() string { return m.selfURL }

// MarkSeen records a successful contact with peerURL, marking it alive.
// Self-reports are ignored; an unknown peer is adopted (late join).
func (m *Membership) MarkSeen(peerURL string) {
	if peerURL == m.selfURL || peerURL == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.peers[peerURL]
	if !ok {
		st = &PeerState{BaseURL: peerURL}
		m.peers[peerURL] = st
	}
	st.LastSeen = time.Now()
	st.Alive = true
}

// TickDead marks any peer not seen within deadAfter as not alive. It never
// resurrects a peer — that only happens via MarkSeen.
func (m *Membership) TickDead() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.peers {
		if now.Sub(st.LastSeen) > m.deadAfter {
			st.Alive = false
		}
	}
}

// AllNodes returns {self} ∪ {alive peers}, sorted and de-duplicated.
func (m *Membership) AllNodes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := map[string]struct{}{m.selfURL: {}}
	for _, st := range m.peers {
		if st.Alive {
			set[st.BaseURL] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// PeerSnapshot is a diagnostic read of every known peer's state.
func (m *Membership) PeerSnapshot() map[string]PeerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]PeerState, len(m.peers))
	for url, st := range m.peers {
		out[url] = *st
	}
	return out
}

// KnownPeers returns the peer URLs known at the time of the call — used by
// the heartbeat loop to take a stable snapshot of targets per tick.
func (m *Membership) KnownPeers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.peers))
	for url := range m.peers {
		out = append(out, url)
	}
	return out
}

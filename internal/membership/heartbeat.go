package membership

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"mini-dynamo/internal/metrics"
)

// HeartbeatRequest is the wire body POSTed to a peer's
// /internal/heartbeat. From is canonical; FromURL/FromURLAlt are accepted
// on receipt for backward wire compatibility but never sent by this
// implementation.
type HeartbeatRequest struct {
	From       string `json:"from"`
	NodeID     string `json:"node_id"`
	FromURL    string `json:"from_url,omitempty"`
	FromURLAlt string `json:"from_url_alt,omitempty"`
}

// Heartbeater runs the long-lived heartbeat loop for one node: every
// interval, it fans a heartbeat out to every known peer, marks the
// responders seen, and ticks dead any peer that has gone quiet.
type Heartbeater struct {
	m        *Membership
	nodeID   string
	interval time.Duration
	client   *http.Client
	log      *logrus.Entry
	metrics  *metrics.Metrics

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHeartbeater wires a Heartbeater for m. requestTimeout bounds each
// individual peer RPC. mtr may be nil to run without metrics.
func NewHeartbeater(m *Membership, nodeID string, interval, requestTimeout time.Duration, log *logrus.Entry, mtr *metrics.Metrics) *Heartbeater {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Heartbeater{
		m:        m,
		nodeID:   nodeID,
		interval: interval,
		client:   &http.Client{Timeout: requestTimeout},
		log:      log.WithField("component", "heartbeat"),
		metrics:  mtr,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the loop in a background goroutine until Stop is called or ctx
// is cancelled.
func (h *Heartbeater) Start(ctx context.Context) {
	go func() {
		defer close(h.doneCh)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			case <-ticker.C:
				h.tick(ctx)
			}
		}
	}()
}

// Stop signals the loop to exit and blocks until it has.
func (h *Heartbeater) Stop() {
	close(h.stopCh)
	<-h.doneCh
}

func (h *Heartbeater) tick(ctx context.Context) {
	for _, peer := range h.m.KnownPeers() {
		if h.metrics != nil {
			h.metrics.HeartbeatsSentTotal.Inc()
		}
		if h.sendOne(ctx, peer) {
			h.m.MarkSeen(peer)
		}
	}
	h.m.TickDead()
	if h.metrics != nil {
		alive := 0
		for _, st := range h.m.PeerSnapshot() {
			if st.Alive {
				alive++
			}
		}
		h.metrics.PeersAlive.Set(float64(alive))
	}
}

// sendOne POSTs a heartbeat to peer and reports whether it got HTTP 200.
// Any transport error or non-200 is swallowed — heartbeats are
// fire-and-forget.
func (h *Heartbeater) sendOne(ctx context.Context, peer string) bool {
	body, err := json.Marshal(HeartbeatRequest{From: h.m.SelfURL(), NodeID: h.nodeID})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peer+"/internal/heartbeat", bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.WithError(err).WithField("peer", peer).Debug("heartbeat failed")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Package quorum fans replica RPCs out in parallel and decides
// success/failure against a caller-supplied threshold (W for writes, Q for
// reads), reconciling read replies with the store's LWW rule.
package quorum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mini-dynamo/internal/metrics"
	"mini-dynamo/internal/store"
)

// FanoutResult is the outcome of a write fan-out (put or delete).
type FanoutResult struct {
	Acks    int             `json:"acks"`
	Needed  int             `json:"needed"`
	Results map[string]bool `json:"results"`
}

// Met reports whether the fan-out reached its threshold.
func (f FanoutResult) Met() bool { return f.Acks >= f.Needed }

// wireRecord mirrors the /internal/replica/get response body.
type wireRecord struct {
	Value     *string `json:"value"`
	Ts        float64 `json:"ts"`
	Tombstone bool    `json:"tombstone"`
}

// ReadResult is the outcome of a quorum read.
type ReadResult struct {
	Ok        bool
	Found     bool
	Record    *store.Record
	Reason    string
	Responses map[string]*wireRecord
}

// Coordinator performs the parallel fan-out described in spec §4.4.
type Coordinator struct {
	client  *http.Client
	timeout time.Duration
	metrics *metrics.Metrics
}

// New builds a Coordinator whose per-replica RPCs are bounded by timeout.
func New(timeout time.Duration) *Coordinator {
	return &Coordinator{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// WithMetrics attaches a metric set that every RPC outcome is recorded
// against. Returns c for chaining.
func (c *Coordinator) WithMetrics(m *metrics.Metrics) *Coordinator {
	c.metrics = m
	return c
}

func (c *Coordinator) record(op string, ok bool) {
	if c.metrics == nil {
		return
	}
	outcome := "ack"
	if !ok {
		outcome = "fail"
	}
	c.metrics.ReplicaRPCsTotal.WithLabelValues(op, outcome).Inc()
}

type rpcOutcome struct {
	replica string
	ok      bool
	body    []byte
}

// replicatePutOrDelete is the shared write-path fan-out for both
// ReplicatePut and ReplicateDelete.
func (c *Coordinator) replicatePutOrDelete(ctx context.Context, replicas []string, w int, op, path string, payload any) FanoutResult {
	if w < 1 {
		w = 1
	}
	body, _ := json.Marshal(payload)

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan rpcOutcome, len(replicas))
	for _, replica := range replicas {
		go func(replica string) {
			ok := c.postOK(fctx, replica+path, body)
			ch <- rpcOutcome{replica: replica, ok: ok}
		}(replica)
	}

	results := make(map[string]bool, len(replicas))
	acks := 0
	for i := 0; i < len(replicas); i++ {
		out := <-ch
		results[out.replica] = out.ok
		c.record(op, out.ok)
		if out.ok {
			acks++
		}
		if acks >= w {
			break
		}
	}

	return FanoutResult{Acks: acks, Needed: w, Results: results}
}

// ReplicatePut fans a put out to replicas, returning once w replicas have
// acked (or all have responded).
func (c *Coordinator) ReplicatePut(ctx context.Context, replicas []string, key, value string, ts float64, w int) FanoutResult {
	return c.replicatePutOrDelete(ctx, replicas, w, "put", "/internal/replica/put", map[string]any{
		"key": key, "value": value, "ts": ts,
	})
}

// ReplicateDelete fans a delete (tombstone write) out to replicas.
func (c *Coordinator) ReplicateDelete(ctx context.Context, replicas []string, key string, ts float64, w int) FanoutResult {
	return c.replicatePutOrDelete(ctx, replicas, w, "delete", "/internal/replica/delete", map[string]any{
		"key": key, "ts": ts,
	})
}

// QuorumGet fans a get out to replicas, accumulating replies via LWW until
// q have been observed successful.
func (c *Coordinator) QuorumGet(ctx context.Context, replicas []string, key string, q int) ReadResult {
	if q < 1 {
		q = 1
	}

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan rpcOutcome, len(replicas))
	for _, replica := range replicas {
		go func(replica string) {
			body, ok := c.getBody(fctx, fmt.Sprintf("%s/internal/replica/get?key=%s", replica, key))
			ch <- rpcOutcome{replica: replica, ok: ok, body: body}
		}(replica)
	}

	responses := make(map[string]*wireRecord, len(replicas))
	var best *store.Record
	oks := 0

	for i := 0; i < len(replicas); i++ {
		out := <-ch
		c.record("get", out.ok)
		if !out.ok {
			responses[out.replica] = nil
			continue
		}
		var wr wireRecord
		if err := json.Unmarshal(out.body, &wr); err != nil {
			responses[out.replica] = nil
			continue
		}
		responses[out.replica] = &wr
		oks++

		rec := &store.Record{Value: wr.Value, Ts: wr.Ts, Tombstone: wr.Tombstone}
		best = store.Newer(best, rec)

		if oks >= q {
			break
		}
	}

	if best == nil {
		return ReadResult{Ok: false, Reason: "no_quorum", Responses: responses}
	}
	if best.Tombstone {
		return ReadResult{Ok: true, Found: false, Record: best, Responses: responses}
	}
	return ReadResult{Ok: true, Found: true, Record: best, Responses: responses}
}

func (c *Coordinator) postOK(ctx context.Context, url string, body []byte) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Coordinator) getBody(ctx context.Context, url string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

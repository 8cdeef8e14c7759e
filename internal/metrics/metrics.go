// Package metrics exposes Prometheus counters for the quorum and
// membership subsystems, scraped from GET /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the counters a node registers with its own registry so
// that multiple nodes in the same test process don't collide on the
// default global registry.
type Metrics struct {
	Registry *prometheus.Registry

	OpsTotal            *prometheus.CounterVec
	QuorumFailuresTotal *prometheus.CounterVec
	ReplicaRPCsTotal    *prometheus.CounterVec
	HeartbeatsSentTotal prometheus.Counter
	PeersAlive          prometheus.Gauge
}

// New constructs and registers a fresh metric set.
func New(nodeID string) *Metrics {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"node_id": nodeID}

	m := &Metrics{
		Registry: reg,
		OpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kv_ops_total",
			Help:        "Client operations handled by this node, by op and outcome.",
			ConstLabels: constLabels,
		}, []string{"op", "outcome"}),
		QuorumFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kv_quorum_failures_total",
			Help:        "Operations that failed to reach their configured quorum, by op.",
			ConstLabels: constLabels,
		}, []string{"op"}),
		ReplicaRPCsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kv_replica_rpcs_total",
			Help:        "Outbound replica RPCs issued by the quorum coordinator, by op and outcome.",
			ConstLabels: constLabels,
		}, []string{"op", "outcome"}),
		HeartbeatsSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "kv_heartbeats_sent_total",
			Help:        "Heartbeats sent to peers.",
			ConstLabels: constLabels,
		}),
		PeersAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kv_peers_alive",
			Help:        "Number of peers currently considered alive.",
			ConstLabels: constLabels,
		}),
	}

	reg.MustRegister(m.OpsTotal, m.QuorumFailuresTotal, m.ReplicaRPCsTotal, m.HeartbeatsSentTotal, m.PeersAlive)
	return m
}

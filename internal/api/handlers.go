// Package api is the thin HTTP adapter translating the wire contract onto
// calls against the core node facade, store, and membership. It owns no
// distributed-systems logic itself.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mini-dynamo/internal/membership"
	"mini-dynamo/internal/metrics"
	"mini-dynamo/internal/node"
	"mini-dynamo/internal/quorum"
	"mini-dynamo/internal/ring"
	"mini-dynamo/internal/store"
)

// Handler holds the dependencies every route needs.
type Handler struct {
	facade     *node.Facade
	store      *store.Store
	membership *membership.Membership
	ring       *ring.Ring
	metrics    *metrics.Metrics

	nodeID      string
	selfURL     string
	replication int
	w           int
	q           int
}

// New builds a Handler.
func New(f *node.Facade, s *store.Store, m *membership.Membership, r *ring.Ring, mtr *metrics.Metrics, nodeID, selfURL string, replication, w, q int) *Handler {
	return &Handler{
		facade: f, store: s, membership: m, ring: r, metrics: mtr,
		nodeID: nodeID, selfURL: selfURL, replication: replication, w: w, q: q,
	}
}

// Register mounts every route onto router.
func (h *Handler) Register(router *gin.Engine) {
	router.Use(RequestID(), Logger(h.nodeID), Recovery())

	kv := router.Group("/kv")
	kv.POST("/put", h.Put)
	kv.GET("/get", h.Get)
	kv.POST("/delete", h.Delete)

	internalGroup := router.Group("/internal")
	internalGroup.POST("/replica/put", h.ReplicaPut)
	internalGroup.POST("/replica/delete", h.ReplicaDelete)
	internalGroup.GET("/replica/get", h.ReplicaGet)
	internalGroup.POST("/heartbeat", h.Heartbeat)

	router.GET("/health", h.Health)
	router.GET("/debug/state", h.DebugState)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{})))
	}
}

func (h *Handler) countOp(op, outcome string) {
	if h.metrics != nil {
		h.metrics.OpsTotal.WithLabelValues(op, outcome).Inc()
	}
}

func (h *Handler) countQuorumFailure(op string) {
	if h.metrics != nil {
		h.metrics.QuorumFailuresTotal.WithLabelValues(op).Inc()
	}
}

// ─── Public client endpoints ───────────────────────────────────────────────

// Put handles POST /kv/put.
func (h *Handler) Put(c *gin.Context) {
	var req PutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.facade.Put(c.Request.Context(), req.Key, req.Value)
	if notMet, ok := asNotMet(err); ok {
		h.countQuorumFailure("write")
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": gin.H{
			"error":    "write_quorum_not_met",
			"acks":     notMet.Result.Acks,
			"needed":   notMet.Result.Needed,
			"results":  notMet.Result.Results,
			"replicas": res.Replicas,
		}})
		return
	}
	if err != nil {
		h.countOp("put", "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.countOp("put", "ok")
	c.JSON(http.StatusOK, gin.H{
		"ok": true, "key": res.Key, "ts": res.Ts, "replicas": res.Replicas,
		"quorum": renderQuorum(res.Quorum),
	})
}

// Get handles GET /kv/get?key=….
func (h *Handler) Get(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing key"})
		return
	}

	res, err := h.facade.Get(c.Request.Context(), key)
	if err != nil {
		h.countOp("get", "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !res.Read.Ok {
		h.countQuorumFailure("read")
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": gin.H{
			"error":     "read_quorum_not_met",
			"replicas":  res.Replicas,
			"reason":    res.Read.Reason,
			"responses": res.Read.Responses,
		}})
		return
	}

	h.countOp("get", "ok")
	body := gin.H{
		"ok": true, "key": key, "replicas": res.Replicas, "found": res.Read.Found,
		"responses": res.Read.Responses,
	}
	if res.Read.Record != nil {
		body["record"] = recordView{Value: res.Read.Record.Value, Ts: res.Read.Record.Ts, Tombstone: res.Read.Record.Tombstone}
	}
	c.JSON(http.StatusOK, body)
}

// Delete handles POST /kv/delete.
func (h *Handler) Delete(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.facade.Delete(c.Request.Context(), req.Key)
	if notMet, ok := asNotMet(err); ok {
		h.countQuorumFailure("delete")
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": gin.H{
			"error":    "delete_quorum_not_met",
			"acks":     notMet.Result.Acks,
			"needed":   notMet.Result.Needed,
			"results":  notMet.Result.Results,
			"replicas": res.Replicas,
		}})
		return
	}
	if err != nil {
		h.countOp("delete", "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.countOp("delete", "ok")
	c.JSON(http.StatusOK, gin.H{
		"ok": true, "key": res.Key, "ts": res.Ts, "replicas": res.Replicas,
		"quorum": renderQuorum(res.Quorum),
	})
}

func asNotMet(err error) (*quorum.NotMetError, bool) {
	notMet, ok := err.(*quorum.NotMetError)
	return notMet, ok
}

// ─── Internal peer endpoints ───────────────────────────────────────────────

// ReplicaPut handles POST /internal/replica/put.
func (h *Handler) ReplicaPut(c *gin.Context) {
	var body struct {
		Key   string  `json:"key" binding:"required"`
		Value string  `json:"value"`
		Ts    float64 `json:"ts"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.store.Put(body.Key, body.Value, body.Ts)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ReplicaDelete handles POST /internal/replica/delete.
func (h *Handler) ReplicaDelete(c *gin.Context) {
	var body struct {
		Key string  `json:"key" binding:"required"`
		Ts  float64 `json:"ts"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.store.Delete(body.Key, body.Ts)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ReplicaGet handles GET /internal/replica/get?key=…. An absent key is
// reported as an absent-as-tombstone record with ts=0 so the requesting
// coordinator's LWW reconciliation treats it uniformly.
func (h *Handler) ReplicaGet(c *gin.Context) {
	key := c.Query("key")
	rec, ok := h.store.Get(key)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"ok": true, "value": nil, "ts": 0.0, "tombstone": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "value": rec.Value, "ts": rec.Ts, "tombstone": rec.Tombstone})
}

// Heartbeat handles POST /internal/heartbeat.
func (h *Handler) Heartbeat(c *gin.Context) {
	var req membership.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	from := req.From
	if from == "" {
		from = req.FromURL
	}
	if from == "" {
		from = req.FromURLAlt
	}
	if from != "" {
		h.membership.MarkSeen(from)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ─── Diagnostics ────────────────────────────────────────────────────────────

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "node_id": h.nodeID, "base_url": h.selfURL})
}

// DebugState handles GET /debug/state.
func (h *Handler) DebugState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"node_id":     h.nodeID,
		"base_url":    h.selfURL,
		"ring_nodes":  h.ring.Nodes(),
		"peers":       h.membership.PeerSnapshot(),
		"replication": h.replication,
		"w":           h.w,
		"q":           h.q,
	})
}

// cmd/server is the main entrypoint for a mini-dynamo node.
//
// Configuration is entirely via flags so a single binary can serve any
// role in the cluster.
//
// Example — 3-node cluster on one host:
//
//	./server --node-id n1 --addr :8080 --base-url http://localhost:8080 \
//	          --peers http://localhost:8081,http://localhost:8082
//	./server --node-id n2 --addr :8081 --base-url http://localhost:8081 \
//	          --peers http://localhost:8080,http://localhost:8082
//	./server --node-id n3 --addr :8082 --base-url http://localhost:8082 \
//	          --peers http://localhost:8080,http://localhost:8081
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mini-dynamo/internal/api"
	"mini-dynamo/internal/membership"
	"mini-dynamo/internal/metrics"
	"mini-dynamo/internal/node"
	"mini-dynamo/internal/quorum"
	"mini-dynamo/internal/ring"
	"mini-dynamo/internal/store"
)

func main() {
	nodeID := flag.String("node-id", "node1", "unique node identifier")
	addr := flag.String("addr", ":8080", "listen address (host:port)")
	baseURL := flag.String("base-url", "http://localhost:8080", "URL this node advertises to peers")
	peersFlag := flag.String("peers", "", "comma-separated base URLs of peer nodes")
	replicationN := flag.Int("n", 3, "replication factor (N)")
	writeQuorum := flag.Int("w", 2, "write quorum (W)")
	readQuorum := flag.Int("q", 2, "read quorum (Q)")
	vnodes := flag.Int("vnodes", 150, "virtual nodes per physical node on the hash ring")
	heartbeatInterval := flag.Duration("heartbeat-interval", time.Second, "interval between heartbeat rounds")
	peerDeadAfter := flag.Duration("peer-dead-after", 5*time.Second, "mark a peer dead after this long without a heartbeat ack")
	requestTimeout := flag.Duration("request-timeout", 2*time.Second, "per-RPC timeout for replica and heartbeat requests")
	logLevel := flag.String("log-level", "info", "logrus level: debug, info, warn, error")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("invalid --log-level %q: %v", *logLevel, err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	log := logrus.WithField("node_id", *nodeID)

	if *writeQuorum < 1 || *readQuorum < 1 {
		log.Fatal("--w and --q must each be at least 1")
	}

	var peers []string
	if *peersFlag != "" {
		for _, p := range strings.Split(*peersFlag, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				peers = append(peers, p)
			}
		}
	}

	// ── Core components ─────────────────────────────────────────────────────
	s := store.New()
	m := membership.New(*baseURL, peers, *peerDeadAfter)
	r := ring.New(*vnodes)
	r.SetNodes(m.AllNodes())

	mtr := metrics.New(*nodeID)
	coordinator := quorum.New(*requestTimeout).WithMetrics(mtr)

	facade := node.New(node.Config{SelfURL: *baseURL, Replication: *replicationN, W: *writeQuorum, Q: *readQuorum}, s, r, m, coordinator)

	// ── HTTP server ──────────────────────────────────────────────────────────
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	handler := api.New(facade, s, m, r, mtr, *nodeID, *baseURL, *replicationN, *writeQuorum, *readQuorum)
	handler.Register(router)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// ── Background loops ─────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	heartbeater := membership.NewHeartbeater(m, *nodeID, *heartbeatInterval, *requestTimeout, log, mtr)
	heartbeater.Start(ctx)
	defer heartbeater.Stop()

	facade.StartRingRefreshLoop(ctx)
	defer facade.StopRingRefreshLoop()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	go func() {
		log.WithFields(logrus.Fields{"addr": *addr, "n": *replicationN, "w": *writeQuorum, "q": *readQuorum}).Info("node listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown error")
	}
}

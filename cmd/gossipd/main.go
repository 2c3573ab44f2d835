// Command gossipd runs one node of a membership-view gossip mesh: it
// gossips the set of peer addresses it knows about, converging every
// node's view of the cluster without a central directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chrysalis/gossip-mesh/pkg/actorkit"
	"github.com/chrysalis/gossip-mesh/pkg/gossip"
	"github.com/chrysalis/gossip-mesh/pkg/logic/membership"
	"github.com/chrysalis/gossip-mesh/pkg/transport"
	"github.com/rs/zerolog"
)

var (
	nodeID   = flag.String("node-id", "", "this node's dialable host:port, also used as its gossip address")
	addr     = flag.String("addr", ":8080", "HTTP listen address for the gossip wire and status endpoints")
	peers    = flag.String("peers", "", "comma-separated addresses of peers to introduce at startup")
	interval = flag.Duration("interval", 200*time.Millisecond, "mean gossip round interval")
	logLevel = flag.String("log-level", "info", "log level (debug, info, warn, error)")
)

const membershipID = "cluster-membership"

// viewState holds the most recently observed membership view for the
// status endpoint, updated from the shell's own mailbox via onChange.
type viewState struct {
	mu   sync.Mutex
	view membership.View
}

func (s *viewState) set(v membership.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

func (s *viewState) get() membership.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func main() {
	flag.Parse()

	level, _ := zerolog.ParseLevel(*logLevel)
	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("node", *nodeID).
		Logger()

	if *nodeID == "" {
		logger.Fatal().Msg("node-id is required")
	}

	logger.Info().Str("addr", *addr).Msg("starting gossip node")

	state := &viewState{}
	system := actorkit.NewSystem(logger, 256)
	selfAddr := actorkit.NewAddress(*nodeID)

	settings := gossip.DefaultSettings()
	settings.Interval = *interval
	settings.DiscoveryMode = gossip.Manual

	factory := membership.Factory(func(v membership.View) {
		state.set(v)
		logger.Info().Strs("members", v.Addresses).Msg("membership view changed")
	})

	control := gossip.Start(system, selfAddr, settings, factory, logger)

	shellPID, ok := system.Lookup(selfAddr)
	if !ok {
		logger.Fatal().Msg("shell actor not found immediately after Start")
	}

	wire := transport.NewWebSocketTransport(logger)
	bridge := gossip.NewBridge[membership.View](system, selfAddr, shellPID, wire, logger)

	control.Update(gossip.NewIdentifier(membershipID), membership.View{Addresses: []string{*nodeID}})

	for _, peerAddr := range splitPeers(*peers) {
		peerAddr := strings.TrimSpace(peerAddr)
		if peerAddr == "" || peerAddr == *nodeID {
			continue
		}
		target := bridge.RemotePeer(actorkit.NewAddress(peerAddr))
		control.Introduce(gossip.NewPeer(target))
		logger.Info().Str("peer", peerAddr).Msg("introduced peer")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/gossip", wire.UpgradeHandler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/members", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(state.get())
	})

	server := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	control.Stop()
	wire.Close()
	server.Shutdown(ctx)
}

func splitPeers(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

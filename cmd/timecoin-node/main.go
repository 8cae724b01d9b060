// Command timecoin-node runs a masternode process: it loads configuration,
// opens the on-disk journal, wires the node.Core orchestrator, and serves
// the websocket gossip fabric votes and evidence travel over.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"timechain.dev/core/crypto"
	"timechain.dev/core/ledger"
	"timechain.dev/core/node"
	"timechain.dev/core/node/store"
	"timechain.dev/core/node/transport"
	"timechain.dev/core/registry"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a JSON config file (optional, overlays DefaultConfig)")
		bindAddr    = flag.String("bind", "", "override the gossip listen address")
		network     = flag.String("network", "", "override the network name")
		treasuryHex = flag.String("treasury-address", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "hex-encoded 20-byte treasury address")
	)
	flag.Parse()

	cfg := node.DefaultConfig()
	if *configPath != "" {
		loaded, err := node.LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *bindAddr != "" {
		cfg.BindAddr = *bindAddr
	}
	if *network != "" {
		cfg.Network = *network
	}
	cfg.Peers = node.NormalizePeers(append(cfg.Peers, flag.Args()...)...)

	if err := node.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	treasuryAddr, err := decodeTreasuryAddress(*treasuryHex)
	if err != nil {
		logger.Error("invalid treasury address", "err", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DataDir, cfg.Network)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	core := node.NewCore(cfg, crypto.Ed25519Provider{}, treasuryAddr, logger)
	if err := restoreFromStore(core, db); err != nil {
		logger.Error("restore from store", "err", err)
		os.Exit(1)
	}

	hub := transport.NewHub(logger)
	go hub.Run()
	defer hub.Close()

	for _, peer := range cfg.Peers {
		if _, err := transport.Dial(peer, logger); err != nil {
			logger.Warn("failed to dial peer", "peer", peer, "err", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/gossip", hub.ServeWS)
	server := &http.Server{Addr: cfg.BindAddr, Handler: mux}

	stateRoot := core.Ledger.Snapshot()
	logger.Info("timecoin-node starting", "network", cfg.Network, "bind_addr", cfg.BindAddr, "state_root", hex.EncodeToString(stateRoot[:]))
	if err := server.ListenAndServe(); err != nil {
		logger.Error("gossip server stopped", "err", err)
		os.Exit(1)
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func decodeTreasuryAddress(hexStr string) ([20]byte, error) {
	var out [20]byte
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, err
	}
	if len(raw) != 20 {
		return out, fmt.Errorf("treasury address must be 20 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// restoreFromStore replays the on-disk journal into a freshly constructed
// Core (spec.md §4.1/§4.3: the ledger and registry are pure in-memory
// state machines rebuilt from the durable journal on every restart).
func restoreFromStore(core *node.Core, db *store.DB) error {
	if err := db.LoadUTXOs(func(o ledger.Outpoint, e ledger.UtxoEntry) error {
		core.Ledger.Restore(o, e)
		return nil
	}); err != nil {
		return fmt.Errorf("restore utxos: %w", err)
	}
	if err := db.LoadNodes(func(mn *registry.Masternode) error {
		core.RestoreNode(mn)
		return nil
	}); err != nil {
		return fmt.Errorf("restore nodes: %w", err)
	}
	return nil
}

// Package node wires the ledger, registry, consensus, rewards, treasury,
// and slashing packages into a single orchestrated core (spec.md §2
// "Data flow"), along with the configuration, persistence, and transport
// capability surfaces a running process needs around them.
package node

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"timechain.dev/core/consensus"
	"timechain.dev/core/registry"
)

// Config is the node's flat, JSON-serializable configuration (spec.md
// SPEC_FULL.md [AMBIENT] Configuration), adapted from the teacher's
// node/config.go and extended with this protocol's BFT timing budgets,
// quorum bounds, tier overrides, evidence freshness, and deregistration
// cooldown.
type Config struct {
	Network  string   `json:"network"`
	DataDir  string   `json:"data_dir"`
	BindAddr string   `json:"bind_addr"`
	LogLevel string   `json:"log_level"`
	Peers    []string `json:"peers"`
	MaxPeers int      `json:"max_peers"`

	// QuorumSelectionMode chooses between the weighted VRF-seeded quorum
	// and the round-robin simplification (spec.md §9 Open Question).
	QuorumSelectionMode string `json:"quorum_selection_mode"` // "weighted" | "round_robin"
	QuorumMin           int    `json:"quorum_min"`
	QuorumMax           int    `json:"quorum_max"`

	TxRoundBudget       time.Duration `json:"tx_round_budget"`
	BlockProposalWindow time.Duration `json:"block_proposal_window"`
	BlockSigningWindow  time.Duration `json:"block_signing_window"`
	BlockEmergencyExt   time.Duration `json:"block_emergency_extension"`

	TierCollateral map[string]uint64 `json:"tier_collateral_overrides"`

	EvidenceFreshness       time.Duration `json:"evidence_freshness"`
	DeregistrationCooldown  time.Duration `json:"deregistration_cooldown"`

	TreasuryDailyLimit   uint64            `json:"treasury_daily_limit"`
	TreasuryMonthlyLimit uint64            `json:"treasury_monthly_limit"`
	TreasuryCategoryCaps map[string]uint64 `json:"treasury_category_caps"`

	StoreBackend    string `json:"store_backend"`    // "bbolt" (default)
	TreasuryBackend string `json:"treasury_backend"` // "bbolt" | "postgres"
	PostgresDSN     string `json:"postgres_dsn"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var allowedQuorumModes = map[string]struct{}{
	"weighted":    {},
	"round_robin": {},
}

// DefaultDataDir returns the node's default on-disk data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".timecoin"
	}
	return filepath.Join(home, ".timecoin")
}

// DefaultConfig returns a Config populated with this protocol's design
// defaults (spec.md §4.4 timing budgets, §4.7 evidence freshness, §4.3
// deregistration cooldown).
func DefaultConfig() Config {
	return Config{
		Network:  "devnet",
		DataDir:  DefaultDataDir(),
		BindAddr: "0.0.0.0:29111",
		LogLevel: "info",
		MaxPeers: 64,

		QuorumSelectionMode: "weighted",
		QuorumMin:           consensus.Qmin,
		QuorumMax:           consensus.Qmax,

		TxRoundBudget:       3 * time.Second,
		BlockProposalWindow: consensus.ProposalWindow,
		BlockSigningWindow:  consensus.SigningWindow,
		BlockEmergencyExt:   consensus.EmergencyExtension,

		TierCollateral: map[string]uint64{
			"bronze": registry.TierBronze.RequiredCollateral(),
			"silver": registry.TierSilver.RequiredCollateral(),
			"gold":   registry.TierGold.RequiredCollateral(),
		},

		EvidenceFreshness:      time.Hour,
		DeregistrationCooldown: 7 * 24 * time.Hour,

		StoreBackend:    "bbolt",
		TreasuryBackend: "bbolt",
	}
}

// tierCollateralOverrides converts Config.TierCollateral's string-keyed
// overrides ("bronze"/"silver"/"gold") into registry.Tier keys for
// registry.New. Unrecognized keys (including "free", which has no
// collateral requirement) are ignored.
func tierCollateralOverrides(raw map[string]uint64) map[registry.Tier]uint64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[registry.Tier]uint64, len(raw))
	for name, amount := range raw {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "bronze":
			out[registry.TierBronze] = amount
		case "silver":
			out[registry.TierSilver] = amount
		case "gold":
			out[registry.TierGold] = amount
		}
	}
	return out
}

// NormalizePeers dedupes and trims a raw list of comma-joined peer tokens.
func NormalizePeers(raw ...string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, token := range raw {
		for _, p := range strings.Split(token, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// ValidateConfig checks cfg for internal consistency, to be called once at
// process startup (spec.md SPEC_FULL.md [AMBIENT] Error handling:
// configuration errors are fatal only at process startup, never inside
// library code).
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if err := validateAddr(cfg.BindAddr); err != nil {
		return fmt.Errorf("invalid bind_addr: %w", err)
	}
	for _, peer := range cfg.Peers {
		if err := validatePeerAddr(peer); err != nil {
			return fmt.Errorf("invalid peer %q: %w", peer, err)
		}
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.MaxPeers <= 0 || cfg.MaxPeers > 4096 {
		return errors.New("max_peers must be in (0, 4096]")
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.QuorumSelectionMode))
	if _, ok := allowedQuorumModes[mode]; !ok {
		return fmt.Errorf("invalid quorum_selection_mode %q", cfg.QuorumSelectionMode)
	}
	if cfg.QuorumMin <= 0 || cfg.QuorumMax < cfg.QuorumMin {
		return errors.New("quorum_min must be > 0 and <= quorum_max")
	}
	if cfg.TxRoundBudget <= 0 {
		return errors.New("tx_round_budget must be > 0")
	}
	if cfg.BlockProposalWindow <= 0 || cfg.BlockSigningWindow <= 0 {
		return errors.New("block_proposal_window and block_signing_window must be > 0")
	}
	if cfg.EvidenceFreshness <= 0 {
		return errors.New("evidence_freshness must be > 0")
	}
	if cfg.DeregistrationCooldown < 0 {
		return errors.New("deregistration_cooldown must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.TreasuryBackend)) {
	case "bbolt":
	case "postgres":
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return errors.New("postgres_dsn is required when treasury_backend is postgres")
		}
	default:
		return fmt.Errorf("invalid treasury_backend %q", cfg.TreasuryBackend)
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}

func validatePeerAddr(addr string) error {
	if err := validateAddr(addr); err != nil {
		return err
	}
	host, _, _ := net.SplitHostPort(addr)
	if strings.TrimSpace(host) == "" {
		return errors.New("missing host")
	}
	return nil
}

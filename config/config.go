// Package config parses the routing engine's on-disk and command-line
// configuration: the chain this instance gossips for, the local node's
// identity, and the policy engine's timing parameters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "lnrouter.conf"
	defaultPruneTimeout   = time.Hour
	defaultRiskFactor     = 15
	blocksPerYear         = 52596
)

// defaultConfigDir is where lnrouter looks for its config file and any
// persisted state when no -datadir is given.
func defaultConfigDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, ".lnrouter")
}

// Config holds every knob the routing engine's ambient stack needs: which
// chain it gossips for, its own identity, and the policy engine's timing.
type Config struct {
	ConfigFile string `long:"configfile" description:"Path to configuration file"`
	DataDir    string `long:"datadir" description:"Directory to store graph snapshots and logs"`

	ChainHash string `long:"chainhash" description:"Hex-encoded 32-byte chain hash this instance gossips for"`

	NodeKey string `long:"nodekey" description:"Hex-encoded 33-byte compressed public key identifying this node"`

	PruneTimeout time.Duration `long:"prunetimeout" description:"Staleness window after which an unrefreshed public channel is pruned"`

	RiskFactor float64 `long:"riskfactor" description:"User-facing risk tolerance; converted to risk_factor_per_block as riskfactor / blocks-per-year / 10000"`

	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical}"`

	RPCListen string `long:"rpclisten" description:"Address to listen for control-plane requests (get_route, routing_failure, route_prune)"`
}

// Default returns a Config populated with lnrouter's built-in defaults,
// before any config file or command-line flags are applied.
func Default() *Config {
	return &Config{
		ConfigFile:   defaultConfigFilename,
		DataDir:      defaultConfigDir(),
		PruneTimeout: defaultPruneTimeout,
		RiskFactor:   defaultRiskFactor,
		DebugLevel:   "info",
		RPCListen:    "localhost:10200",
	}
}

// Load parses the config file (if present) and then command-line arguments
// over top of it, command-line flags taking precedence. args is typically
// os.Args[1:].
func Load(args []string) (*Config, error) {
	cfg := Default()

	preCfg := *cfg
	if _, err := flags.NewParser(&preCfg, flags.HelpFlag|flags.PassDoubleDash).ParseArgs(args); err != nil {
		if isHelpError(err) {
			return nil, err
		}
	}
	if preCfg.ConfigFile != "" {
		cfg.ConfigFile = preCfg.ConfigFile
	}
	if preCfg.DataDir != "" {
		cfg.DataDir = preCfg.DataDir
	}

	configPath := cfg.ConfigFile
	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(cfg.DataDir, configPath)
	}
	if _, err := os.Stat(configPath); err == nil {
		parser := flags.NewIniParser(flags.NewParser(cfg, flags.Default))
		if err := parser.ParseFile(configPath); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	return cfg, cfg.validate()
}

func isHelpError(err error) bool {
	e, ok := err.(*flags.Error)
	return ok && e.Type == flags.ErrHelp
}

// RiskFactorPerBlock converts the user-facing RiskFactor into the
// per-block unit the path finder operates on, per §4.4.4.
func (c *Config) RiskFactorPerBlock() float64 {
	return c.RiskFactor / float64(blocksPerYear) / 10_000
}

func (c *Config) validate() error {
	if c.PruneTimeout <= 0 {
		return fmt.Errorf("prunetimeout must be positive, got %v", c.PruneTimeout)
	}
	if c.RiskFactor < 0 {
		return fmt.Errorf("riskfactor must be non-negative, got %v", c.RiskFactor)
	}
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return fmt.Errorf("creating data directory %s: %w", c.DataDir, err)
	}
	return nil
}

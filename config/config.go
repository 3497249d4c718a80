// Package config defines dagchaind's configuration surface: the DAG
// store location, GhostDAG/finality parameters, the mempool and
// execution economics, the chain ID, and logging. Grounded on the
// teacher's kasparov/kasparovd/config/config.go (jessevdk/go-flags
// parser, ActiveConfig()/Parse() package-level singleton idiom).
package config

import (
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/holiman/uint256"

	"github.com/dagchaind/dagchaind/consensus"
	"github.com/dagchaind/dagchaind/consensus/model"
	"github.com/dagchaind/dagchaind/errs"
	"github.com/dagchaind/dagchaind/execution"
	"github.com/dagchaind/dagchaind/logs"
	"github.com/dagchaind/dagchaind/mempool"
	"github.com/dagchaind/dagchaind/primitives"
)

const appName = "dagchaind"

// Log filenames, following kasparovd/config/config.go's
// "<appname>.log"/"<appname>_err.log" naming.
const (
	LogFilename    = appName + ".log"
	ErrLogFilename = appName + "_err.log"
)

// appDataDir resolves a per-user application directory. The teacher's own
// util package (vendored without its original btcsuite/btcutil appdata
// helper) carries no such function in this pack, so this falls back to
// os.UserHomeDir -- a standard-library default, noted in DESIGN.md.
func appDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, "."+appName)
}

var (
	defaultDataDir = filepath.Join(appDataDir(), "data")
	defaultLogDir  = appDataDir()

	activeConfig *Config
)

// ActiveConfig returns the configuration parsed by the most recent call
// to Parse.
func ActiveConfig() *Config { return activeConfig }

// Config is dagchaind's full configuration surface, unified from
// spec.md §6: DAG/GhostDAG parameters, finality depth, mempool bounds,
// execution economics, the chain ID, storage location, and logging.
type Config struct {
	DataDir string `long:"datadir" description:"Directory to store the block DAG and account state"`
	LogDir  string `long:"logdir" description:"Directory to log output"`
	LogLevel string `long:"loglevel" description:"Logging level: trace, debug, info, warn, error, critical" default:"info"`

	ChainID uint64 `long:"chainid" description:"Chain ID signed transactions must match" default:"1"`

	GhostdagK       uint32 `long:"ghostdag-k" description:"GhostDAG anticone tolerance (k)" default:"18"`
	MaxParents      uint32 `long:"max-parents" description:"Maximum parents (selected + merge) a block may reference" default:"10"`
	FinalityDepth   uint64 `long:"finality-depth" description:"Blue-score gap after which a block is finalized" default:"12"`
	MaxBlockGas     uint64 `long:"max-block-gas" description:"Cumulative gas ceiling per built block" default:"30000000"`

	MinGasPrice            uint64 `long:"min-gas-price" description:"Minimum gas price a transaction must offer to be admitted" default:"1"`
	MempoolCapacity         int    `long:"mempool-capacity" description:"Maximum number of pooled pending transactions" default:"5000"`
	MempoolTxTTLSecs        uint64 `long:"mempool-tx-ttl" description:"Seconds a pooled transaction may sit before expiry" default:"3600"`
	MempoolExpireIntervalSecs uint64 `long:"mempool-expire-interval" description:"Seconds between mempool expiry sweeps" default:"60"`

	BlockReward         uint64 `long:"block-reward" description:"Fixed per-block reward credited to the proposer, before halving" default:"0"`
	HalvingInterval     uint64 `long:"halving-interval" description:"Blocks between block-reward halvings (0 disables halving)" default:"0"`
	TreasuryAddress     string `long:"treasury-address" description:"Hex-encoded 20-byte address credited the treasury fraction of gas fees"`
	TreasuryFractionPct uint64 `long:"treasury-fraction-pct" description:"Percentage of gas_used*gas_price credited to the treasury" default:"10"`

	Version      uint32 `long:"chain-version" description:"Block header version this node produces" default:"1"`
	StoreCacheSize int  `long:"store-cache-size" description:"Per-store LRU cache entry count" default:"2048"`
}

// Parse parses CLI arguments into a Config, resolves its defaults and
// directories, and records it as the ActiveConfig.
func Parse(args []string) (*Config, error) {
	cfg := &Config{
		DataDir: defaultDataDir,
		LogDir:  defaultLogDir,
	}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	activeConfig = cfg
	return cfg, nil
}

// resolve validates the parsed values and fills in directories that
// depend on other fields.
func (c *Config) resolve() error {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.LogDir == "" {
		c.LogDir = defaultLogDir
	}
	if c.MaxParents == 0 {
		return errs.NewConfigError("max-parents must be non-zero")
	}
	if c.TreasuryFractionPct > 100 {
		return errs.NewConfigError("treasury-fraction-pct must be <= 100, got %d", c.TreasuryFractionPct)
	}
	if _, ok := logs.LevelFromString(c.LogLevel); !ok {
		return errs.NewConfigError("loglevel: unrecognized level %q", c.LogLevel)
	}
	return nil
}

// LogFile and ErrLogFile return the rotated log file paths under LogDir.
func (c *Config) LogFile() string    { return filepath.Join(c.LogDir, LogFilename) }
func (c *Config) ErrLogFile() string { return filepath.Join(c.LogDir, ErrLogFilename) }

// TreasuryAddr decodes TreasuryAddress as a 20-byte hex account address.
func (c *Config) TreasuryAddr() (primitives.Address, error) {
	if c.TreasuryAddress == "" {
		return primitives.Address{}, nil
	}
	return primitives.AddressFromHex(c.TreasuryAddress)
}

// ConsensusConfig builds the consensus.Config this node's facade runs
// under from the parsed flags.
func (c *Config) ConsensusConfig() (consensus.Config, error) {
	treasury, err := c.TreasuryAddr()
	if err != nil {
		return consensus.Config{}, errs.NewConfigError("treasury-address: %s", err)
	}

	return consensus.Config{
		Ghostdag:      model.GhostdagParams{K: c.GhostdagK, MaxParents: c.MaxParents},
		FinalityDepth: c.FinalityDepth,
		Executor: execution.Config{
			ChainID:             uint256.NewInt(c.ChainID),
			TreasuryAddress:     treasury,
			TreasuryFractionPct: c.TreasuryFractionPct,
			BlockReward:         uint256.NewInt(c.BlockReward),
			HalvingInterval:     c.HalvingInterval,
		},
		Mempool: mempool.Config{
			MaxCount:               c.MempoolCapacity,
			MinGasPrice:            c.MinGasPrice,
			ExpireScanIntervalSecs: c.MempoolExpireIntervalSecs,
			TransactionTTLSecs:     c.MempoolTxTTLSecs,
		},
		ChainVersion:   c.Version,
		MaxBlockGas:    c.MaxBlockGas,
		StoreCacheSize: c.StoreCacheSize,
	}, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalFlags are the persistent flags shared by every command. Flags win
// over environment, environment wins over the config file.
type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Verbose        bool
	Timeout        string
	Retries        int
	MaxStale       string
	NoCache        bool
	RPCURL         string
	Network        string
}

// Settings is the fully merged runtime configuration.
type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	EnableCommands []string
	Verbose        bool
	Timeout        time.Duration
	Retries        int
	MaxStale       time.Duration
	CacheEnabled   bool
	CachePath      string
	CacheLockPath  string

	ActionStorePath string
	ActionLockPath  string

	RPCURL  string
	Network string

	Protocol  ProtocolSettings
	Execution ExecutionSettings

	PointsAPIURL string
	PointsAPIKey string
}

// ProtocolSettings pins the deployed objects the transaction builder binds.
// Ids come from the protocol's published deployment manifest; none of them
// are discoverable from a bare address.
type ProtocolSettings struct {
	Package            string
	ExtraPackages      []string
	VersionObject      string
	MarketObject       string
	DecimalsRegistry   string
	XOracleObject      string
	OraclePackage      string
	ClockObject        string
	PriceTTLMS         uint64
	BestEffortRegistry bool
}

// ExecutionSettings tunes the probe search and the submit retry loop.
type ExecutionSettings struct {
	GasBudget     uint64
	GasPrice      uint64
	StartGuess    uint64
	AmountCeiling uint64
	DustThreshold uint64
	MaxAttempts   int
	RetryBackoff  time.Duration
	LimitPatterns []string
	FeePatterns   []string
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	RPCURL  string `yaml:"rpc_url"`
	Network string `yaml:"network"`
	Cache   struct {
		Enabled  *bool  `yaml:"enabled"`
		MaxStale string `yaml:"max_stale"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"cache"`
	Protocol struct {
		Package            string   `yaml:"package"`
		ExtraPackages      []string `yaml:"extra_packages"`
		VersionObject      string   `yaml:"version_object"`
		MarketObject       string   `yaml:"market_object"`
		DecimalsRegistry   string   `yaml:"decimals_registry"`
		XOracleObject      string   `yaml:"x_oracle_object"`
		OraclePackage      string   `yaml:"oracle_package"`
		ClockObject        string   `yaml:"clock_object"`
		PriceTTLMS         *uint64  `yaml:"price_ttl_ms"`
		BestEffortRegistry *bool    `yaml:"best_effort_registry"`
	} `yaml:"protocol"`
	Execution struct {
		ActionsPath     string   `yaml:"actions_path"`
		ActionsLockPath string   `yaml:"actions_lock_path"`
		GasBudget       *uint64  `yaml:"gas_budget"`
		GasPrice        *uint64  `yaml:"gas_price"`
		StartGuess      *uint64  `yaml:"start_guess"`
		AmountCeiling   *uint64  `yaml:"amount_ceiling"`
		DustThreshold   *uint64  `yaml:"dust_threshold"`
		MaxAttempts     *int     `yaml:"max_attempts"`
		RetryBackoff    string   `yaml:"retry_backoff"`
		LimitPatterns   []string `yaml:"limit_patterns"`
		FeePatterns     []string `yaml:"fee_patterns"`
	} `yaml:"execution"`
	Points struct {
		APIURL    string `yaml:"api_url"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"points"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.MaxStale < 0 {
		settings.MaxStale = 5 * time.Minute
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	cachePath, lockPath, err := defaultCachePaths()
	if err != nil {
		return Settings{}, err
	}
	cacheDir := filepath.Dir(cachePath)
	return Settings{
		OutputMode:      "json",
		Timeout:         30 * time.Second,
		Retries:         2,
		MaxStale:        5 * time.Minute,
		CacheEnabled:    true,
		CachePath:       cachePath,
		CacheLockPath:   lockPath,
		ActionStorePath: filepath.Join(cacheDir, "actions.db"),
		ActionLockPath:  filepath.Join(cacheDir, "actions.lock"),
		Network:         "mainnet",
		Protocol: ProtocolSettings{
			ClockObject: "0x6",
			PriceTTLMS:  60_000,
		},
		Execution: ExecutionSettings{
			GasBudget:     50_000_000,
			GasPrice:      1_000,
			StartGuess:    1_000_000,
			DustThreshold: 1_000,
			MaxAttempts:   8,
			RetryBackoff:  2 * time.Second,
		},
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "lenderctl", "config.yaml"), nil
}

func defaultCachePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "lenderctl")
	return filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.RPCURL != "" {
		settings.RPCURL = cfg.RPCURL
	}
	if cfg.Network != "" {
		settings.Network = cfg.Network
	}
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.MaxStale != "" {
		d, err := time.ParseDuration(cfg.Cache.MaxStale)
		if err != nil {
			return fmt.Errorf("config cache.max_stale: %w", err)
		}
		settings.MaxStale = d
	}
	if cfg.Cache.Path != "" {
		settings.CachePath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.CacheLockPath = cfg.Cache.LockPath
	}

	p := cfg.Protocol
	if p.Package != "" {
		settings.Protocol.Package = p.Package
	}
	if len(p.ExtraPackages) > 0 {
		settings.Protocol.ExtraPackages = p.ExtraPackages
	}
	if p.VersionObject != "" {
		settings.Protocol.VersionObject = p.VersionObject
	}
	if p.MarketObject != "" {
		settings.Protocol.MarketObject = p.MarketObject
	}
	if p.DecimalsRegistry != "" {
		settings.Protocol.DecimalsRegistry = p.DecimalsRegistry
	}
	if p.XOracleObject != "" {
		settings.Protocol.XOracleObject = p.XOracleObject
	}
	if p.OraclePackage != "" {
		settings.Protocol.OraclePackage = p.OraclePackage
	}
	if p.ClockObject != "" {
		settings.Protocol.ClockObject = p.ClockObject
	}
	if p.PriceTTLMS != nil {
		settings.Protocol.PriceTTLMS = *p.PriceTTLMS
	}
	if p.BestEffortRegistry != nil {
		settings.Protocol.BestEffortRegistry = *p.BestEffortRegistry
	}

	e := cfg.Execution
	if e.ActionsPath != "" {
		settings.ActionStorePath = e.ActionsPath
	}
	if e.ActionsLockPath != "" {
		settings.ActionLockPath = e.ActionsLockPath
	}
	if e.GasBudget != nil {
		settings.Execution.GasBudget = *e.GasBudget
	}
	if e.GasPrice != nil {
		settings.Execution.GasPrice = *e.GasPrice
	}
	if e.StartGuess != nil {
		settings.Execution.StartGuess = *e.StartGuess
	}
	if e.AmountCeiling != nil {
		settings.Execution.AmountCeiling = *e.AmountCeiling
	}
	if e.DustThreshold != nil {
		settings.Execution.DustThreshold = *e.DustThreshold
	}
	if e.MaxAttempts != nil {
		settings.Execution.MaxAttempts = *e.MaxAttempts
	}
	if e.RetryBackoff != "" {
		d, err := time.ParseDuration(e.RetryBackoff)
		if err != nil {
			return fmt.Errorf("config execution.retry_backoff: %w", err)
		}
		settings.Execution.RetryBackoff = d
	}
	if len(e.LimitPatterns) > 0 {
		settings.Execution.LimitPatterns = e.LimitPatterns
	}
	if len(e.FeePatterns) > 0 {
		settings.Execution.FeePatterns = e.FeePatterns
	}

	if cfg.Points.APIURL != "" {
		settings.PointsAPIURL = cfg.Points.APIURL
	}
	if cfg.Points.APIKey != "" {
		settings.PointsAPIKey = cfg.Points.APIKey
	}
	if cfg.Points.APIKeyEnv != "" {
		settings.PointsAPIKey = os.Getenv(cfg.Points.APIKeyEnv)
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("LENDER_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("LENDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("LENDER_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("LENDER_MAX_STALE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.MaxStale = d
		}
	}
	if v := os.Getenv("LENDER_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := os.Getenv("LENDER_CACHE_PATH"); v != "" {
		settings.CachePath = v
	}
	if v := os.Getenv("LENDER_CACHE_LOCK_PATH"); v != "" {
		settings.CacheLockPath = v
	}
	if v := os.Getenv("LENDER_ACTIONS_PATH"); v != "" {
		settings.ActionStorePath = v
	}
	if v := os.Getenv("LENDER_ACTIONS_LOCK_PATH"); v != "" {
		settings.ActionLockPath = v
	}
	if v := os.Getenv("LENDER_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("LENDER_NETWORK"); v != "" {
		settings.Network = v
	}
	if v := os.Getenv("LENDER_PROTOCOL_PACKAGE"); v != "" {
		settings.Protocol.Package = v
	}
	if v := os.Getenv("LENDER_EXTRA_PACKAGES"); v != "" {
		settings.Protocol.ExtraPackages = splitList(v)
	}
	if v := os.Getenv("LENDER_VERSION_OBJECT"); v != "" {
		settings.Protocol.VersionObject = v
	}
	if v := os.Getenv("LENDER_MARKET_OBJECT"); v != "" {
		settings.Protocol.MarketObject = v
	}
	if v := os.Getenv("LENDER_DECIMALS_REGISTRY"); v != "" {
		settings.Protocol.DecimalsRegistry = v
	}
	if v := os.Getenv("LENDER_X_ORACLE_OBJECT"); v != "" {
		settings.Protocol.XOracleObject = v
	}
	if v := os.Getenv("LENDER_ORACLE_PACKAGE"); v != "" {
		settings.Protocol.OraclePackage = v
	}
	if v := os.Getenv("LENDER_PRICE_TTL_MS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			settings.Protocol.PriceTTLMS = n
		}
	}
	if v := os.Getenv("LENDER_GAS_BUDGET"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			settings.Execution.GasBudget = n
		}
	}
	if v := os.Getenv("LENDER_POINTS_API_URL"); v != "" {
		settings.PointsAPIURL = v
	}
	if v := os.Getenv("LENDER_POINTS_API_KEY"); v != "" {
		settings.PointsAPIKey = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		settings.SelectFields = splitList(flags.Select)
	}
	settings.ResultsOnly = flags.ResultsOnly
	settings.Verbose = settings.Verbose || flags.Verbose

	if strings.TrimSpace(flags.EnableCommands) != "" {
		settings.EnableCommands = splitList(flags.EnableCommands)
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.MaxStale != "" {
		d, err := time.ParseDuration(flags.MaxStale)
		if err != nil {
			return fmt.Errorf("parse --max-stale: %w", err)
		}
		settings.MaxStale = d
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	if flags.RPCURL != "" {
		settings.RPCURL = flags.RPCURL
	}
	if flags.Network != "" {
		settings.Network = flags.Network
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

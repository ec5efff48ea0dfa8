package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "orchestrator.yaml"

// CLIFlags holds command-line flag values. Nil pointers indicate unset
// flags that should not override the config.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	StoreURL   *string
}

// ParseFlags parses command-line arguments into CLIFlags. Passing nil
// args parses os.Args[1:].
func ParseFlags(args []string) (CLIFlags, error) {
	var flags CLIFlags

	fs := flag.NewFlagSet("orchestrator", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	fs.StringVar(configPath, "c", "", "path to YAML config file (shorthand)")
	port := fs.String("port", "", "HTTP server port")
	fs.StringVar(port, "p", "", "HTTP server port (shorthand)")
	logLevel := fs.String("log-level", "", "logging level (debug, info, warn, error)")
	storeURL := fs.String("store-url", "", "backing store connection string")

	if err := fs.Parse(args); err != nil {
		return flags, fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = configPath
		case "port", "p":
			flags.Port = port
		case "log-level":
			flags.LogLevel = logLevel
		case "store-url":
			flags.StoreURL = storeURL
		}
	})

	return flags, nil
}

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadWithCLI returns a Config using the full hierarchy:
// defaults < YAML < ENV < CLI flags.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	yamlPath := DefaultConfigFile
	if flags.ConfigPath != nil {
		yamlPath = *flags.ConfigPath
	}

	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, "", fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, "", fmt.Errorf("config validate: %w", err)
	}

	return &cfg, yamlPath, nil
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.StoreURL != nil {
		cfg.Store.URL = *flags.StoreURL
	}
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg, following the
// recognized-option table (store_url, api_host/port, board_base_url,
// board_token, board_org_id, board_map, dispatcher_base_url/model/
// api_key, dispatcher_cli_name, agent_work_interval_seconds,
// orchestrator_tick_interval_seconds, step_timeout_seconds,
// agents_dir/projects_dir, plugins_dir, log_level).
func loadEnv(cfg *Config) {
	setString(&cfg.Store.URL, "STORE_URL")
	setInt32(&cfg.Store.MaxConns, "STORE_MAX_CONNS")
	setInt32(&cfg.Store.MinConns, "STORE_MIN_CONNS")
	setDuration(&cfg.Store.MaxConnLifetime, "STORE_MAX_CONN_LIFETIME")
	setDuration(&cfg.Store.MaxConnIdleTime, "STORE_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Store.HealthCheck, "STORE_HEALTH_CHECK")

	setString(&cfg.Server.Host, "API_HOST")
	setString(&cfg.Server.Port, "API_PORT")
	setString(&cfg.Server.CORSOrigin, "API_CORS_ORIGIN")

	setString(&cfg.Board.BaseURL, "BOARD_BASE_URL")
	setString(&cfg.Board.Token, "BOARD_TOKEN")
	setString(&cfg.Board.OrgID, "BOARD_ORG_ID")
	setBoardMap(&cfg.Board.Map, "BOARD_MAP")

	setString(&cfg.Dispatcher.BaseURL, "DISPATCHER_BASE_URL")
	setString(&cfg.Dispatcher.Model, "DISPATCHER_MODEL")
	setString(&cfg.Dispatcher.APIKey, "DISPATCHER_API_KEY")
	setString(&cfg.Dispatcher.CLIName, "DISPATCHER_CLI_NAME")

	setInt(&cfg.Scheduler.AgentWorkIntervalSeconds, "AGENT_WORK_INTERVAL_SECONDS")
	setInt(&cfg.Scheduler.OrchestratorTickIntervalSeconds, "ORCHESTRATOR_TICK_INTERVAL_SECONDS")
	setInt(&cfg.Scheduler.StepTimeoutSeconds, "STEP_TIMEOUT_SECONDS")

	setString(&cfg.Dirs.Agents, "AGENTS_DIR")
	setString(&cfg.Dirs.Projects, "PROJECTS_DIR")
	setString(&cfg.Dirs.Plugins, "PLUGINS_DIR")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Service, "LOG_SERVICE")
	setBool(&cfg.Logging.Async, "LOG_ASYNC")

	setString(&cfg.NATS.URL, "NATS_URL")

	setInt(&cfg.Breaker.MaxFailures, "BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "BREAKER_TIMEOUT")

	setInt64(&cfg.Cache.L1MaxCost, "CACHE_L1_MAX_COST")

	setString(&cfg.Notification.SlackWebhookURL, "NOTIFICATION_SLACK_WEBHOOK_URL")
	setString(&cfg.Notification.DiscordWebhookURL, "NOTIFICATION_DISCORD_WEBHOOK_URL")

	setBool(&cfg.OTEL.Enabled, "OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "OTEL_SAMPLE_RATE")

	setInt(&cfg.Orchestrator.RetentionDays, "ORCHESTRATOR_RETENTION_DAYS")
	setInt(&cfg.Orchestrator.ProposalExpiryHours, "ORCHESTRATOR_PROPOSAL_EXPIRY_HOURS")

	setString(&cfg.MCP.Addr, "MCP_ADDR")

	setString(&cfg.Policy.DefaultProfile, "POLICY_DEFAULT_PROFILE")
	setString(&cfg.Policy.ProfilesDir, "POLICY_PROFILES_DIR")

	setInt(&cfg.Git.MaxConcurrentOps, "GIT_MAX_CONCURRENT_OPS")
}

// validate checks that required fields are set and that pool, breaker
// and step-timeout settings are at least 1, returning the first
// violation as an error.
func validate(cfg *Config) error {
	if cfg.Store.URL == "" {
		return errors.New("store.url is required")
	}
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Store.MaxConns < 1 {
		return errors.New("store.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Scheduler.StepTimeoutSeconds < 1 {
		return errors.New("scheduler.step_timeout_seconds must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setBoardMap parses the board_map env var, a JSON object of
// {board_id: project_slug}.
func setBoardMap(dst *map[string]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(v), &m); err != nil {
		return
	}
	*dst = m
}

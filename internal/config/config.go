package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for FigLens.
type Config struct {
	General GeneralConfig `json:"general"`
	Bridge  BridgeConfig  `json:"bridge"`
	Panel   PanelConfig   `json:"panel"`
	Figma   FigmaConfig   `json:"figma"`
	Markup  MarkupConfig  `json:"markup"`
	Notify  NotifyConfig  `json:"notify"`
	Preview PreviewConfig `json:"preview"`
	Metrics MetricsConfig `json:"metrics"`
}

type GeneralConfig struct {
	DataDir  string `json:"dataDir"`
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

// BridgeConfig configures the websocket endpoint the design-tool plugin
// dials. The bridge binds loopback by default: the plugin runs on the same
// machine.
type BridgeConfig struct {
	Host                 string `json:"host"`
	Port                 int    `json:"port"`
	ExportTimeoutSeconds int    `json:"exportTimeoutSeconds"`
	HeartbeatSeconds     int    `json:"heartbeatSeconds"`
}

type PanelConfig struct {
	Enabled bool      `json:"enabled"`
	Host    string    `json:"host"`
	Port    int       `json:"port"`
	Auth    PanelAuth `json:"auth"`
}

type PanelAuth struct {
	Enabled      bool   `json:"enabled"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

// FigmaConfig configures the REST client used for comment lookups.
type FigmaConfig struct {
	APIBase               string `json:"apiBase"`
	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds"`
	RateLimitPerMinute    int    `json:"rateLimitPerMinute"`
}

type MarkupConfig struct {
	CenterTolerance float64 `json:"centerTolerance"`
	RulesPath       string  `json:"rulesPath,omitempty"` // optional category rules override
}

type NotifyConfig struct {
	Slack    SlackConfig    `json:"slack,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
}

type SlackConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"botToken"`
	Channel  string `json:"channel"`
}

type TelegramConfig struct {
	Enabled bool           `json:"enabled"`
	Token   string         `json:"token"`
	ChatIDs FlexStringList `json:"chatIds"`
}

type DiscordConfig struct {
	Enabled   bool   `json:"enabled"`
	Token     string `json:"token"`
	ChannelID string `json:"channelId"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
// Telegram chat ids are numeric and users paste them either way.
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	// Fallback: array of mixed types
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// PreviewConfig configures the headless-Chrome markup preview. Width/Height
// are the fallback viewport when the root node carries no size.
type PreviewConfig struct {
	Enabled    bool   `json:"enabled"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	ChromePath string `json:"chromePath,omitempty"`
}

// MetricsConfig configures the observability / Prometheus metrics.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DBPath returns the settings database location inside the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.General.DataDir, "settings.db")
}

// DefaultConfigDir returns the default config directory (~/.figlens).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".figlens"
	}
	return filepath.Join(home, ".figlens")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Markup.RulesPath = ExpandPath(cfg.Markup.RulesPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.General.DataDir == "" {
		errs = append(errs, "general.dataDir must not be empty")
	}

	if cfg.Bridge.Port < 1 || cfg.Bridge.Port > 65535 {
		errs = append(errs, "bridge.port must be between 1 and 65535")
	}
	if cfg.Bridge.ExportTimeoutSeconds < 1 {
		errs = append(errs, "bridge.exportTimeoutSeconds must be >= 1")
	}
	if cfg.Bridge.HeartbeatSeconds < 1 {
		errs = append(errs, "bridge.heartbeatSeconds must be >= 1")
	}

	if cfg.Panel.Port < 0 || cfg.Panel.Port > 65535 {
		errs = append(errs, "panel.port must be between 0 and 65535")
	}
	if cfg.Panel.Enabled && cfg.Panel.Port == cfg.Bridge.Port {
		errs = append(errs, "panel.port must differ from bridge.port")
	}
	if cfg.Panel.Auth.Enabled && (cfg.Panel.Auth.Username == "" || cfg.Panel.Auth.PasswordHash == "") {
		errs = append(errs, "panel.auth requires username and passwordHash when enabled")
	}

	if cfg.Figma.APIBase == "" {
		errs = append(errs, "figma.apiBase must not be empty")
	}
	if cfg.Figma.RequestTimeoutSeconds < 1 {
		errs = append(errs, "figma.requestTimeoutSeconds must be >= 1")
	}
	if cfg.Figma.RateLimitPerMinute < 1 {
		errs = append(errs, "figma.rateLimitPerMinute must be >= 1")
	}

	if cfg.Markup.CenterTolerance < 0 {
		errs = append(errs, "markup.centerTolerance must be >= 0")
	}

	if cfg.Notify.Slack.Enabled && (cfg.Notify.Slack.BotToken == "" || cfg.Notify.Slack.Channel == "") {
		errs = append(errs, "notify.slack requires botToken and channel when enabled")
	}
	if cfg.Notify.Telegram.Enabled && (cfg.Notify.Telegram.Token == "" || len(cfg.Notify.Telegram.ChatIDs) == 0) {
		errs = append(errs, "notify.telegram requires token and chatIds when enabled")
	}
	if cfg.Notify.Discord.Enabled && (cfg.Notify.Discord.Token == "" || cfg.Notify.Discord.ChannelID == "") {
		errs = append(errs, "notify.discord requires token and channelId when enabled")
	}

	if cfg.Preview.Enabled && (cfg.Preview.Width < 1 || cfg.Preview.Height < 1) {
		errs = append(errs, "preview.width and preview.height must be >= 1 when preview is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory (used by init and Load).
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

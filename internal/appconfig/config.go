package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/replx/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	Connect       ConnectConfig `mapstructure:"connect" yaml:"connect"`
	Console       ConsoleConfig `mapstructure:"console" yaml:"console"`
	Launch        LaunchConfig  `mapstructure:"launch" yaml:"launch"`
	SSH           SSHConfig     `mapstructure:"ssh" yaml:"ssh"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ConnectConfig controls peer discovery and connection behavior.
type ConnectConfig struct {
	Host                  string `mapstructure:"host" yaml:"host"`
	Port                  int    `mapstructure:"port" yaml:"port"`
	PortFile              string `mapstructure:"port_file" yaml:"port_file"`
	DialTimeoutSeconds    int    `mapstructure:"dial_timeout_seconds" yaml:"dial_timeout_seconds"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	DecodeFailThreshold   int    `mapstructure:"decode_fail_threshold" yaml:"decode_fail_threshold"`
}

// ConsoleConfig controls the interactive console and transcript.
type ConsoleConfig struct {
	Namespace          string `mapstructure:"namespace" yaml:"namespace"`
	PromptSuffix       string `mapstructure:"prompt_suffix" yaml:"prompt_suffix"`
	TranscriptMaxBytes int    `mapstructure:"transcript_max_bytes" yaml:"transcript_max_bytes"`
	HistoryMax         int    `mapstructure:"history_max" yaml:"history_max"`
}

// LaunchConfig configures how a local evaluator process is started
// when none is running.
type LaunchConfig struct {
	Command            string            `mapstructure:"command" yaml:"command"`
	Args               []string          `mapstructure:"args" yaml:"args"`
	Env                map[string]string `mapstructure:"env" yaml:"env"`
	Dir                string            `mapstructure:"dir" yaml:"dir"`
	StartupWaitSeconds int               `mapstructure:"startup_wait_seconds" yaml:"startup_wait_seconds"`
}

// SSHConfig configures the shared SSH console server.
type SSHConfig struct {
	Addr           string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath    string `mapstructure:"host_key_path" yaml:"host_key_path"`
	AuthorizedKeys string `mapstructure:"authorized_keys" yaml:"authorized_keys"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// DialTimeout returns the dial timeout as a duration.
func (c ConnectConfig) DialTimeout() time.Duration {
	if c.DialTimeoutSeconds <= 0 {
		return schema.DefaultDialTimeout
	}
	return time.Duration(c.DialTimeoutSeconds) * time.Second
}

// RequestTimeout returns the request timeout as a duration.
func (c ConnectConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return schema.DefaultRequestTimeout
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// StartupWait returns the launch startup wait as a duration.
func (c LaunchConfig) StartupWait() time.Duration {
	if c.StartupWaitSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.StartupWaitSeconds) * time.Second
}

// EngineConfig maps loaded configuration onto engine settings.
func (c Config) EngineConfig() schema.EngineConfig {
	return schema.EngineConfig{
		DefaultNamespace:    schema.Namespace(c.Console.Namespace),
		PromptSuffix:        c.Console.PromptSuffix,
		TranscriptMaxBytes:  c.Console.TranscriptMaxBytes,
		HistoryMax:          c.Console.HistoryMax,
		DialTimeout:         c.Connect.DialTimeout(),
		RequestTimeout:      c.Connect.RequestTimeout(),
		DecodeFailThreshold: c.Connect.DecodeFailThreshold,
	}
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Connect: ConnectConfig{
			Host:                  "127.0.0.1",
			Port:                  0,
			PortFile:              ".replx-port",
			DialTimeoutSeconds:    int(schema.DefaultDialTimeout / time.Second),
			RequestTimeoutSeconds: int(schema.DefaultRequestTimeout / time.Second),
			DecodeFailThreshold:   schema.DefaultDecodeFailThreshold,
		},
		Console: ConsoleConfig{
			Namespace:          string(schema.DefaultNamespace),
			PromptSuffix:       schema.DefaultPromptSuffix,
			TranscriptMaxBytes: schema.DefaultTranscriptMaxBytes,
			HistoryMax:         schema.DefaultHistoryMax,
		},
		Launch: LaunchConfig{
			Command:            "",
			Args:               []string{},
			Env:                map[string]string{},
			Dir:                "",
			StartupWaitSeconds: 30,
		},
		SSH: SSHConfig{
			Addr:           ":27522",
			HostKeyPath:    filepath.Join(home, ".replx", "ssh_host_key"),
			AuthorizedKeys: filepath.Join(home, ".replx", "authorized_keys"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".replx", "config.yaml"), nil
}

package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty,
// uses DefaultConfigPath. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("connect.host", cfg.Connect.Host)
	v.SetDefault("connect.port", cfg.Connect.Port)
	v.SetDefault("connect.port_file", cfg.Connect.PortFile)
	v.SetDefault("connect.dial_timeout_seconds", cfg.Connect.DialTimeoutSeconds)
	v.SetDefault("connect.request_timeout_seconds", cfg.Connect.RequestTimeoutSeconds)
	v.SetDefault("connect.decode_fail_threshold", cfg.Connect.DecodeFailThreshold)
	v.SetDefault("console.namespace", cfg.Console.Namespace)
	v.SetDefault("console.prompt_suffix", cfg.Console.PromptSuffix)
	v.SetDefault("console.transcript_max_bytes", cfg.Console.TranscriptMaxBytes)
	v.SetDefault("console.history_max", cfg.Console.HistoryMax)
	v.SetDefault("launch.command", cfg.Launch.Command)
	v.SetDefault("launch.args", cfg.Launch.Args)
	v.SetDefault("launch.env", cfg.Launch.Env)
	v.SetDefault("launch.dir", cfg.Launch.Dir)
	v.SetDefault("launch.startup_wait_seconds", cfg.Launch.StartupWaitSeconds)
	v.SetDefault("ssh.addr", cfg.SSH.Addr)
	v.SetDefault("ssh.host_key_path", cfg.SSH.HostKeyPath)
	v.SetDefault("ssh.authorized_keys", cfg.SSH.AuthorizedKeys)
	v.SetDefault("logging.level", cfg.Logging.Level)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if os.IsNotExist(err) {
				err = nil
			} else {
				return Config{}, err
			}
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
		if port := v.GetInt("connect.port"); port < 0 || port > 65535 {
			return Config{}, fmt.Errorf("connect.port %d is out of range", port)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if ns := strings.TrimSpace(cfg.Console.Namespace); ns == "" || strings.ContainsAny(ns, " \t") {
		return fmt.Errorf("console.namespace %q is not a valid namespace", cfg.Console.Namespace)
	}
	if cfg.SSH.Addr != "" && !strings.Contains(cfg.SSH.Addr, ":") {
		return fmt.Errorf("ssh.addr %q must be a host:port listen address", cfg.SSH.Addr)
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Connect.PortFile = expandEnv(cfg.Connect.PortFile)
	cfg.Launch.Command = expandEnv(cfg.Launch.Command)
	cfg.Launch.Dir = expandEnv(cfg.Launch.Dir)
	for i, arg := range cfg.Launch.Args {
		cfg.Launch.Args[i] = expandEnv(arg)
	}
	cfg.SSH.HostKeyPath = expandEnv(cfg.SSH.HostKeyPath)
	cfg.SSH.AuthorizedKeys = expandEnv(cfg.SSH.AuthorizedKeys)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

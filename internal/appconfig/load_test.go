package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load missing config: %v", err)
	}
	if cfg.Connect.Host != "127.0.0.1" {
		t.Fatalf("default host = %q", cfg.Connect.Host)
	}
	if cfg.Console.Namespace != "user" {
		t.Fatalf("default namespace = %q", cfg.Console.Namespace)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 99
connect:
  host: localhost
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
connect:
  host: localhost
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
connect:
  port: 123456
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected port error, got %v", err)
	}
}

func TestLoadRejectsBadNamespace(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
console:
  namespace: "two words"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "namespace") {
		t.Fatalf("expected namespace error, got %v", err)
	}
}

func TestLoadOverridesAndTimeouts(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
connect:
  host: build-box
  port: 7888
  request_timeout_seconds: 15
console:
  prompt_suffix: ">> "
launch:
  command: evaluator
  args: ["--listen", ":0"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Connect.Host != "build-box" || cfg.Connect.Port != 7888 {
		t.Fatalf("connect overrides not applied: %+v", cfg.Connect)
	}
	if cfg.Connect.RequestTimeout() != 15*time.Second {
		t.Fatalf("request timeout = %v", cfg.Connect.RequestTimeout())
	}
	engine := cfg.EngineConfig()
	if engine.PromptSuffix != ">> " {
		t.Fatalf("engine prompt suffix = %q", engine.PromptSuffix)
	}
	if len(cfg.Launch.Args) != 2 {
		t.Fatalf("launch args = %v", cfg.Launch.Args)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

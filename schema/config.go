package schema

import "time"

// EngineConfig defines defaults and limits for the core engine.
type EngineConfig struct {
	DefaultNamespace    Namespace
	PromptSuffix        string
	TranscriptMaxBytes  int
	HistoryMax          int
	DialTimeout         time.Duration
	RequestTimeout      time.Duration
	DecodeFailThreshold int
}

// DefaultPromptSuffix separates the namespace label from pending input.
const DefaultPromptSuffix = "=> "

// DefaultTranscriptMaxBytes bounds a transcript log before front-trimming.
const DefaultTranscriptMaxBytes = 1 << 20

// DefaultHistoryMax bounds the submitted-form history per connection.
const DefaultHistoryMax = 200

// DefaultDialTimeout bounds transport establishment.
const DefaultDialTimeout = 10 * time.Second

// DefaultRequestTimeout bounds how long a pending request may wait for
// its terminal response before eviction.
const DefaultRequestTimeout = 2 * time.Minute

// DefaultDecodeFailThreshold is the number of consecutive malformed
// frames tolerated before the connection surfaces a decode failure.
const DefaultDecodeFailThreshold = 5

// NormalizeEngineConfig applies defaults and validates the config.
func NormalizeEngineConfig(cfg EngineConfig) (EngineConfig, error) {
	if cfg.DefaultNamespace == "" {
		cfg.DefaultNamespace = DefaultNamespace
	}
	if cfg.PromptSuffix == "" {
		cfg.PromptSuffix = DefaultPromptSuffix
	}
	if cfg.TranscriptMaxBytes <= 0 {
		cfg.TranscriptMaxBytes = DefaultTranscriptMaxBytes
	}
	if cfg.HistoryMax <= 0 {
		cfg.HistoryMax = DefaultHistoryMax
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.DecodeFailThreshold <= 0 {
		cfg.DecodeFailThreshold = DefaultDecodeFailThreshold
	}
	return cfg, nil
}

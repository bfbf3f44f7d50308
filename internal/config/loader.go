package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so API keys and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.OpenAI.APIKey = expandEnvVars(cfg.OpenAI.APIKey)
	if cfg.Adapters.Lifx != nil {
		cfg.Adapters.Lifx.Token = expandEnvVars(cfg.Adapters.Lifx.Token)
	}
}

// Load reads the config file, applies defaults and environment overrides,
// and returns a merged Config. A missing file produces defaults only.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(&cfg)
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = "lan"
	}
	if cfg.Speech.TranscribeEndpoint == "" {
		cfg.Speech.TranscribeEndpoint = "http://127.0.0.1:3500/v1/audio/transcriptions"
	}
	if cfg.Speech.WhisperModel == "" {
		cfg.Speech.WhisperModel = "Systran/faster-whisper-base.en"
	}
	if cfg.Speech.TTSEndpoint == "" {
		cfg.Speech.TTSEndpoint = "http://127.0.0.1:3501/api/tts"
	}
	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = "en_US/vctk_low#p284"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.Conversation.KeepAliveTTL == 0 {
		cfg.Conversation.KeepAliveTTL = 30
	}
	if len(cfg.Conversation.WakeWords) == 0 {
		cfg.Conversation.WakeWords = []string{"jeff", "jeffery", "gerald"}
	}
	if cfg.Adapters.Timer == nil {
		cfg.Adapters.Timer = &TimerConfig{}
	}
	if cfg.Adapters.Timer.Message == "" {
		cfg.Adapters.Timer.Message = "Hey, just notifying you of your alarm."
	}
	if cfg.Adapters.Lifx != nil && cfg.Adapters.Lifx.BaseURL == "" {
		cfg.Adapters.Lifx.BaseURL = "https://api.lifx.com/v1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides reads GERALD_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GERALD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GERALD_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("GERALD_OPENAI_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("GERALD_WAKE_WORDS"); v != "" {
		words := strings.Split(v, ",")
		for i := range words {
			words[i] = strings.TrimSpace(words[i])
		}
		cfg.Conversation.WakeWords = words
	}
	if v := os.Getenv("GERALD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

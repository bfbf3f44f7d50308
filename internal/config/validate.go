package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}

	if cfg.OpenAI.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "openai.apiKey",
			Message: "an OpenAI API key is required",
		})
	}

	if cfg.Conversation.KeepAliveTTL < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "conversation.keepAliveTtl",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Conversation.KeepAliveTTL),
		})
	}

	if len(cfg.Conversation.WakeWords) == 0 {
		issues = append(issues, ValidationIssue{
			Path:    "conversation.wakeWords",
			Message: "at least one wake word is required",
		})
	}

	if lifx := cfg.Adapters.Lifx; lifx != nil {
		if lifx.Token == "" {
			issues = append(issues, ValidationIssue{
				Path:    "adapters.lifx.token",
				Message: "a LIFX API token is required when the lifx adapter is enabled",
			})
		}
		for i, loc := range lifx.Locations {
			if loc.Name == "" || loc.Selector == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("adapters.lifx.locations[%d]", i),
					Message: "name and selector are both required",
				})
			}
		}
	}

	if weather := cfg.Adapters.Weather; weather != nil {
		if weather.PrometheusEndpoint == "" {
			issues = append(issues, ValidationIssue{
				Path:    "adapters.weather.prometheusEndpoint",
				Message: "a Prometheus endpoint is required when the weather adapter is enabled",
			})
		}
		for i, loc := range weather.Locations {
			if loc.Name == "" || loc.Gauge == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("adapters.weather.locations[%d]", i),
					Message: "name and gauge are both required",
				})
			}
		}
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}

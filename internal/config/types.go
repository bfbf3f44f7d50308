package config

// Config is the root configuration for Gerald. It is constructed once at
// startup and passed by reference to every component that needs it; there
// is no process-wide cached config.
type Config struct {
	Server       ServerConfig       `yaml:"server,omitempty"`
	Speech       SpeechConfig       `yaml:"speech,omitempty"`
	OpenAI       OpenAIConfig       `yaml:"openai,omitempty"`
	Conversation ConversationConfig `yaml:"conversation,omitempty"`
	Adapters     AdaptersConfig     `yaml:"adapters,omitempty"`
	Logging      LoggingConfig      `yaml:"logging,omitempty"`
}

// ServerConfig controls the WebSocket server clients connect to.
type ServerConfig struct {
	Port           int    `yaml:"port,omitempty"`
	Bind           string `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string `yaml:"customBindHost,omitempty"`
}

// SpeechConfig points at the transcription and synthesis services.
type SpeechConfig struct {
	TranscribeEndpoint string `yaml:"transcribeEndpoint,omitempty"` // Whisper-compatible /v1/audio/transcriptions
	WhisperModel       string `yaml:"whisperModel,omitempty"`
	TTSEndpoint        string `yaml:"ttsEndpoint,omitempty"` // Mimic3-style /api/tts
	Voice              string `yaml:"voice,omitempty"`
}

// OpenAIConfig configures the chat model behind the interpreter.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"` // supports ${ENV_VAR} references
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// ConversationConfig controls wake-word gating and session lifetime.
type ConversationConfig struct {
	KeepAliveTTL int64    `yaml:"keepAliveTtl,omitempty"` // seconds a conversation stays hot
	WakeWords    []string `yaml:"wakeWords,omitempty"`
}

// AdaptersConfig holds per-adapter settings. A nil section disables the adapter.
type AdaptersConfig struct {
	Timer   *TimerConfig   `yaml:"timer,omitempty"`
	Lifx    *LifxConfig    `yaml:"lifx,omitempty"`
	Weather *WeatherConfig `yaml:"weather,omitempty"`
}

// TimerConfig configures the timer adapter.
type TimerConfig struct {
	Message   string `yaml:"message,omitempty"`   // spoken when a timer fires
	ChimePath string `yaml:"chimePath,omitempty"` // WAV file played instead of speech when set
}

// LifxConfig configures the LIFX lights adapter.
type LifxConfig struct {
	Token     string         `yaml:"token"` // supports ${ENV_VAR} references
	BaseURL   string         `yaml:"baseUrl,omitempty"`
	Locations []LifxLocation `yaml:"locations"`
}

// LifxLocation maps a spoken location name to a LIFX selector.
type LifxLocation struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
}

// WeatherConfig configures the weather adapter.
type WeatherConfig struct {
	PrometheusEndpoint string            `yaml:"prometheusEndpoint"`
	DefaultLocation    string            `yaml:"defaultLocation,omitempty"`
	Locations          []WeatherLocation `yaml:"locations"`
}

// WeatherLocation maps a spoken location name to a Prometheus gauge.
type WeatherLocation struct {
	Name   string            `yaml:"name"`
	Gauge  string            `yaml:"gauge"`
	Series map[string]string `yaml:"series,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File  string `yaml:"file,omitempty"`
}

// ConfigError reports a problem loading or parsing configuration.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type AudioConfig struct {
	Mode            string `yaml:"mode"` // exec, mock
	Command         string `yaml:"command"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	FrameDurationMS int    `yaml:"frame_duration_ms"`
	QueueDepth      int    `yaml:"queue_depth"`
}

type STTConfig struct {
	Mode      string `yaml:"mode"` // exec, mock
	Command   string `yaml:"command"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

type EmbeddingConfig struct {
	Mode      string `yaml:"mode"` // exec, mock
	Command   string `yaml:"command"`
	ModelPath string `yaml:"model_path"`
	Dimension int    `yaml:"dimension"`
}

type EnrollmentConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	Phrase            string  `yaml:"phrase"`
	PhraseTimeoutSec  int     `yaml:"phrase_timeout_s"`
	ListenTimeoutSec  int     `yaml:"listen_timeout_s"`
	RecordDurationSec int     `yaml:"record_duration_s"`
	Threshold         float64 `yaml:"threshold"`
	MaxPhraseRetries  int     `yaml:"max_phrase_retries"` // 0 = retry until aborted
}

type TTSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Mode    string `yaml:"mode"` // exec, mock
	Command string `yaml:"command"`
	Voice   string `yaml:"voice"`
}

// IntentRule binds an intent name to its trigger phrases. Declaration order
// is the resolution priority: when two rules share a phrase, the earlier
// rule always wins.
type IntentRule struct {
	Name    string   `yaml:"name"`
	Phrases []string `yaml:"phrases"`
}

type DispatchConfig struct {
	Commands map[string]string `yaml:"commands"` // intent name -> command line
}

type AuditConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Audio       AudioConfig      `yaml:"audio"`
	STT         STTConfig        `yaml:"stt"`
	Embedding   EmbeddingConfig  `yaml:"embedding"`
	Enrollment  EnrollmentConfig `yaml:"enrollment"`
	Auth        AuthConfig       `yaml:"auth"`
	TTS         TTSConfig        `yaml:"tts"`
	Intents     []IntentRule     `yaml:"intents"`
	Dispatch    DispatchConfig   `yaml:"dispatch"`
	Audit       AuditConfig      `yaml:"audit"`
}

func Default() Config {
	return Config{
		RuntimeName: "voxgate-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        true,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Audio: AudioConfig{
			Mode:            "exec",
			Command:         "arecord -q -f S16_LE -r 16000 -c 1 -t raw",
			SampleRate:      16000,
			Channels:        1,
			FrameDurationMS: 20,
			QueueDepth:      64,
		},
		STT: STTConfig{
			Mode: "mock",
		},
		Embedding: EmbeddingConfig{
			Mode:      "mock",
			Dimension: 256,
		},
		Enrollment: EnrollmentConfig{
			Path: "./data/reference.vec",
		},
		Auth: AuthConfig{
			Phrase:            "infinity",
			PhraseTimeoutSec:  10,
			ListenTimeoutSec:  8,
			RecordDurationSec: 3,
			Threshold:         0.6,
			MaxPhraseRetries:  0,
		},
		TTS: TTSConfig{
			Enabled: true,
			Mode:    "mock",
		},
		Intents: DefaultIntentRules(),
		Dispatch: DispatchConfig{
			Commands: map[string]string{
				"open_browser": `open -a "Google Chrome"`,
				"open_mail":    `open -a Mail`,
				"play_music":   `open -a Music`,
				"open_code":    `open -a "Visual Studio Code"`,
				"shutdown":     `osascript -e 'tell app "System Events" to shut down'`,
			},
		},
		Audit: AuditConfig{
			Path:          "./data/voxgate-audit.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
	}
}

// DefaultIntentRules returns the built-in keyword table. Order matters:
// resolution is first-match-wins over this declaration order.
func DefaultIntentRules() []IntentRule {
	return []IntentRule{
		{Name: "open_browser", Phrases: []string{"open chrome", "open google chrome", "launch browser", "start chrome"}},
		{Name: "open_mail", Phrases: []string{"open mail", "check email", "launch mail"}},
		{Name: "play_music", Phrases: []string{"play music", "start music", "launch music"}},
		{Name: "open_code", Phrases: []string{"open code", "launch vs code", "start visual studio"}},
		{Name: "shutdown", Phrases: []string{"shut down", "shutdown", "turn off"}},
		{Name: "default_unlock", Phrases: []string{"unlock", "i'm back", "hello"}},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "VOXGATE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VOXGATE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOXGATE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOXGATE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VOXGATE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOXGATE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOXGATE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VOXGATE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "VOXGATE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "VOXGATE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VOXGATE_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VOXGATE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOXGATE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOXGATE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOXGATE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOXGATE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOXGATE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Audio.Mode, "VOXGATE_AUDIO_MODE")
	overrideString(&cfg.Audio.Command, "VOXGATE_AUDIO_COMMAND")
	overrideInt(&cfg.Audio.SampleRate, "VOXGATE_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "VOXGATE_AUDIO_CHANNELS")
	overrideInt(&cfg.Audio.FrameDurationMS, "VOXGATE_AUDIO_FRAME_DURATION_MS")
	overrideInt(&cfg.Audio.QueueDepth, "VOXGATE_AUDIO_QUEUE_DEPTH")
	overrideString(&cfg.STT.Mode, "VOXGATE_STT_MODE")
	overrideString(&cfg.STT.Command, "VOXGATE_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "VOXGATE_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "VOXGATE_STT_LANGUAGE")
	overrideString(&cfg.Embedding.Mode, "VOXGATE_EMBEDDING_MODE")
	overrideString(&cfg.Embedding.Command, "VOXGATE_EMBEDDING_COMMAND")
	overrideString(&cfg.Embedding.ModelPath, "VOXGATE_EMBEDDING_MODEL_PATH")
	overrideInt(&cfg.Embedding.Dimension, "VOXGATE_EMBEDDING_DIMENSION")
	overrideString(&cfg.Enrollment.Path, "VOXGATE_ENROLLMENT_PATH")
	overrideString(&cfg.Auth.Phrase, "VOXGATE_AUTH_PHRASE")
	overrideInt(&cfg.Auth.PhraseTimeoutSec, "VOXGATE_AUTH_PHRASE_TIMEOUT_S")
	overrideInt(&cfg.Auth.ListenTimeoutSec, "VOXGATE_AUTH_LISTEN_TIMEOUT_S")
	overrideInt(&cfg.Auth.RecordDurationSec, "VOXGATE_AUTH_RECORD_DURATION_S")
	overrideFloat(&cfg.Auth.Threshold, "VOXGATE_AUTH_THRESHOLD")
	overrideInt(&cfg.Auth.MaxPhraseRetries, "VOXGATE_AUTH_MAX_PHRASE_RETRIES")
	overrideBool(&cfg.TTS.Enabled, "VOXGATE_TTS_ENABLED")
	overrideString(&cfg.TTS.Mode, "VOXGATE_TTS_MODE")
	overrideString(&cfg.TTS.Command, "VOXGATE_TTS_COMMAND")
	overrideString(&cfg.TTS.Voice, "VOXGATE_TTS_VOICE")
	overrideString(&cfg.Audit.Path, "VOXGATE_AUDIT_PATH")
	overrideString(&cfg.Audit.RetentionMode, "VOXGATE_AUDIT_RETENTION_MODE")
	overrideInt(&cfg.Audit.RetentionDays, "VOXGATE_AUDIT_RETENTION_DAYS")
	overrideInt(&cfg.Audit.MaxSessions, "VOXGATE_AUDIT_MAX_SESSIONS")
	overrideBool(&cfg.Audit.VacuumOnStart, "VOXGATE_AUDIT_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Audio.Mode {
	case "exec", "mock":
	default:
		return errors.New("audio.mode must be one of exec|mock")
	}
	if cfg.Audio.Mode == "exec" && cfg.Audio.Command == "" {
		return errors.New("audio.command must be set when mode=exec")
	}
	if cfg.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if cfg.Audio.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	if cfg.Audio.FrameDurationMS <= 0 {
		return errors.New("audio.frame_duration_ms must be positive")
	}
	if cfg.Audio.QueueDepth <= 0 {
		return errors.New("audio.queue_depth must be positive")
	}
	switch cfg.STT.Mode {
	case "exec", "mock":
	default:
		return errors.New("stt.mode must be one of exec|mock")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	switch cfg.Embedding.Mode {
	case "exec", "mock":
	default:
		return errors.New("embedding.mode must be one of exec|mock")
	}
	if cfg.Embedding.Mode == "exec" && cfg.Embedding.Command == "" {
		return errors.New("embedding.command must be set when mode=exec")
	}
	if cfg.Embedding.Dimension <= 0 {
		return errors.New("embedding.dimension must be positive")
	}
	if cfg.Enrollment.Path == "" {
		return errors.New("enrollment.path must not be empty")
	}
	if strings.TrimSpace(cfg.Auth.Phrase) == "" {
		return errors.New("auth.phrase must not be empty")
	}
	if cfg.Auth.PhraseTimeoutSec <= 0 {
		return errors.New("auth.phrase_timeout_s must be positive")
	}
	if cfg.Auth.ListenTimeoutSec <= 0 {
		return errors.New("auth.listen_timeout_s must be positive")
	}
	if cfg.Auth.RecordDurationSec <= 0 {
		return errors.New("auth.record_duration_s must be positive")
	}
	if cfg.Auth.Threshold <= 0 || cfg.Auth.Threshold > 1 {
		return errors.New("auth.threshold must be in (0, 1]")
	}
	if cfg.Auth.MaxPhraseRetries < 0 {
		return errors.New("auth.max_phrase_retries must be >= 0")
	}
	switch cfg.TTS.Mode {
	case "exec", "mock":
	default:
		return errors.New("tts.mode must be one of exec|mock")
	}
	if cfg.TTS.Enabled && cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if len(cfg.Intents) == 0 {
		return errors.New("intents must declare at least one rule")
	}
	for _, rule := range cfg.Intents {
		if rule.Name == "" {
			return errors.New("intents entries must have a name")
		}
		if len(rule.Phrases) == 0 {
			return fmt.Errorf("intent %q must declare at least one phrase", rule.Name)
		}
	}
	if cfg.Audit.Path == "" {
		return errors.New("audit.path must not be empty")
	}
	switch cfg.Audit.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("audit.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Audit.RetentionDays < 0 {
		return errors.New("audit.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}

// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration holds all tunables for the voice Q&A session core.
type Configuration struct {
	Service       ServiceConfig
	Capture       CaptureConfig
	Recognizer    RecognizerConfig
	Synth         SynthConfig
	Store         StoreConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name      string
	Principal string
}

// CaptureConfig holds the endpointing timers for the capture engine.
// These are tunable constants, not contractual values.
type CaptureConfig struct {
	SilenceTimeout   time.Duration // end-of-turn silence after speech started
	InitialTimeout   time.Duration // thinking time before the first word
	SettleDelay      time.Duration // wait between engine stop and restart
	RelistenCooldown time.Duration // pause before re-listening after an empty capture
}

// RecognizerConfig selects and configures the recognition capability.
type RecognizerConfig struct {
	Provider       string // sim, google
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
}

// SynthConfig selects and configures the playback capability.
type SynthConfig struct {
	Provider string // sim, ws
	WSURL    string
	Voice    string
	Token    string
}

// StoreConfig configures the badger-backed session store.
type StoreConfig struct {
	Dir      string
	InMemory bool
}

// KafkaConfig configures the optional session event publisher.
type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	TopicTranscripts string
	TopicSession     string
	Principal        string
}

// ObservabilityConfig configures logging and the metrics HTTP server.
type ObservabilityConfig struct {
	LogLevel string
	HTTPAddr string
	Enabled  bool
}

// Load reads configuration from the environment, falling back to defaults.
func Load() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Name:      envOrDefault("SERVICE_NAME", "voice-qa-session"),
			Principal: envOrDefault("SERVICE_PRINCIPAL", "svc-voice-qa"),
		},
		Capture: CaptureConfig{
			SilenceTimeout:   envDuration("CAPTURE_SILENCE_TIMEOUT", 3*time.Second),
			InitialTimeout:   envDuration("CAPTURE_INITIAL_TIMEOUT", 60*time.Second),
			SettleDelay:      envDuration("CAPTURE_SETTLE_DELAY", 250*time.Millisecond),
			RelistenCooldown: envDuration("CAPTURE_RELISTEN_COOLDOWN", time.Second),
		},
		Recognizer: RecognizerConfig{
			Provider:       envOrDefault("RECOGNIZER_PROVIDER", "sim"),
			LanguageCode:   envOrDefault("RECOGNIZER_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envInt("RECOGNIZER_SAMPLE_RATE_HZ", 16000),
			InterimResults: envBool("RECOGNIZER_INTERIM_RESULTS", true),
		},
		Synth: SynthConfig{
			Provider: envOrDefault("SYNTH_PROVIDER", "sim"),
			WSURL:    os.Getenv("SYNTH_WS_URL"),
			Voice:    envOrDefault("SYNTH_VOICE", "en-US-neutral"),
			Token:    os.Getenv("SYNTH_TOKEN"),
		},
		Store: StoreConfig{
			Dir:      envOrDefault("STORE_DIR", defaultStoreDir()),
			InMemory: envBool("STORE_IN_MEMORY", false),
		},
		Kafka: KafkaConfig{
			Enabled:          envBool("KAFKA_ENABLED", false),
			Brokers:          envList("KAFKA_BROKERS"),
			TopicTranscripts: envOrDefault("KAFKA_TOPIC_TRANSCRIPTS", "voiceqa.transcripts"),
			TopicSession:     envOrDefault("KAFKA_TOPIC_SESSION", "voiceqa.session"),
			Principal:        envOrDefault("KAFKA_PRINCIPAL", "svc-voice-qa"),
		},
		Observability: ObservabilityConfig{
			LogLevel: envOrDefault("LOG_LEVEL", "info"),
			HTTPAddr: envOrDefault("OBSERVABILITY_ADDR", ":9090"),
			Enabled:  envBool("OBSERVABILITY_ENABLED", false),
		},
	}
}

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".voiceqa"
	}
	return home + "/.voiceqa/sessions"
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

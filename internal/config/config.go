package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host               string
	Port               string
	Channel            string
	RelayURL           string
	Rooms              []string
	DatabaseURL        string
	ClientBuffer       int
	AuditBuffer        int
	MaxMalformed       int
	RateLimitPerMinute int
	RateLimitBurst     int
	Voice              VoiceConfig
}

type VoiceConfig struct {
	Provider  string
	Preferred string
	Lang      string
	Template  string
	Command   string
	URL       string
	Timeout   time.Duration
	Enabled   bool
}

const (
	DefaultChannel       = "tunos"
	DefaultVoiceTemplate = "Paciente {patient}, por favor pase al consultorio {room}."
)

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	port := os.Getenv("TUNOS_PORT")
	if port == "" {
		port = "8085"
	}
	host := os.Getenv("TUNOS_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	channel := strings.TrimSpace(os.Getenv("TUNOS_CHANNEL"))
	if channel == "" {
		channel = DefaultChannel
	}
	relayURL := os.Getenv("TUNOS_RELAY_URL")
	if relayURL == "" {
		relayURL = "ws://" + host + ":" + port + "/realtime/websocket"
	}

	return Config{
		Host:               host,
		Port:               port,
		Channel:            channel,
		RelayURL:           relayURL,
		Rooms:              readList("TUNOS_ROOMS", []string{"1", "2", "3", "4", "5"}),
		DatabaseURL:        os.Getenv("DB_DSN"),
		ClientBuffer:       readInt("TUNOS_CLIENT_BUFFER", 16),
		AuditBuffer:        readInt("TUNOS_AUDIT_BUFFER", 64),
		MaxMalformed:       readInt("TUNOS_MAX_MALFORMED", 20),
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
		Voice: VoiceConfig{
			Provider:  os.Getenv("VOICE_PROVIDER"),
			Preferred: readString("VOICE_NAME", "Google español de Estados Unidos"),
			Lang:      readString("VOICE_LANG", "es-US"),
			Template:  readString("VOICE_TEMPLATE", DefaultVoiceTemplate),
			Command:   readString("VOICE_COMMAND", "espeak-ng"),
			URL:       os.Getenv("VOICE_URL"),
			Timeout:   readDurationSeconds("VOICE_TIMEOUT_SECONDS", 10),
			Enabled:   readBool("VOICE_ENABLED", true),
		},
	}
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func readString(key, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	return raw
}

func readList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

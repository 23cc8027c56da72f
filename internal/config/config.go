package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	Env          string
	DatabaseDSN  string
	RegistryPath string
	Gateway      GatewayConfig
}

// GatewayConfig tunes the model gateway's retry and timeout behavior.
type GatewayConfig struct {
	Retries         int
	RetryDelay      time.Duration
	GenerateTimeout time.Duration
	ProbeTimeout    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:         *port,
		Env:          env,
		DatabaseDSN:  strings.TrimSpace(os.Getenv("PIPELINE_STORE_PG_DSN")),
		RegistryPath: strings.TrimSpace(os.Getenv("BACKEND_REGISTRY_PATH")),
		Gateway:      loadGatewayConfig(),
	}, nil
}

func loadGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Retries:         envInt("GATEWAY_RETRIES", 2),
		RetryDelay:      envDuration("GATEWAY_RETRY_DELAY", 2*time.Second),
		GenerateTimeout: envDuration("GATEWAY_GENERATE_TIMEOUT", 180*time.Second),
		ProbeTimeout:    envDuration("GATEWAY_PROBE_TIMEOUT", 8*time.Second),
	}
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

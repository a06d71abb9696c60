package profile

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Version is the current version of server
	Version string

	// InstanceAddr is this instance's externally routable address. It is
	// the instance's identity in the distributed registry, so it must be
	// reachable by the other front-end servers.
	InstanceAddr string

	// Driver is the origin store driver (sqlite or postgres)
	Driver string
	// DSN points to the origin store holding bot definitions
	DSN string
	// Data is the data directory for the sqlite driver
	Data string

	// Coordination store (Redis) connection parameters. An empty RedisAddr
	// selects the in-memory store, which is only valid for a single
	// instance.
	RedisAddr     string // BOTHUB_REDIS
	RedisPassword string // BOTHUB_REDIS_PASSWORD
	RedisDB       int    // BOTHUB_REDIS_DB

	// IdleThreshold is how long a session may go without an ask before the
	// eviction sweep terminates it.
	IdleThreshold time.Duration // BOTHUB_IDLE_THRESHOLD (default: 5m)
	// SweepInterval is the eviction sweep period.
	SweepInterval time.Duration // BOTHUB_SWEEP_INTERVAL (default: 60s)
	// RegistryTTL is the TTL on heartbeat and ownership keys. It must
	// exceed SweepInterval so one missed sweep does not lapse the
	// heartbeat.
	RegistryTTL time.Duration // BOTHUB_REGISTRY_TTL (default: 70s)
	// AskTimeout bounds how long one ask may wait on a worker.
	AskTimeout time.Duration // BOTHUB_ASK_TIMEOUT (default: 30s)
	// MemoryCutoffPercent is the memory usage above which this instance
	// stops advertising itself for new sessions.
	MemoryCutoffPercent float64 // BOTHUB_MEMORY_CUTOFF (default: 80)

	// Conversation engine configuration.
	OpenAIAPIKey  string // BOTHUB_OPENAI_API_KEY
	OpenAIBaseURL string // BOTHUB_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	OpenAIModel   string // BOTHUB_OPENAI_MODEL (default: gpt-4o-mini)

	// TrainConcurrency bounds concurrent training jobs.
	TrainConcurrency int64 // BOTHUB_TRAIN_CONCURRENCY (default: 2)
	// TrainRatePerMinute rate-limits incoming training requests.
	TrainRatePerMinute int // BOTHUB_TRAIN_RATE (default: 10)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads configuration from BOTHUB_* environment variables.
func (p *Profile) FromEnv() {
	if addr := os.Getenv("BOTHUB_REDIS"); addr != "" {
		p.RedisAddr = addr
		if port := os.Getenv("BOTHUB_REDIS_PORT"); port != "" {
			p.RedisAddr = net.JoinHostPort(addr, port)
		}
	}
	p.RedisPassword = getEnvOrDefault("BOTHUB_REDIS_PASSWORD", p.RedisPassword)
	p.RedisDB = getIntEnv("BOTHUB_REDIS_DB", 0)

	// The flag value survives unless the env var is actually set.
	p.InstanceAddr = getEnvOrDefault("BOTHUB_INSTANCE_ADDR", p.InstanceAddr)

	p.IdleThreshold = getDurationEnv("BOTHUB_IDLE_THRESHOLD", 5*time.Minute)
	p.SweepInterval = getDurationEnv("BOTHUB_SWEEP_INTERVAL", 60*time.Second)
	p.RegistryTTL = getDurationEnv("BOTHUB_REGISTRY_TTL", 70*time.Second)
	p.AskTimeout = getDurationEnv("BOTHUB_ASK_TIMEOUT", 30*time.Second)
	p.MemoryCutoffPercent = getFloatEnv("BOTHUB_MEMORY_CUTOFF", 80)

	p.OpenAIAPIKey = getEnvOrDefault("BOTHUB_OPENAI_API_KEY", p.OpenAIAPIKey)
	p.OpenAIBaseURL = getEnvOrDefault("BOTHUB_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.OpenAIModel = getEnvOrDefault("BOTHUB_OPENAI_MODEL", "gpt-4o-mini")

	p.TrainConcurrency = int64(getIntEnv("BOTHUB_TRAIN_CONCURRENCY", 2))
	p.TrainRatePerMinute = getIntEnv("BOTHUB_TRAIN_RATE", 10)
}

// Validate normalizes the profile and rejects configurations the server
// cannot run with.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported origin store driver %q", p.Driver)
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		if p.Data == "" {
			p.Data = "."
		}
		p.DSN = fmt.Sprintf("%s/bothub_%s.db", p.Data, p.Mode)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	if p.InstanceAddr == "" {
		// Fall back to the bind address; good enough for a single node,
		// wrong behind NAT. Multi-instance deployments must set
		// BOTHUB_INSTANCE_ADDR.
		p.InstanceAddr = net.JoinHostPort(p.Addr, strconv.Itoa(p.Port))
	}

	if p.IdleThreshold <= 0 {
		p.IdleThreshold = 5 * time.Minute
	}
	if p.SweepInterval <= 0 {
		p.SweepInterval = 60 * time.Second
	}
	if p.RegistryTTL <= 0 {
		p.RegistryTTL = 70 * time.Second
	}
	if p.AskTimeout <= 0 {
		p.AskTimeout = 30 * time.Second
	}
	if p.RegistryTTL <= p.SweepInterval {
		return errors.Errorf("registry TTL %v must exceed sweep interval %v", p.RegistryTTL, p.SweepInterval)
	}
	if p.MemoryCutoffPercent <= 0 || p.MemoryCutoffPercent > 100 {
		p.MemoryCutoffPercent = 80
	}
	if p.TrainConcurrency <= 0 {
		p.TrainConcurrency = 2
	}
	if p.TrainRatePerMinute <= 0 {
		p.TrainRatePerMinute = 10
	}

	return nil
}

package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store backends.
const (
	BackendSupabase = "supabase"
	BackendTables   = "aztables"
)

// ErrMissingRemoteStore is returned when the remote store URL or key is unset.
var ErrMissingRemoteStore = errors.New("missing remote store config")

// Config is the process configuration, read once from the environment.
type Config struct {
	Debug bool

	Backend  string
	StoreURL string
	StoreKey string
	Table    string

	// RedisURL is empty when caching and idempotency are disabled.
	RedisURL   string
	CacheTTL   time.Duration
	DeduperTTL time.Duration

	EnterDuration   time.Duration
	DeleteDelay     time.Duration
	Port            int
	ShutdownTimeout time.Duration
}

// ListenAddr is the address the HTTP server binds.
func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Backend:  firstSet(getenv, "STORE_BACKEND"),
		StoreURL: firstSet(getenv, "STORE_URL", "SUPABASE_URL", "REACT_APP_SUPABASE_URL"),
		StoreKey: firstSet(getenv, "STORE_KEY", "SUPABASE_ANON_KEY", "REACT_APP_SUPABASE_ANON_KEY"),
		Table:    firstSet(getenv, "TODOS_TABLE"),
		RedisURL: getenv("REDIS_CONNECTION_STRING"),
	}
	if dbg, err := strconv.ParseBool(getenv("DEBUG")); err == nil {
		cfg.Debug = dbg
	}
	if cfg.StoreURL == "" || cfg.StoreKey == "" {
		return Config{}, ErrMissingRemoteStore
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendSupabase
	}
	if cfg.Backend != BackendSupabase && cfg.Backend != BackendTables {
		return Config{}, fmt.Errorf("invalid STORE_BACKEND %q", cfg.Backend)
	}
	if cfg.Table == "" {
		cfg.Table = "todos"
	}

	durations := []struct {
		name string
		dst  *time.Duration
		def  time.Duration
		zero bool
	}{
		{"CACHE_TTL", &cfg.CacheTTL, 5 * time.Minute, true},
		{"DEDUPER_TTL", &cfg.DeduperTTL, 24 * time.Hour, false},
		{"ENTER_DURATION", &cfg.EnterDuration, 400 * time.Millisecond, true},
		{"DELETE_DELAY", &cfg.DeleteDelay, 300 * time.Millisecond, true},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout, 10 * time.Second, false},
	}
	for _, d := range durations {
		v, err := envDuration(getenv, d.name, d.def, d.zero)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	cfg.Port = 8080
	if v := getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT: %w", err)
		}
		if n <= 0 || n > 65535 {
			return Config{}, fmt.Errorf("invalid PORT: %d out of range", n)
		}
		cfg.Port = n
	}
	return cfg, nil
}

func firstSet(getenv func(string) string, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func envDuration(getenv func(string) string, name string, def time.Duration, allowZero bool) (time.Duration, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %v", name, d)
	}
	return d, nil
}

// RedisOptions parses a redis:// URL or an Azure style connection string
// ("host:port,password=...,ssl=true").
func RedisOptions(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, errors.New("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	if opts.Addr == "" {
		return nil, fmt.Errorf("invalid redis connection string %q", conn)
	}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts, nil
}

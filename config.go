package storedb

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the manager needs to reach and operate the
// database. It is read once at construction and never mutated afterwards.
type Config struct {
	// Driver allows overriding the sql driver (e.g. "mysql" in prod,
	// "sqlmock" in tests).
	Driver string
	// DSN, when non-empty, wins over the field-based build below.
	DSN string

	Host      string
	Port      int
	Username  string
	Password  string
	Database  string
	Charset   string
	Collation string
	Params    map[string]string

	ConnectTimeout      time.Duration
	MaxConnectAttempts  int
	HealthCheckInterval time.Duration
	CacheCapacity       int
	SlowQueryThreshold  time.Duration
	MaxRetries          int // deadlock retry bound for ExecuteWithRetry
}

const (
	defaultPort                = 3306
	defaultCharset             = "utf8mb4"
	defaultCollation           = "utf8mb4_unicode_ci"
	defaultConnectTimeout      = 10 * time.Second
	defaultMaxConnectAttempts  = 3
	defaultHealthCheckInterval = 300 * time.Second
	defaultCacheCapacity       = 100
	defaultSlowQueryThreshold  = 1000 * time.Millisecond
	defaultMaxRetries          = 3
)

// withDefaults fills the zero-valued fields.
func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = "mysql"
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Charset == "" {
		c.Charset = defaultCharset
	}
	if c.Collation == "" {
		c.Collation = defaultCollation
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.MaxConnectAttempts <= 0 {
		c.MaxConnectAttempts = defaultMaxConnectAttempts
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = defaultHealthCheckInterval
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = defaultCacheCapacity
	}
	if c.SlowQueryThreshold <= 0 {
		c.SlowQueryThreshold = defaultSlowQueryThreshold
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	return c
}

// applyEnv overlays STOREDB_* environment variables onto cfg.
// An env value always wins over the corresponding struct field.
func applyEnv(cfg *Config) {
	if v := getenv("STOREDB_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := getenv("STOREDB_DRIVER"); v != "" {
		cfg.Driver = v
	}
	if v := getenv("STOREDB_HOST"); v != "" {
		cfg.Host = v
	}
	if v := getenv("STOREDB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := getenv("STOREDB_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := getenv("STOREDB_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := getenv("STOREDB_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := getenv("STOREDB_CHARSET"); v != "" {
		cfg.Charset = v
	}
	if v := getenv("STOREDB_COLLATION"); v != "" {
		cfg.Collation = v
	}
	if v := getenv("STOREDB_CONNECT_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ConnectTimeout = time.Duration(n) * time.Second
		}
	}
	if v := getenv("STOREDB_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConnectAttempts = n
		}
	}
	if v := getenv("STOREDB_HEALTH_CHECK_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HealthCheckInterval = time.Duration(n) * time.Second
		}
	}
	if v := getenv("STOREDB_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheCapacity = n
		}
	}
	if v := getenv("STOREDB_SLOW_QUERY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SlowQueryThreshold = time.Duration(n) * time.Millisecond
		}
	}
	if v := getenv("STOREDB_PARAMS"); v != "" {
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		for _, kv := range strings.Split(v, "&") {
			k, val, ok := strings.Cut(kv, "=")
			if ok && k != "" {
				cfg.Params[k] = val
			}
		}
	}
}

func getenv(key string) string { return strings.TrimSpace(os.Getenv(key)) }

// dsnFromConfig returns the driver DSN.
// Priority: an explicit Config.DSN is returned unchanged; otherwise the DSN
// is assembled from the individual fields.
func dsnFromConfig(c Config) string {
	if strings.TrimSpace(c.DSN) != "" {
		return c.DSN
	}
	addr := c.Host
	if c.Port > 0 {
		addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}

	params := make(map[string]string, len(c.Params)+3)
	for k, v := range c.Params {
		params[k] = v
	}
	if c.Charset != "" {
		params["charset"] = c.Charset
	}
	if c.Collation != "" {
		params["collation"] = c.Collation
	}
	if c.ConnectTimeout > 0 {
		params["timeout"] = c.ConnectTimeout.String()
	}

	// Stable param order for test determinism.
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, url.QueryEscape(params[k])))
	}

	// auth part: the password is not URL-encoded, the mysql driver expects
	// it raw.
	auth := ""
	if c.Username != "" {
		if c.Password != "" {
			auth = fmt.Sprintf("%s:%s@", c.Username, c.Password)
		} else {
			auth = c.Username + "@"
		}
	}
	dsn := fmt.Sprintf("%stcp(%s)/%s", auth, addr, url.PathEscape(c.Database))
	if len(parts) > 0 {
		dsn += "?" + strings.Join(parts, "&")
	}
	return dsn
}

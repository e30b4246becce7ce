package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	// MinBcryptCost is the lowest work factor accepted in production.
	MinBcryptCost = 10
	// minDevBcryptCost mirrors bcrypt.MinCost.
	minDevBcryptCost = 4
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	// LogFormat is json or console. Empty picks console in development.
	LogFormat string `env:"LOG_FORMAT"`
	// TrustedProxies lists CIDRs or IPs whose X-Forwarded-For is honoured.
	// Empty means the TCP peer is the client address.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	JWT   JWTConfig
	Store StoreConfig
	Mongo MongoConfig
	Redis RedisConfig
	Limit RateLimitConfig
	Audit AuditConfig
	Seed  SeedConfig

	BcryptCost int `env:"BCRYPT_COST, default=12"`
}

type JWTConfig struct {
	Secret            string        `env:"JWT_SECRET"`
	RefreshSecret     string        `env:"JWT_REFRESH_SECRET"`
	Expiration        time.Duration `env:"JWT_EXPIRATION,         default=15m"`
	RefreshExpiration time.Duration `env:"JWT_REFRESH_EXPIRATION, default=168h"`
	Issuer            string        `env:"JWT_ISSUER,             default=adminauth"`
}

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER, default=postgres"`
	// DSN is used by the postgres and sqlite drivers.
	DSN string `env:"DATABASE_DSN"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=admin_auth"`
}

// RedisConfig is optional; an empty Addr disables the shared rate limiter.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type RateLimitConfig struct {
	Requests int           `env:"RATE_LIMIT_REQUESTS, default=20"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW,   default=1m"`
}

type AuditConfig struct {
	Workers int `env:"AUDIT_WORKERS, default=4"`
}

type SeedConfig struct {
	Enabled       bool   `env:"SEED_ENABLED,        default=false"`
	AdminEmail    string `env:"SEED_ADMIN_EMAIL,    default=admin@empresa.com"`
	AdminPassword string `env:"SEED_ADMIN_PASSWORD"`
	AdminName     string `env:"SEED_ADMIN_NAME,     default=Administrator"`
}

// IsDevelopment reports whether the service runs outside production.
func (c *Config) IsDevelopment() bool {
	return !strings.EqualFold(c.Env, "production")
}

// ProxyRanges parses TrustedProxies. Bare addresses become single-host ranges.
func (c *Config) ProxyRanges() ([]*net.IPNet, error) {
	ranges := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", raw)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			ranges = append(ranges, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", raw)
		}
		ranges = append(ranges, ipNet)
	}
	return ranges, nil
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" || c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET and JWT_REFRESH_SECRET are required"))
	} else if c.JWT.Secret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.JWT.Expiration <= 0 || c.JWT.RefreshExpiration <= 0 {
		errs = append(errs, errors.New("token expirations must be positive"))
	}
	minCost := MinBcryptCost
	if c.IsDevelopment() {
		minCost = minDevBcryptCost
	}
	if c.BcryptCost < minCost || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and 31", minCost))
	}

	switch c.Store.Driver {
	case StoreMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
	case StorePostgres, StoreSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("DATABASE_DSN is required for the %s store", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q (want mongo, postgres or sqlite)", c.Store.Driver))
	}

	if c.Limit.Requests <= 0 || c.Limit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q (want json or console)", c.LogFormat))
	}
	if _, err := c.ProxyRanges(); err != nil {
		errs = append(errs, err)
	}
	if c.Seed.Enabled && c.Seed.AdminPassword == "" {
		errs = append(errs, errors.New("SEED_ADMIN_PASSWORD is required when SEED_ENABLED is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

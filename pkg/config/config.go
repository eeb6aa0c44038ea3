package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Ledger        LedgerConfig
	Seed          SeedConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KEYSTOCK_APP_ENV" required:"true"`
	Port         string `envconfig:"KEYSTOCK_APP_PORT" default:"3001"`
	LogLevel     string `envconfig:"KEYSTOCK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KEYSTOCK_LOG_WARN_STACK" default:"false"`
	Timezone     string `envconfig:"KEYSTOCK_TIMEZONE" default:"Local"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the shop's local time zone used for usage dates.
func (a AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

type DBConfig struct {
	DSN    string `envconfig:"KEYSTOCK_DB_DSN"`
	Driver string `envconfig:"KEYSTOCK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KEYSTOCK_DB_HOST"`
	LegacyPort     int    `envconfig:"KEYSTOCK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KEYSTOCK_DB_USER"`
	LegacyPassword string `envconfig:"KEYSTOCK_DB_PASSWORD"`
	LegacyName     string `envconfig:"KEYSTOCK_DB_NAME"`
	LegacySSLMode  string `envconfig:"KEYSTOCK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KEYSTOCK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KEYSTOCK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KEYSTOCK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KEYSTOCK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite store.
func (db DBConfig) IsSQLite() bool {
	switch strings.ToLower(strings.TrimSpace(db.Driver)) {
	case DriverSQLite, "sqlite3":
		return true
	}
	return false
}

// RedisConfig is optional. Without a URL or address the API runs with stateless
// tokens and no auth rate limiting.
type RedisConfig struct {
	URL          string        `envconfig:"KEYSTOCK_REDIS_URL"`
	Address      string        `envconfig:"KEYSTOCK_REDIS_ADDR"`
	Password     string        `envconfig:"KEYSTOCK_REDIS_PASSWORD"`
	DB           int           `envconfig:"KEYSTOCK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KEYSTOCK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KEYSTOCK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KEYSTOCK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KEYSTOCK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KEYSTOCK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret                 string `envconfig:"KEYSTOCK_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"KEYSTOCK_JWT_ISSUER" default:"keystock"`
	ExpirationMinutes      int    `envconfig:"KEYSTOCK_JWT_EXPIRATION_MINUTES" default:"1440"`
	RefreshTokenTTLMinutes int    `envconfig:"KEYSTOCK_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KEYSTOCK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"KEYSTOCK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"KEYSTOCK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"KEYSTOCK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KEYSTOCK_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"KEYSTOCK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit int           `envconfig:"KEYSTOCK_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"KEYSTOCK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

// LedgerConfig bounds what a single usage registration may consume.
type LedgerConfig struct {
	MaxUsageQty int `envconfig:"KEYSTOCK_LEDGER_MAX_USAGE_QTY" default:"5"`
}

type SeedConfig struct {
	AdminUsername string `envconfig:"KEYSTOCK_SEED_ADMIN_USERNAME" default:"Admin"`
	AdminPassword string `envconfig:"KEYSTOCK_SEED_ADMIN_PASSWORD"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"KEYSTOCK_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KEYSTOCK_AUTO_MIGRATE" default:"false"`
	Metrics     bool `envconfig:"KEYSTOCK_METRICS_ENABLED" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

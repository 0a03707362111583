package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	PayPal       PayPalConfig
	Payouts      PayoutsConfig
	Postback     PostbackConfig
	Offerwall    OfferwallConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payouts.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SURVEYCASH_APP_ENV" required:"true"`
	Port         string `envconfig:"SURVEYCASH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SURVEYCASH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SURVEYCASH_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SURVEYCASH_LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"SURVEYCASH_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SURVEYCASH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SURVEYCASH_DB_DSN"`
	Driver string `envconfig:"SURVEYCASH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SURVEYCASH_DB_HOST"`
	LegacyPort     int    `envconfig:"SURVEYCASH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SURVEYCASH_DB_USER"`
	LegacyPassword string `envconfig:"SURVEYCASH_DB_PASSWORD"`
	LegacyName     string `envconfig:"SURVEYCASH_DB_NAME"`
	LegacySSLMode  string `envconfig:"SURVEYCASH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SURVEYCASH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SURVEYCASH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SURVEYCASH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SURVEYCASH_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SURVEYCASH_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SURVEYCASH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SURVEYCASH_REDIS_ADDR"`
	Password     string        `envconfig:"SURVEYCASH_REDIS_PASSWORD"`
	DB           int           `envconfig:"SURVEYCASH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SURVEYCASH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SURVEYCASH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SURVEYCASH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SURVEYCASH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SURVEYCASH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SURVEYCASH_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SURVEYCASH_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SURVEYCASH_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SURVEYCASH_AUTO_MIGRATE" default:"false"`
}

// PayPalConfig holds the Payouts API credentials. BaseURL overrides the
// environment-derived host (useful for stubs).
type PayPalConfig struct {
	ClientID     string        `envconfig:"SURVEYCASH_PAYPAL_CLIENT_ID"`
	ClientSecret string        `envconfig:"SURVEYCASH_PAYPAL_CLIENT_SECRET"`
	Env          string        `envconfig:"SURVEYCASH_PAYPAL_ENV" default:"sandbox"`
	BaseURL      string        `envconfig:"SURVEYCASH_PAYPAL_BASE_URL"`
	Currency     string        `envconfig:"SURVEYCASH_PAYPAL_CURRENCY" default:"USD"`
	Timeout      time.Duration `envconfig:"SURVEYCASH_PAYPAL_TIMEOUT" default:"15s"`
}

// Environment returns the normalized PayPal environment (sandbox/live).
func (p PayPalConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type PayoutsConfig struct {
	Denominations     []int64       `envconfig:"SURVEYCASH_PAYOUT_DENOMINATIONS" default:"500,1000,1500,2500,5000,7500,10000,15000,20000"`
	ReconcileInterval time.Duration `envconfig:"SURVEYCASH_PAYOUT_RECONCILE_INTERVAL" default:"60s"`
	ReconcileBatch    int           `envconfig:"SURVEYCASH_PAYOUT_RECONCILE_BATCH" default:"200"`
	Concurrency       int           `envconfig:"SURVEYCASH_PAYOUT_RECONCILE_CONCURRENCY" default:"4"`
	ItemTimeout       time.Duration `envconfig:"SURVEYCASH_PAYOUT_ITEM_TIMEOUT" default:"20s"`
	PollAttempts      int           `envconfig:"SURVEYCASH_PAYOUT_POLL_ATTEMPTS" default:"10"`
	PollInterval      time.Duration `envconfig:"SURVEYCASH_PAYOUT_POLL_INTERVAL" default:"3s"`
	RedirectPath      string        `envconfig:"SURVEYCASH_PAYOUT_REDIRECT_PATH" default:"/cashout"`
	RequestLimit      int64         `envconfig:"SURVEYCASH_PAYOUT_REQUEST_LIMIT" default:"5"`
	RequestWindow     time.Duration `envconfig:"SURVEYCASH_PAYOUT_REQUEST_WINDOW" default:"1m"`
}

func (p PayoutsConfig) validate() error {
	for _, cents := range p.Denominations {
		if cents <= 0 {
			return fmt.Errorf("%s must only contain positive cent amounts", EnvPayoutDenominations)
		}
	}
	return nil
}

type PostbackConfig struct {
	IdempotencyTTL time.Duration `envconfig:"SURVEYCASH_POSTBACK_IDEMPOTENCY_TTL" default:"72h"`
}

type OfferwallConfig struct {
	AppID      string `envconfig:"SURVEYCASH_CPX_APP_ID"`
	SecureHash string `envconfig:"SURVEYCASH_CPX_SECURE_HASH"`
	BaseURL    string `envconfig:"SURVEYCASH_CPX_BASE_URL" default:"https://offers.cpx-research.com/index.php"`
}

type CronConfig struct {
	LockTTL time.Duration `envconfig:"SURVEYCASH_CRON_LOCK_TTL" default:"2m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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

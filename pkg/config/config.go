package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Artifacts   ArtifactsConfig
	PubSub      PubSubConfig
	GCP         GCPConfig
	Worker      WorkerConfig
	FeatureFlag FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MUSHCHECK_APP_ENV" required:"true"`
	Port         string `envconfig:"MUSHCHECK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MUSHCHECK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MUSHCHECK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MUSHCHECK_DB_DSN"`
	Driver string `envconfig:"MUSHCHECK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MUSHCHECK_DB_HOST"`
	LegacyPort     int    `envconfig:"MUSHCHECK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MUSHCHECK_DB_USER"`
	LegacyPassword string `envconfig:"MUSHCHECK_DB_PASSWORD"`
	LegacyName     string `envconfig:"MUSHCHECK_DB_NAME"`
	LegacySSLMode  string `envconfig:"MUSHCHECK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MUSHCHECK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MUSHCHECK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MUSHCHECK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MUSHCHECK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MUSHCHECK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MUSHCHECK_REDIS_ADDR"`
	Password     string        `envconfig:"MUSHCHECK_REDIS_PASSWORD"`
	DB           int           `envconfig:"MUSHCHECK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MUSHCHECK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MUSHCHECK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MUSHCHECK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MUSHCHECK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MUSHCHECK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MUSHCHECK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MUSHCHECK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MUSHCHECK_JWT_EXPIRATION_MINUTES" default:"30"`
}

// ArtifactsConfig locates the offline-trained model bundles on disk.
type ArtifactsConfig struct {
	Dir string `envconfig:"MUSHCHECK_ARTIFACTS_DIR" default:"ml_artifacts"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"MUSHCHECK_GCP_PROJECT_ID" required:"true"`
}

type PubSubConfig struct {
	PredictionsTopic        string `envconfig:"MUSHCHECK_PUBSUB_PREDICTIONS_TOPIC" default:"mc-prediction-jobs"`
	PredictionsSubscription string `envconfig:"MUSHCHECK_PUBSUB_PREDICTIONS_SUBSCRIPTION" required:"true"`
}

// WorkerConfig tunes the prediction worker retry policy. The backoff doubles
// on every attempt; MaxAttempts counts the first execution as attempt 1.
type WorkerConfig struct {
	MaxAttempts      int           `envconfig:"MUSHCHECK_WORKER_MAX_ATTEMPTS" default:"3"`
	BackoffBase      time.Duration `envconfig:"MUSHCHECK_WORKER_BACKOFF_BASE" default:"2s"`
	InferenceTimeout time.Duration `envconfig:"MUSHCHECK_WORKER_INFERENCE_TIMEOUT" default:"4m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MUSHCHECK_AUTO_MIGRATE" default:"false"`
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

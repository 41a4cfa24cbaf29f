package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	envPrefix = "STOREFRONT_"
)

// Config описывает настройки запуска витрины.
type Config struct {
	GRPCAddr    string
	MetricsAddr string
	LogLevel    string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// SeedFile: YAML с каталогом; пустое значение означает встроенный каталог.
	SeedFile string
	// PaymentSeed фиксирует генератор симулятора оплаты; 0 означает случайный seed.
	PaymentSeed int64

	// KafkaBrokers: список брокеров через запятую; при пустом значении события только логируются.
	KafkaBrokers  string
	KafkaClientID string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending и OutboxMaxAge задают пороги, после которых /healthz сообщает degraded.
	OutboxMaxPending int
	OutboxMaxAge     time.Duration
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		LogLevel:            "info",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		KafkaClientID:       "storefront",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    100 * time.Millisecond,
		OutboxMaxPending:    1000,
		OutboxMaxAge:        5 * time.Minute,
	}
}

// LoadConfig читает .env-файлы (отсутствующие пропускаются), затем переменные окружения
// STOREFRONT_* и KAFKA_BROKERS поверх DefaultConfig.
func LoadConfig(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg, err := applyEnv(DefaultConfig(), os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// applyEnv переопределяет поля cfg значениями из lookup.
func applyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str(envPrefix+"GRPC_ADDR", &cfg.GRPCAddr)
	str(envPrefix+"METRICS_ADDR", &cfg.MetricsAddr)
	str(envPrefix+"LOG_LEVEL", &cfg.LogLevel)
	str(envPrefix+"STORAGE", &cfg.StorageDriver)
	str(envPrefix+"POSTGRES_DSN", &cfg.PostgresDSN)
	str(envPrefix+"SEED_FILE", &cfg.SeedFile)
	str("KAFKA_BROKERS", &cfg.KafkaBrokers)
	str(envPrefix+"KAFKA_CLIENT_ID", &cfg.KafkaClientID)

	if v, ok := lookup(envPrefix + "POSTGRES_AUTO_MIGRATE"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPOSTGRES_AUTO_MIGRATE: %w", envPrefix, err))
		} else {
			cfg.PostgresAutoMigrate = b
		}
	}
	if v, ok := lookup(envPrefix + "PAYMENT_SEED"); ok && strings.TrimSpace(v) != "" {
		seed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAYMENT_SEED: %w", envPrefix, err))
		} else {
			cfg.PaymentSeed = seed
		}
	}

	duration(envPrefix+"OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	integer(envPrefix+"OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	integer(envPrefix+"OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	duration(envPrefix+"OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	integer(envPrefix+"OUTBOX_MAX_PENDING", &cfg.OutboxMaxPending)
	duration(envPrefix+"OUTBOX_MAX_AGE", &cfg.OutboxMaxAge)

	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	return cfg, errors.Join(errs...)
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.GRPCAddr) == "" {
		errs = append(errs, errors.New("grpc address is required"))
	}
	if strings.TrimSpace(c.MetricsAddr) == "" {
		errs = append(errs, errors.New("metrics address is required"))
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox poll interval must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox batch size must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox max attempts must be positive"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("outbox retry delay must not be negative"))
	}

	return errors.Join(errs...)
}

// Level возвращает уровень logrus; пустая строка означает info.
func (c Config) Level() (log.Level, error) {
	if strings.TrimSpace(c.LogLevel) == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

// Brokers разбирает KafkaBrokers, отбрасывая пустые элементы и пробелы.
func (c Config) Brokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

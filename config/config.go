package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel          string `env:"LOG_LEVEL"`
	Postgres          Postgres
	Telegram          Telegram
	Redis             Redis
	API               API
	Cache             Cache
	Jobs              Jobs
	GoogleDrive       GoogleDrive
	Rounding          Rounding
	SessionExpiration time.Duration `env:"SESSION_EXPIRATION"`
	VariantsPerPage   int           `env:"VARIANTS_PER_PAGE"`
	LabsPerPage       int           `env:"LABS_PER_PAGE"`
	InsertAttempts    int           `env:"INSERT_ATTEMPTS" envDefault:"3"`
	InsertBackoff     time.Duration `env:"INSERT_BACKOFF" envDefault:"200ms"`
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME"`
	MigrationDir    string `env:"PG_MIGRATION_DIR"`
}

type Telegram struct {
	Token      string        `env:"TELEGRAM_TOKEN"`
	UpdTimeout time.Duration `env:"TELEGRAM_UPD_TIMEOUT"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

type API struct {
	Debug   bool          `env:"API_DEBUG"`
	Timeout time.Duration `env:"API_TIMEOUT"`
	MoexApi MoexApi
}

type MoexApi struct {
	Url string `env:"MOEX_API_URL"`
}

type Cache struct {
	AssetsExpiration     time.Duration `env:"CACHE_ASSETS_EXPIRATION"`
	LabSummaryExpiration time.Duration `env:"CACHE_LAB_SUMMARY_EXPIRATION"`
}

type Jobs struct {
	FillMoexCacheInterval  time.Duration `env:"FILL_MOEX_CACHE_JOB_INTERVAL"`
	RevalidateLabsInterval time.Duration `env:"REVALIDATE_LABS_JOB_INTERVAL"`
	DriveCleanupCrontab    string        `env:"DRIVE_CLEANUP_CRONTAB"`
}

type GoogleDrive struct {
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE"`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL"`
}

type Rounding struct {
	MinLotBehavior string `env:"ROUNDING_MIN_LOT_BEHAVIOR" envDefault:"round"`
	RoundDirection string `env:"ROUNDING_DIRECTION" envDefault:"nearest"`
	ZeroThreshold  string `env:"ROUNDING_ZERO_THRESHOLD" envDefault:"0"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}

package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ExpirationCooldown is how long a listing is left alone after an expiration check.
const ExpirationCooldown = 48 * time.Hour

// Config holds all application configuration loaded from the environment,
// an optional rental-pipeline.yaml, and built-in defaults.
type Config struct {
	DBDriver   string
	SQLitePath string
	MySQLDSN   string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	CacheEnable bool
	CachePath   string

	RequestTimeout    time.Duration
	RequestsPerSecond float64
	MaxRetries        int

	Workers     int
	RateLimitMs int
	TaskSkew    time.Duration
	MaxScrape   int
	MaxMail     int
	CheckBBox   bool

	Site      string
	Area      string
	Category  string
	Filters   map[string]string
	Source    string
	ChromeBin string
	Timezone  string

	ScoreTargetDate    time.Time
	ScoreWorkLat       float64
	ScoreWorkLon       float64
	ScoreWorkClose     float64
	ScoreWorkMedium    float64
	ScoreStudioPenalty float64

	SendMail   bool
	NotifyURLs []string

	MetricsAddr        string
	ScrapeInterval     time.Duration
	ExpirationInterval time.Duration
	NotifyInterval     time.Duration

	LogLevel string
}

// Load reads the .env file, an optional config file and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	v := viper.New()
	v.SetConfigName("rental-pipeline")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("[config] Ignoring unreadable config file: %v", err)
		}
	}
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper builds a Config from an explicit viper instance after applying defaults.
func FromViper(v *viper.Viper) *Config {
	setDefaults(v)

	target, err := time.Parse("2006-01-02", v.GetString("score_target_date"))
	if err != nil {
		log.Printf("[config] Invalid SCORE_TARGET_DATE %q: %v", v.GetString("score_target_date"), err)
		target = time.Now().UTC().Truncate(24 * time.Hour)
	}

	return &Config{
		DBDriver:   strings.ToLower(v.GetString("db_driver")),
		SQLitePath: v.GetString("sqlite_path"),
		MySQLDSN:   v.GetString("mysql_dsn"),

		PostgresHost:     v.GetString("postgres_host"),
		PostgresPort:     v.GetString("postgres_port"),
		PostgresUser:     v.GetString("postgres_user"),
		PostgresPassword: v.GetString("postgres_password"),
		PostgresDB:       v.GetString("postgres_db"),
		PostgresSSLMode:  v.GetString("postgres_sslmode"),

		CacheEnable: v.GetBool("cache_enable"),
		CachePath:   v.GetString("cache_path"),

		RequestTimeout:    v.GetDuration("request_timeout"),
		RequestsPerSecond: v.GetFloat64("requests_per_second"),
		MaxRetries:        v.GetInt("max_retries"),

		Workers:     v.GetInt("workers"),
		RateLimitMs: v.GetInt("rate_limit_ms"),
		TaskSkew:    v.GetDuration("task_skew"),
		MaxScrape:   v.GetInt("max_scrape"),
		MaxMail:     v.GetInt("max_mail"),
		CheckBBox:   v.GetBool("check_bbox"),

		Site:      v.GetString("site"),
		Area:      v.GetString("area"),
		Category:  v.GetString("category"),
		Filters:   ParseFilters(v.GetString("filters")),
		Source:    strings.ToLower(v.GetString("source")),
		ChromeBin: v.GetString("chrome_bin"),
		Timezone:  v.GetString("timezone"),

		ScoreTargetDate:    target,
		ScoreWorkLat:       v.GetFloat64("score_work_lat"),
		ScoreWorkLon:       v.GetFloat64("score_work_lon"),
		ScoreWorkClose:     v.GetFloat64("score_work_close"),
		ScoreWorkMedium:    v.GetFloat64("score_work_medium"),
		ScoreStudioPenalty: v.GetFloat64("score_studio_penalty"),

		SendMail:   v.GetBool("send_mail"),
		NotifyURLs: splitList(v.GetString("notify_urls")),

		MetricsAddr:        v.GetString("metrics_addr"),
		ScrapeInterval:     v.GetDuration("scrape_interval"),
		ExpirationInterval: v.GetDuration("expiration_interval"),
		NotifyInterval:     v.GetDuration("notify_interval"),

		LogLevel: v.GetString("log_level"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("sqlite_path", "data/rental.db")
	v.SetDefault("mysql_dsn", "")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", "5432")
	v.SetDefault("postgres_user", "scraper")
	v.SetDefault("postgres_password", "scraper123")
	v.SetDefault("postgres_db", "rental_db")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("cache_enable", false)
	v.SetDefault("cache_path", "data/cl")

	v.SetDefault("request_timeout", "5s")
	v.SetDefault("requests_per_second", 2.0)
	v.SetDefault("max_retries", 5)

	v.SetDefault("workers", 4)
	v.SetDefault("rate_limit_ms", 0)
	v.SetDefault("task_skew", "120s")
	v.SetDefault("max_scrape", 50)
	v.SetDefault("max_mail", 10)
	v.SetDefault("check_bbox", true)

	v.SetDefault("site", "sfbay")
	v.SetDefault("area", "eby")
	v.SetDefault("category", "apa")
	v.SetDefault("filters", "max_price=3100,min_price=1000,hasPic=1")
	v.SetDefault("source", "http")
	v.SetDefault("chrome_bin", "")
	v.SetDefault("timezone", "America/Los_Angeles")

	v.SetDefault("score_target_date", "2017-07-01")
	v.SetDefault("score_work_lat", 37.876685)
	v.SetDefault("score_work_lon", -122.261998)
	v.SetDefault("score_work_close", 10.0)
	v.SetDefault("score_work_medium", 20.0)
	v.SetDefault("score_studio_penalty", -1500.0)

	v.SetDefault("send_mail", false)
	v.SetDefault("notify_urls", "")

	v.SetDefault("metrics_addr", ":9108")
	v.SetDefault("scrape_interval", "1h")
	v.SetDefault("expiration_interval", "6h")
	v.SetDefault("notify_interval", "1h")

	v.SetDefault("log_level", "info")
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("[config] Unknown timezone %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

// ParseFilters turns "k=v,k=v" into a map. Malformed pairs are skipped.
func ParseFilters(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitList(s) {
		k, val, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

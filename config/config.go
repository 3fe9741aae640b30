package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"catalog_tracker/identity"
	"catalog_tracker/models"
)

type Config struct {
	API         APIConfig
	Scheduler   SchedulerConfig
	Fetch       FetchConfig
	Archive     ArchiveConfig
	DataDir     string
	DBPath      string
	DatabaseURL string
	LogDir      string
	LogLevel    string
	CatalogFile string
	Catalog     []models.CatalogItem
}

type APIConfig struct {
	Key      string
	Host     string
	BaseURL  string
	Country  string
	Language string
	ProxyURL string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type FetchConfig struct {
	DelayMS int
}

type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether raw payloads should be copied to object storage
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

type catalogFile struct {
	Items []models.CatalogItem `yaml:"items"`
}

const defaultAPIHost = "real-time-amazon-data.p.rapidapi.com"

func Load() (*Config, error) {
	_ = godotenv.Load()

	host := getEnv("RAPIDAPI_HOST", defaultAPIHost)
	cfg := &Config{
		API: APIConfig{
			Key:      os.Getenv("RAPIDAPI_KEY"),
			Host:     host,
			BaseURL:  getEnv("RAPIDAPI_BASE_URL", "https://"+host),
			Country:  getEnv("API_COUNTRY", "IN"),
			Language: getEnv("API_LANGUAGE", "en_IN"),
			ProxyURL: os.Getenv("PROXY_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Fetch: FetchConfig{
			DelayMS: getEnvInt("FETCH_DELAY_MS", 1000),
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "ap-south-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DataDir:     getEnv("DATA_DIR", "."),
		DBPath:      getEnv("DB_PATH", "tracker.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogDir:      getEnv("LOG_DIR", "logs"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CatalogFile: getEnv("CATALOG_FILE", "config/catalog.yaml"),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadCatalog(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadCatalog reads the tracked item list. A missing file falls back to
// DefaultCatalog; a malformed one is an error.
func (c *Config) loadCatalog() error {
	data, err := os.ReadFile(c.CatalogFile)
	if err != nil {
		if os.IsNotExist(err) {
			c.Catalog = DefaultCatalog()
			return nil
		}
		return err
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", c.CatalogFile, err)
	}

	c.Catalog = make([]models.CatalogItem, 0, len(file.Items))
	for _, item := range file.Items {
		item.ASIN = identity.CleanASIN(item.ASIN)
		c.Catalog = append(c.Catalog, item)
	}
	return nil
}

var (
	ErrEmptyCatalog  = errors.New("catalog has no items")
	ErrMissingAPIKey = errors.New("RAPIDAPI_KEY is not set")
)

// Validate checks what a fetch run needs. Report-only runs skip it.
func (c *Config) Validate() error {
	if len(c.Catalog) == 0 {
		return ErrEmptyCatalog
	}
	if c.API.Key == "" {
		return ErrMissingAPIKey
	}

	seen := make(map[string]bool, len(c.Catalog))
	for i, item := range c.Catalog {
		if !identity.ValidASIN(item.ASIN) {
			return fmt.Errorf("catalog item %d (%s): invalid ASIN %q", i, item.Name, item.ASIN)
		}
		if seen[item.ASIN] {
			return fmt.Errorf("catalog item %d (%s): duplicate ASIN %s", i, item.Name, item.ASIN)
		}
		seen[item.ASIN] = true
	}
	return nil
}

// DefaultCatalog is the earbuds competitive set tracked when no catalog file exists
func DefaultCatalog() []models.CatalogItem {
	return []models.CatalogItem{
		{Name: "boAt Nirvana Zenith Pro (2025)", ASIN: "B0DXPL5XHF"},
		{Name: "Noise Air Clips Wireless Open Ear Earbuds with Chrome Finish", ASIN: "B0DGV56J6G"},
		{Name: "boAt Nirvana Ion ANC Pro", ASIN: "B0DN171184"},
		{Name: "Noise Newly Launched Air Buds Pro 6", ASIN: "B0DHH96NBB"},
		{Name: "boAt Nirvana Ivy", ASIN: "B0DBHD2F5R"},
		{Name: "Noise Newly Launched Air Clips 2", ASIN: "B0F673HNLP"},
		{Name: "boAt Nirvana X TWS (2025)", ASIN: "B0DQKY3R84"},
		{Name: "Noise Newly Launched Air Buds 6", ASIN: "B0DGV55W2K"},
		{Name: "Noise Newly Launched Air Buds Pro 6 in Ear Truly Wireless Earbuds with Hybrid ANC (up to 49dB)", ASIN: "B0DHHDW7FV"},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"catalog_tracker/models"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoad_CatalogFileCleansASINs(t *testing.T) {
	path := writeCatalog(t, "items:\n  - name: Ion\n    asin: \"\\tB0DN171184\"\n  - name: Ivy\n    asin: b0dbhd2f5r\n")
	t.Setenv("CATALOG_FILE", path)
	t.Setenv("RAPIDAPI_KEY", "test-key")
	t.Setenv("SCRAPE_INTERVAL", "6h")
	t.Setenv("FETCH_DELAY_MS", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Catalog) != 2 {
		t.Fatalf("expected 2 items, got %d", len(cfg.Catalog))
	}
	if cfg.Catalog[0].ASIN != "B0DN171184" || cfg.Catalog[1].ASIN != "B0DBHD2F5R" {
		t.Fatalf("unexpected ASINs: %+v", cfg.Catalog)
	}
	if cfg.Scheduler.Interval != 6*time.Hour {
		t.Fatalf("expected 6h interval, got %s", cfg.Scheduler.Interval)
	}
	if cfg.Fetch.DelayMS != 250 {
		t.Fatalf("expected delay 250, got %d", cfg.Fetch.DelayMS)
	}
	if cfg.API.BaseURL != "https://"+defaultAPIHost {
		t.Fatalf("unexpected base URL %s", cfg.API.BaseURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoad_MissingCatalogUsesDefault(t *testing.T) {
	t.Setenv("CATALOG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Catalog) != len(DefaultCatalog()) {
		t.Fatalf("expected default catalog, got %d items", len(cfg.Catalog))
	}
}

func TestLoad_MalformedCatalog(t *testing.T) {
	t.Setenv("CATALOG_FILE", writeCatalog(t, "items: [unterminated"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{API: APIConfig{Key: "k"}}
	if err := cfg.Validate(); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}

	cfg.Catalog = []models.CatalogItem{{Name: "a", ASIN: "B0DXPL5XHF"}}
	cfg.API.Key = ""
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}

	cfg.API.Key = "k"
	cfg.Catalog = append(cfg.Catalog, models.CatalogItem{Name: "b", ASIN: "B0DXPL5XHF"})
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duplicate ASIN error")
	}

	cfg.Catalog = []models.CatalogItem{{Name: "c", ASIN: "short"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid ASIN error")
	}
}

func TestDefaultCatalogIsValid(t *testing.T) {
	cfg := &Config{API: APIConfig{Key: "k"}, Catalog: DefaultCatalog()}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
}

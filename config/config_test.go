package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.Areas = []string{"koramangala", "hsr-layout"}
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "negative workers",
			mutate: func(cfg *Config) {
				cfg.Workers = -1
			},
			wantErr: "workers",
		},
		{
			name: "no areas",
			mutate: func(cfg *Config) {
				cfg.Areas = nil
			},
			wantErr: "areas",
		},
		{
			name: "blank area",
			mutate: func(cfg *Config) {
				cfg.Areas = []string{"btm", "  "}
			},
			wantErr: "blank",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = time.Minute
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "broken profile",
			mutate: func(cfg *Config) {
				cfg.Profile.Markers = nil
			},
			wantErr: "marker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigRequiresTarget(t *testing.T) {
	if err := DefaultConfig().Validate(); err == nil {
		t.Fatalf("default config has no base URL or areas and must not validate")
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("config with target should validate, got %v", err)
	}
}

func TestNoneFormatSkipsOutputFile(t *testing.T) {
	cfg := validConfig()
	cfg.OutputFormat = "none"
	cfg.OutputFile = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("none format should not require an output file: %v", err)
	}
}

func TestParseAreas(t *testing.T) {
	got := ParseAreas("koramangala, hsr-layout\n# comment\n\nbtm,,")
	want := []string{"koramangala", "hsr-layout", "btm"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("areas = %v, want %v", got, want)
	}
}

func TestLoadAreasFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "areas.txt")
	if err := os.WriteFile(path, []byte("whitefield\nmarathahalli\n"), 0o644); err != nil {
		t.Fatalf("write areas: %v", err)
	}
	areas, err := LoadAreasFile(path)
	if err != nil {
		t.Fatalf("load areas: %v", err)
	}
	if len(areas) != 2 || areas[0] != "whitefield" {
		t.Fatalf("areas = %v", areas)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}
}

func TestLoadDotEnvSetsVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SCRAPER_TEST_WORKERS=3\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("SCRAPER_TEST_WORKERS") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	n, ok, err := EnvInt("SCRAPER_TEST_WORKERS")
	if err != nil || !ok || n != 3 {
		t.Fatalf("EnvInt = %d, %v, %v", n, ok, err)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("SCRAPER_TEST_BAD_INT", "three")
	if _, _, err := EnvInt("SCRAPER_TEST_BAD_INT"); err == nil {
		t.Fatalf("expected parse error")
	}
}

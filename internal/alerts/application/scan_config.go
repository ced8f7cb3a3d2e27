package application

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TenantScan names one tenant the scheduler scans, optionally zone-scoped.
type TenantScan struct {
	TenantID string `yaml:"tenant_id"`
	ZoneID   string `yaml:"zone_id"`
}

// ScanConfig defines the periodic scan schedule.
type ScanConfig struct {
	IntervalMinutes int          `yaml:"interval_minutes"`
	Tenants         []TenantScan `yaml:"tenants"`
}

// LoadScanConfig loads scan schedule config from yaml or env.
func LoadScanConfig() (ScanConfig, error) {
	cfg := ScanConfig{
		IntervalMinutes: getenvIntDefault("SCAN_INTERVAL_MINUTES", 5),
	}

	if path := os.Getenv("SCAN_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if len(cfg.Tenants) == 0 {
		for _, tenantID := range splitCSV(os.Getenv("SCAN_TENANTS")) {
			cfg.Tenants = append(cfg.Tenants, TenantScan{TenantID: tenantID})
		}
	}
	if cfg.IntervalMinutes <= 0 {
		return cfg, errors.New("scan config: interval must be positive")
	}
	return cfg, nil
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

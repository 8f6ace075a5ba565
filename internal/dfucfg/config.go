// Package dfucfg loads default vendor/product IDs and log directory from an
// optional .env file and environment variables, the same override order the
// rest of the codebase uses for device configuration.
package dfucfg

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds optional defaults substituted when a CLI flag is omitted.
type Config struct {
	VendorID  *uint16
	ProductID *uint16
	LogDir    string
}

var (
	loaded *Config
	once   bool
)

// Load reads .env from the working directory or, if there is none, from the
// nearest ancestor directory holding a go.mod (directories in between are
// not searched), then applies DFU_CLI_VENDOR_ID, DFU_CLI_PRODUCT_ID and DFU_LOG_DIR environment
// variable overrides. Results are cached for the process lifetime.
func Load() *Config {
	if once {
		return loaded
	}
	cfg := &Config{}

	if path := findEnvFile(); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			parseEnvFile(string(data), cfg)
		}
	}

	if v := os.Getenv("DFU_CLI_VENDOR_ID"); v != "" {
		if id, err := parseHexOrDecimal(v); err == nil {
			cfg.VendorID = &id
		}
	}
	if v := os.Getenv("DFU_CLI_PRODUCT_ID"); v != "" {
		if id, err := parseHexOrDecimal(v); err == nil {
			cfg.ProductID = &id
		}
	}
	if v := os.Getenv("DFU_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}

	loaded = cfg
	once = true
	return cfg
}

func parseEnvFile(content string, cfg *Config) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		switch key {
		case "DFU_CLI_VENDOR_ID":
			if id, err := parseHexOrDecimal(value); err == nil {
				cfg.VendorID = &id
			}
		case "DFU_CLI_PRODUCT_ID":
			if id, err := parseHexOrDecimal(value); err == nil {
				cfg.ProductID = &id
			}
		case "DFU_LOG_DIR":
			cfg.LogDir = value
		}
	}
}

func parseHexOrDecimal(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func findEnvFile() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return filepath.Join(cwd, ".env")
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			candidate := filepath.Join(cwd, ".env")
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
			return ""
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}

package config

import (
	"strconv"
	"strings"
)

// ApplyKVOverrides applies free-form -c key=value overrides.
func ApplyKVOverrides(cfg Config, overrides []string) Config {
	if len(overrides) == 0 {
		return cfg
	}
	for _, raw := range overrides {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		switch key {
		case "url":
			cfg.URL = val
		case "user_id", "user":
			cfg.UserID = val
		case "use_rag", "rag":
			if b, err := strconv.ParseBool(val); err == nil {
				cfg.UseRAG = b
			}
		case "timeout_seconds", "timeout":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				cfg.TimeoutSeconds = n
			}
		case "log_path":
			cfg.LogPath = val
		case "log_level":
			cfg.LogLevel = val
		}
	}
	return cfg
}

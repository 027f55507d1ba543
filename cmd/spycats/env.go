package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"spycats/internal/config"
)

const envPrefix = "SPYCATS"

// configKeys are the spycats.yml fields that accept a flag or SPYCATS_<SECTION>_<FIELD> override.
var configKeys = []string{
	"server.addr",
	"server.base_path",
	"server.cors_origins",
	"server.shutdown_timeout",
	"database.driver",
	"database.dsn",
	"database.workspace",
	"breeds.url",
	"breeds.api_key",
	"breeds.timeout",
	"breeds.cache_ttl",
	"breeds.cache_size",
	"log.level",
	"log.format",
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

func bindConfigEnv(v *viper.Viper) {
	for _, key := range configKeys {
		_ = v.BindEnv(key, envName(key))
	}
}

// applyOverrides copies every set override onto cfg. Flags win over the environment.
func applyOverrides(v *viper.Viper, cfg *config.Config) error {
	var errs []string
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if !v.IsSet(key) {
			return
		}
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", key, v.GetString(key)))
			return
		}
		*dst = d
	}

	str("server.addr", &cfg.Server.Addr)
	str("server.base_path", &cfg.Server.BasePath)
	if v.IsSet("server.cors_origins") {
		cfg.Server.CORSOrigins = splitList(v.GetString("server.cors_origins"))
	}
	dur("server.shutdown_timeout", &cfg.Server.ShutdownTimeout)
	str("database.driver", &cfg.Database.Driver)
	str("database.dsn", &cfg.Database.DSN)
	str("database.workspace", &cfg.Database.Workspace)
	str("breeds.url", &cfg.Breeds.URL)
	str("breeds.api_key", &cfg.Breeds.APIKey)
	dur("breeds.timeout", &cfg.Breeds.Timeout)
	dur("breeds.cache_ttl", &cfg.Breeds.CacheTTL)
	if v.IsSet("breeds.cache_size") {
		n, err := strconv.Atoi(v.GetString("breeds.cache_size"))
		if err != nil {
			errs = append(errs, fmt.Sprintf("breeds.cache_size: invalid integer %q", v.GetString("breeds.cache_size")))
		} else {
			cfg.Breeds.CacheSize = n
		}
	}
	str("log.level", &cfg.Log.Level)
	str("log.format", &cfg.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("config overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

// splitList reads "a,b c" as a list of non-empty entries.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}

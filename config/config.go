// Package config loads service configuration from a YAML file with
// environment-variable overrides. A .env file, when present, is loaded
// first via godotenv so local development matches deployed behavior.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides
// (e.g. SCRIBE_LOGGING_LEVEL overrides logging.level).
const EnvPrefix = "SCRIBE"

// LoaderConfig controls where configuration is read from.
type LoaderConfig struct {
	// ConfigFile is an explicit config file path. Empty means search.
	ConfigFile string
	// EnvFile is an explicit .env path. Empty means search.
	EnvFile string
	// Defaults are applied before file and environment values.
	Defaults map[string]any
}

// Load populates cfg for the named service.
// Resolution order: defaults < config file < environment variables.
// A missing config file is not an error; environment-only setups are valid.
func Load(serviceName string, cfg any, opts LoaderConfig) error {
	if envFile := resolveEnvFile(opts.EnvFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("config: load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, val := range opts.Defaults {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvOverrides(v)

	configFile := resolveConfigFile(serviceName, opts.ConfigFile)
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: unmarshal for %s: %w", serviceName, err)
	}
	return nil
}

// bindEnvOverrides registers every SCRIBE_* environment variable with
// viper. AutomaticEnv alone only resolves keys viper already knows from
// defaults or the config file, so env-only keys would be dropped on
// Unmarshal without this.
func bindEnvOverrides(v *viper.Viper) {
	prefix := EnvPrefix + "_"
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, prefix))
		for _, variant := range envKeyVariants(strings.Split(key, "_")) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants returns every nested-key reading of an environment
// variable name: each underscore may separate config sections or belong
// to one key, so SCRIBE_RATE_LIMIT_REQUESTS covers both
// rate.limit.requests and rate_limit.requests.
func envKeyVariants(parts []string) []string {
	if len(parts) <= 1 {
		return parts
	}
	rest := envKeyVariants(parts[1:])
	variants := make([]string, 0, 2*len(rest))
	for _, r := range rest {
		variants = append(variants, parts[0]+"."+r, parts[0]+"_"+r)
	}
	return variants
}

func resolveConfigFile(serviceName, explicit string) string {
	if explicit != "" {
		return explicit
	}
	candidates := []string{
		fmt.Sprintf("./cmd/%s/config.yml", serviceName),
		"./config/config.yml",
		"./config.yml",
	}
	for _, path := range candidates {
		if exists(path) {
			return path
		}
	}
	return ""
}

func resolveEnvFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if exists(".env") {
		return ".env"
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

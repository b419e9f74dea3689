package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPassword is the environment variable holding the login password.
const EnvPassword = "ROUTEROS_PASSWORD"

// LoadFile reads path over the settings already in cfg. Durations are
// written as Go duration strings ("90s", "3m"). Unknown keys are rejected.
func LoadFile(cfg *Config, path string) error {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	if _, ok := raw["password"]; ok {
		return fmt.Errorf("config file must not contain a password, use ROUTEROS_PASSWORD or --password")
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cfg,
		ErrorUnused: true,
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables. Unset or invalid
// values leave the current setting unchanged.
//
// Environment Variables:
//   - ROUTEROS_USERNAME
//   - ROUTEROS_PASSWORD
//   - ROUTEROS_PORT
//   - ROUTEROS_TIMEOUT (seconds or duration)
//   - ROUTEROS_SSH_RETRIES
//   - ROUTEROS_REBOOT_TIMEOUT (seconds or duration)
//   - ROUTEROS_PROBE (icmp or tcp)
//   - ROUTEROS_PARALLEL
func ApplyEnv(cfg *Config) {
	cfg.Username = parseString("ROUTEROS_USERNAME", cfg.Username)
	cfg.Password = parseString(EnvPassword, cfg.Password)
	cfg.Port = parseInt("ROUTEROS_PORT", cfg.Port)
	cfg.Timeout = parseSeconds("ROUTEROS_TIMEOUT", cfg.Timeout)
	cfg.SSHRetries = parseInt("ROUTEROS_SSH_RETRIES", cfg.SSHRetries)
	cfg.RebootTimeout = parseSeconds("ROUTEROS_REBOOT_TIMEOUT", cfg.RebootTimeout)
	cfg.Probe = parseString("ROUTEROS_PROBE", cfg.Probe)
	cfg.Parallel = parseInt("ROUTEROS_PARALLEL", cfg.Parallel)
}

func parseString(envVar, defaultVal string) string {
	if val, ok := os.LookupEnv(envVar); ok {
		return val
	}
	return defaultVal
}

// parseSeconds accepts a bare number of seconds or a duration string.
func parseSeconds(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

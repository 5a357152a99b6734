package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens and passwords can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	if cfg.Integrations.CRM != nil {
		cfg.Integrations.CRM.Token = expandEnvVars(cfg.Integrations.CRM.Token)
	}
	if cfg.Integrations.DigitalOcean != nil {
		cfg.Integrations.DigitalOcean.Token = expandEnvVars(cfg.Integrations.DigitalOcean.Token)
	}
	if cfg.Integrations.IMAP != nil {
		cfg.Integrations.IMAP.Password = expandEnvVars(cfg.Integrations.IMAP.Password)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 8080
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if len(cfg.Gateway.AllowedOrigins) == 0 {
		cfg.Gateway.AllowedOrigins = []string{"*"}
	}
	if cfg.Gateway.HeartbeatMs == 0 {
		cfg.Gateway.HeartbeatMs = 5000
	}
	if cfg.Gateway.PingMs == 0 {
		cfg.Gateway.PingMs = 1000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	d := &cfg.Agents.Defaults
	if d.SurveyIntervalMs == 0 {
		d.SurveyIntervalMs = 15000
	}
	if d.TaskIntervalMs == 0 {
		d.TaskIntervalMs = 10000
	}
	if d.RetryAttempts == 0 {
		d.RetryAttempts = 3
	}
	if d.CooldownMs == 0 {
		d.CooldownMs = 1000
	}

	for i := range cfg.Agents.List {
		e := &cfg.Agents.List[i]
		if e.Name == "" {
			e.Name = e.ID
		}
		if e.Source == "" {
			e.Source = "synthetic"
		}
		if e.SurveyIntervalMs == 0 {
			e.SurveyIntervalMs = d.SurveyIntervalMs
		}
		if e.TaskIntervalMs == 0 {
			e.TaskIntervalMs = d.TaskIntervalMs
		}
		if e.RetryAttempts == 0 {
			e.RetryAttempts = d.RetryAttempts
		}
	}

	if cfg.Integrations.IMAP != nil && cfg.Integrations.IMAP.Mailbox == "" {
		cfg.Integrations.IMAP.Mailbox = "INBOX"
	}
	if cfg.Integrations.CRM != nil && cfg.Integrations.CRM.TimeoutMs == 0 {
		cfg.Integrations.CRM.TimeoutMs = 10000
	}
}

// applyEnvOverrides reads THREEAI_* environment variables and overrides
// config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("THREEAI_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("THREEAI_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("THREEAI_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

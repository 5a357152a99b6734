package config

import (
	"fmt"
	"slices"

	"github.com/AndrewDell/3AI/internal/domain"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind is custom",
		})
	}
	if cfg.Gateway.HeartbeatMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.heartbeatMs",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Gateway.HeartbeatMs),
		})
	}
	if cfg.Gateway.PingMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.pingMs",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Gateway.PingMs),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	// Agent fleet validation
	validSources := []string{"synthetic", "crm", "digitalocean", "imap"}
	seen := map[string]bool{}
	for i, e := range cfg.Agents.List {
		path := fmt.Sprintf("agents.list[%d]", i)

		if e.ID == "" {
			issues = append(issues, ValidationIssue{Path: path + ".id", Message: "id is required"})
		} else if seen[e.ID] {
			issues = append(issues, ValidationIssue{
				Path:    path + ".id",
				Message: fmt.Sprintf("duplicate agent id %q", e.ID),
			})
		}
		seen[e.ID] = true

		if !domain.Domain(e.Domain).Valid() {
			issues = append(issues, ValidationIssue{
				Path:    path + ".domain",
				Message: fmt.Sprintf("must be one of %v, got %q", domain.Domains(), e.Domain),
			})
		}
		if e.Source != "" && !slices.Contains(validSources, e.Source) {
			issues = append(issues, ValidationIssue{
				Path:    path + ".source",
				Message: fmt.Sprintf("must be one of %v, got %q", validSources, e.Source),
			})
		}
		if e.SurveyIntervalMs < 0 {
			issues = append(issues, ValidationIssue{
				Path:    path + ".surveyIntervalMs",
				Message: fmt.Sprintf("must not be negative, got %d", e.SurveyIntervalMs),
			})
		}
		if e.TaskIntervalMs < 0 {
			issues = append(issues, ValidationIssue{
				Path:    path + ".taskIntervalMs",
				Message: fmt.Sprintf("must not be negative, got %d", e.TaskIntervalMs),
			})
		}
		if e.RetryAttempts < 0 {
			issues = append(issues, ValidationIssue{
				Path:    path + ".retryAttempts",
				Message: fmt.Sprintf("must not be negative, got %d", e.RetryAttempts),
			})
		}

		// Sources that need an integration section must have one.
		switch e.Source {
		case "crm":
			if cfg.Integrations.CRM == nil || cfg.Integrations.CRM.BaseURL == "" {
				issues = append(issues, ValidationIssue{
					Path:    path + ".source",
					Message: "crm source requires integrations.crm.baseUrl",
				})
			}
		case "digitalocean":
			if cfg.Integrations.DigitalOcean == nil || cfg.Integrations.DigitalOcean.Token == "" {
				issues = append(issues, ValidationIssue{
					Path:    path + ".source",
					Message: "digitalocean source requires integrations.digitalocean.token",
				})
			}
		case "imap":
			if cfg.Integrations.IMAP == nil || cfg.Integrations.IMAP.Address == "" {
				issues = append(issues, ValidationIssue{
					Path:    path + ".source",
					Message: "imap source requires integrations.imap.address",
				})
			}
		}
	}

	// IMAP validation (only if configured)
	if im := cfg.Integrations.IMAP; im != nil && im.Address != "" && im.Username == "" {
		issues = append(issues, ValidationIssue{
			Path:    "integrations.imap.username",
			Message: "username is required",
		})
	}

	return issues
}

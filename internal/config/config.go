package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied, including the
// five-agent demo fleet the platform boots with out of the box.
func Defaults() Config {
	cfg := Config{
		Gateway: GatewayConfig{
			Port:           8080,
			Bind:           "loopback",
			AllowedOrigins: []string{"*"},
			HeartbeatMs:    5000,
			PingMs:         1000,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				SurveyIntervalMs: 15000,
				TaskIntervalMs:   10000,
				RetryAttempts:    3,
				CooldownMs:       1000,
			},
			List: []AgentEntry{
				{ID: "sales1", Name: "Sales Pipeline", Domain: "sales", AutoStart: true},
				{ID: "marketing1", Name: "Campaign Automation", Domain: "marketing", AutoStart: true},
				{ID: "success1", Name: "Customer Success", Domain: "success", AutoStart: true},
				{ID: "executive1", Name: "Executive Assistant", Domain: "executive", AutoStart: true},
				{ID: "operations1", Name: "Operations", Domain: "operations", AutoStart: true},
			},
		},
	}
	applyDefaults(&cfg)
	return cfg
}

package config

// Config is the root configuration for the 3AI platform.
type Config struct {
	Gateway      GatewayConfig      `yaml:"gateway,omitempty"`
	Logging      LoggingConfig      `yaml:"logging,omitempty"`
	Agents       AgentsConfig       `yaml:"agents,omitempty"`
	Integrations IntegrationsConfig `yaml:"integrations,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
	HeartbeatMs    int      `yaml:"heartbeatMs,omitempty"` // full-state broadcast period
	PingMs         int      `yaml:"pingMs,omitempty"`      // websocket ping period
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level   string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File    string `yaml:"file,omitempty"`
	Console bool   `yaml:"console,omitempty"`
}

// AgentsConfig defines agent defaults and the agent fleet.
type AgentsConfig struct {
	Defaults AgentDefaults `yaml:"defaults,omitempty"`
	List     []AgentEntry  `yaml:"list,omitempty"`
}

// AgentDefaults fills agent entries that leave timing fields unset.
type AgentDefaults struct {
	SurveyIntervalMs int `yaml:"surveyIntervalMs,omitempty"`
	TaskIntervalMs   int `yaml:"taskIntervalMs,omitempty"`
	RetryAttempts    int `yaml:"retryAttempts,omitempty"`
	CooldownMs       int `yaml:"cooldownMs,omitempty"` // restart stop→start gap
}

// AgentEntry defines a single agent.
type AgentEntry struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name,omitempty"`
	Domain           string `yaml:"domain"`
	Source           string `yaml:"source,omitempty"` // "synthetic" | "crm" | "digitalocean" | "imap"
	AutoStart        bool   `yaml:"autoStart,omitempty"`
	SurveyIntervalMs int    `yaml:"surveyIntervalMs,omitempty"`
	TaskIntervalMs   int    `yaml:"taskIntervalMs,omitempty"`
	RetryAttempts    int    `yaml:"retryAttempts,omitempty"`
}

// IntegrationsConfig holds credentials for external data sources. A nil
// section means the integration is not configured and agents referencing it
// fall back to the synthetic source.
type IntegrationsConfig struct {
	CRM          *CRMConfig          `yaml:"crm,omitempty"`
	DigitalOcean *DigitalOceanConfig `yaml:"digitalocean,omitempty"`
	IMAP         *IMAPConfig         `yaml:"imap,omitempty"`
}

// CRMConfig points at the external CRM REST API.
type CRMConfig struct {
	BaseURL   string `yaml:"baseUrl"`
	Token     string `yaml:"token,omitempty"` // supports ${ENV_VAR}
	TimeoutMs int    `yaml:"timeoutMs,omitempty"`
}

// DigitalOceanConfig configures the infrastructure probe.
type DigitalOceanConfig struct {
	Token string `yaml:"token,omitempty"` // supports ${ENV_VAR}
}

// IMAPConfig configures the executive inbox source.
type IMAPConfig struct {
	Address  string `yaml:"address"` // host:port
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"` // supports ${ENV_VAR}
	Mailbox  string `yaml:"mailbox,omitempty"`
	TLS      bool   `yaml:"tls,omitempty"`
}

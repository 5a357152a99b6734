package datasource

import (
	"github.com/AndrewDell/3AI/internal/config"
	"github.com/AndrewDell/3AI/internal/domain"
	"github.com/AndrewDell/3AI/internal/logging"
)

// ForAgent picks the data source for one configured agent. Agents pointing
// at an integration that is not configured fall back to the synthetic source
// so the fleet always comes up.
func ForAgent(entry config.AgentEntry, integrations config.IntegrationsConfig, log *logging.Logger) Source {
	d := domain.Domain(entry.Domain)

	switch entry.Source {
	case "crm":
		if integrations.CRM != nil && integrations.CRM.BaseURL != "" {
			return NewCRMSource(d, *integrations.CRM)
		}
	case "digitalocean":
		if integrations.DigitalOcean != nil && integrations.DigitalOcean.Token != "" {
			return NewDropletSource(*integrations.DigitalOcean)
		}
	case "imap":
		if integrations.IMAP != nil && integrations.IMAP.Address != "" {
			return NewInboxSource(*integrations.IMAP)
		}
	case "", "synthetic":
		return NewSynthetic(d, 0)
	}

	log.Warn().
		Str("agent", entry.ID).
		Str("source", entry.Source).
		Msg("source not configured, falling back to synthetic")
	return NewSynthetic(d, 0)
}

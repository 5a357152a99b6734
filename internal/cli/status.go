package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AndrewDell/3AI/internal/config"
	"github.com/AndrewDell/3AI/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show 3AI status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("3AI %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			// Load config
			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}

			// Gateway config
			fmt.Printf("Gateway: port=%d bind=%s heartbeat=%dms\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.HeartbeatMs)
			probeGateway(cfg.Gateway.Port)

			// Agent fleet
			if len(cfg.Agents.List) > 0 {
				for _, a := range cfg.Agents.List {
					source := a.Source
					if source == "" {
						source = "synthetic"
					}
					fmt.Printf("Agent:   id=%s domain=%s source=%s autostart=%v\n",
						a.ID, a.Domain, source, a.AutoStart)
				}
			} else {
				fmt.Println("Agent:   (none configured)")
			}

			// Integrations
			fmt.Printf("CRM:     %s\n", configured(cfg.Integrations.CRM != nil))
			fmt.Printf("DO:      %s\n", configured(cfg.Integrations.DigitalOcean != nil))
			fmt.Printf("IMAP:    %s\n", configured(cfg.Integrations.IMAP != nil))

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

// probeGateway reports whether a gateway is answering on the configured port.
func probeGateway(port int) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil {
		fmt.Println("Running: no")
		return
	}
	defer resp.Body.Close()

	var health struct {
		Status  string `json:"status"`
		Agents  int    `json:"agents"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || health.Status != "ok" {
		fmt.Println("Running: no")
		return
	}
	fmt.Printf("Running: yes (agents=%d clients=%d)\n", health.Agents, health.Clients)
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "(not configured)"
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/AndrewDell/3AI/internal/domain"
)

const commandReplyTimeout = 10 * time.Second

var gatewayURL string

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect and control the agent fleet on a running gateway",
	}

	cmd.PersistentFlags().StringVar(&gatewayURL, "url", "http://127.0.0.1:8080", "gateway base URL")

	cmd.AddCommand(newAgentsListCmd())
	cmd.AddCommand(newAgentsWatchCmd())
	cmd.AddCommand(newAgentsMetricsCmd())
	cmd.AddCommand(newAgentsCommandCmd("start", "Start an agent"))
	cmd.AddCommand(newAgentsCommandCmd("stop", "Stop an agent"))
	cmd.AddCommand(newAgentsCommandCmd("restart", "Restart an agent"))
	cmd.AddCommand(newAgentsCommandCmd("simulate", "Trigger one immediate work step"))

	return cmd
}

// agentListing mirrors the gateway's agent view for display.
type agentListing struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Domain  string         `json:"domain"`
	Source  string         `json:"source"`
	Status  string         `json:"status"`
	Metrics map[string]any `json:"metrics"`
}

func newAgentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all agents and their current metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dialGateway()
			if err != nil {
				return err
			}
			defer conn.Close()

			// The connect snapshot carries the whole fleet.
			conn.SetReadDeadline(time.Now().Add(commandReplyTimeout))
			var frame wireFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return fmt.Errorf("connection lost: %w", err)
			}
			if frame.Type != "metrics" {
				return fmt.Errorf("unexpected first frame %q", frame.Type)
			}

			var payload struct {
				Metrics map[string]agentListing `json:"metrics"`
			}
			if err := json.Unmarshal(frame.Data, &payload); err != nil {
				return fmt.Errorf("failed to decode agent list: %w", err)
			}

			ids := make([]string, 0, len(payload.Metrics))
			for id := range payload.Metrics {
				ids = append(ids, id)
			}
			slices.Sort(ids)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDOMAIN\tSOURCE\tSTATUS\tSUCCESS\tERRORS")
			for _, id := range ids {
				a := payload.Metrics[id]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.1f%%\t%.0f\n",
					a.ID, a.Name, a.Domain, a.Source, a.Status,
					metricNumber(a.Metrics, "successRate"),
					metricNumber(a.Metrics, "errorCount"))
			}
			return w.Flush()
		},
	}
}

func newAgentsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream live agent events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dialGateway()
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				conn.Close()
			}()

			for {
				var frame wireFrame
				if err := conn.ReadJSON(&frame); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("connection lost: %w", err)
				}
				printFrame(frame)
			}
		},
	}
}

func newAgentsMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <agent-id>",
		Short: "Fetch one agent's full metrics document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := sendCommand(domain.CommandGetMetrics, args[0])
			if err != nil {
				return err
			}

			var res struct {
				Status  string          `json:"status"`
				Metrics json.RawMessage `json:"metrics"`
			}
			if err := json.Unmarshal(frame.Data, &res); err != nil {
				return fmt.Errorf("failed to decode metrics: %w", err)
			}

			pretty, err := json.MarshalIndent(json.RawMessage(res.Metrics), "", "  ")
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s)\n%s\n", args[0], res.Status, pretty)
			return nil
		},
	}
}

func newAgentsCommandCmd(command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   command + " <agent-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := sendCommand(command, args[0])
			if err != nil {
				return err
			}

			var res struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(frame.Data, &res); err != nil {
				return fmt.Errorf("failed to decode command result: %w", err)
			}
			if res.Status != "" {
				fmt.Printf("%s: %s\n", args[0], res.Status)
			} else {
				fmt.Printf("%s: ok\n", args[0])
			}
			return nil
		},
	}
}

// wireFrame is the server→client envelope as seen by the CLI.
type wireFrame struct {
	Type      string          `json:"type"`
	AgentID   string          `json:"agentId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// dialGateway opens a WebSocket to the gateway named by --url.
func dialGateway() (*websocket.Conn, error) {
	u, err := url.Parse(gatewayURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL %q: %w", gatewayURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("gateway not reachable at %s: %w", gatewayURL, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	return conn, nil
}

// sendCommand issues one command and waits for its reply, skipping broadcast
// frames that arrive in between.
func sendCommand(command, agentID string) (wireFrame, error) {
	conn, err := dialGateway()
	if err != nil {
		return wireFrame{}, err
	}
	defer conn.Close()

	// First frame is always the connect snapshot.
	if _, _, err := conn.ReadMessage(); err != nil {
		return wireFrame{}, fmt.Errorf("connection lost: %w", err)
	}

	cmd := domain.Command{Command: command, AgentID: agentID}
	if err := conn.WriteJSON(cmd); err != nil {
		return wireFrame{}, fmt.Errorf("failed to send command: %w", err)
	}

	deadline := time.Now().Add(commandReplyTimeout)
	conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var frame wireFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return wireFrame{}, fmt.Errorf("connection lost: %w", err)
		}

		switch frame.Type {
		case "command_result":
			return frame, nil
		case "error":
			// Broadcast agent errors carry an agentId; rejections of our
			// own command do not.
			if frame.AgentID != "" {
				continue
			}
			var payload struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(frame.Data, &payload); err == nil && payload.Message != "" {
				return wireFrame{}, fmt.Errorf("gateway rejected command: %s", payload.Message)
			}
			return wireFrame{}, fmt.Errorf("gateway rejected command")
		}
	}
	return wireFrame{}, fmt.Errorf("timed out waiting for %s reply", command)
}

// printFrame renders one event as a log line for watch mode.
func printFrame(frame wireFrame) {
	ts := time.UnixMilli(frame.Timestamp).Format("15:04:05")

	switch frame.Type {
	case "metrics":
		var payload struct {
			Metrics map[string]json.RawMessage `json:"metrics"`
		}
		if err := json.Unmarshal(frame.Data, &payload); err == nil {
			fmt.Printf("%s  metrics snapshot (%d agents)\n", ts, len(payload.Metrics))
		}
	case "status_change":
		var change struct {
			From string `json:"from"`
			To   string `json:"to"`
		}
		if err := json.Unmarshal(frame.Data, &change); err == nil {
			fmt.Printf("%s  %-14s %s -> %s\n", ts, frame.AgentID, change.From, change.To)
		}
	case "metrics_update":
		fmt.Printf("%s  %-14s metrics update\n", ts, frame.AgentID)
	case "error":
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(frame.Data, &payload); err == nil {
			fmt.Printf("%s  %-14s error: %s\n", ts, frame.AgentID, payload.Message)
		}
	default:
		fmt.Printf("%s  %-14s %s\n", ts, frame.AgentID, frame.Type)
	}
}

func metricNumber(metrics map[string]any, key string) float64 {
	if v, ok := metrics[key].(float64); ok {
		return v
	}
	return 0
}

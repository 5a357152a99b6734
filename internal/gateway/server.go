package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AndrewDell/3AI/internal/agent"
	"github.com/AndrewDell/3AI/internal/config"
	"github.com/AndrewDell/3AI/internal/domain"
	"github.com/AndrewDell/3AI/internal/logging"
	"github.com/AndrewDell/3AI/internal/version"
)

const (
	shutdownTimeout = 10 * time.Second
	commandTimeout  = 30 * time.Second

	defaultHeartbeat = 5 * time.Second
	defaultPing      = time.Second
)

// Server is the 3AI gateway HTTP + WebSocket server. It fans agent events
// out to connected observers and turns inbound JSON commands into registry
// calls.
type Server struct {
	cfg       config.Config
	registry  *agent.Registry
	log       *logging.Logger
	clients   *ClientRegistry
	upgrader  websocket.Upgrader
	version   string
	startedAt time.Time

	httpServer *http.Server
	addr       string
}

// New creates a gateway server. Agent events start flowing to connected
// clients immediately; Start only binds the listener.
func New(cfg config.Config, registry *agent.Registry, log *logging.Logger) *Server {
	gwLog := log.Sub("gateway")
	s := &Server{
		cfg:       cfg,
		registry:  registry,
		log:       gwLog,
		clients:   NewClientRegistry(gwLog),
		version:   version.Version,
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
		},
	}
	registry.Events().Subscribe(func(e domain.Event) {
		s.clients.Broadcast(eventMessage(e))
	})
	return s
}

// checkWebSocketOrigin returns an origin check for the upgrader. Requests
// without an Origin header (CLI clients, tests) are always allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

// resolveBindAddr maps the configured bind mode to a listen address.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Addr returns the listener address once Start has bound it.
func (s *Server) Addr() string {
	return s.addr
}

// Clients returns the connected-observer registry.
func (s *Server) Clients() *ClientRegistry {
	return s.clients
}

// Start binds the listener and serves until ctx is canceled. It blocks.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)

	handler := withMiddleware(mux, s.log, s.cfg.Gateway.AllowedOrigins)

	addr := resolveBindAddr(s.cfg.Gateway)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.addr = ln.Addr().String()

	s.log.Info().
		Str("addr", s.addr).
		Int("agents", s.registry.Count()).
		Msg("gateway listening")

	go s.heartbeatLoop(ctx)

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway")
		s.clients.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("gateway shutdown error")
		}
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server error: %w", err)
	}
	return nil
}

// heartbeatLoop pushes a full metrics snapshot to every client on a fixed
// cadence. Nothing is sent while no one is connected.
func (s *Server) heartbeatLoop(ctx context.Context) {
	every := time.Duration(s.cfg.Gateway.HeartbeatMs) * time.Millisecond
	if every <= 0 {
		every = defaultHeartbeat
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.clients.Count() == 0 {
				continue
			}
			s.clients.Broadcast(s.metricsMessage())
		}
	}
}

// agentView projects one agent into its wire shape.
func agentView(a *agent.Agent) AgentView {
	m := a.Metrics()
	return AgentView{
		ID:      a.ID(),
		Name:    a.Name(),
		Domain:  a.Domain(),
		Source:  a.SourceName(),
		Status:  m.Base().Status,
		Metrics: m,
	}
}

// metricsMessage builds the full-fleet snapshot sent on connect and on each
// heartbeat.
func (s *Server) metricsMessage() Message {
	views := make(map[string]AgentView)
	for _, a := range s.registry.List() {
		views[a.ID()] = agentView(a)
	}
	return NewMessage(TypeMetrics, "", MetricsPayload{Metrics: views})
}

// handleWebSocket upgrades the connection and runs its read loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	pingEvery := time.Duration(s.cfg.Gateway.PingMs) * time.Millisecond
	if pingEvery <= 0 {
		pingEvery = defaultPing
	}

	client := NewClient(conn, pingEvery, s.log.Sub("ws"))

	// Queue the snapshot before the client joins the broadcast set so it
	// precedes any delta on the wire.
	if err := client.Send(s.metricsMessage()); err != nil {
		s.log.Warn().Err(err).Msg("failed to queue initial metrics")
		client.Close()
		return
	}
	go client.writePump()

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.readLoop(r.Context(), client)
}

// readLoop consumes inbound frames until the peer goes away.
func (s *Server) readLoop(ctx context.Context, client *Client) {
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}
		s.dispatch(ctx, client, data)
	}
}

// dispatch parses one inbound command and replies to the sender. Errors go
// back to the issuing client only; successful commands additionally emit
// agent events through the broadcast path.
func (s *Server) dispatch(ctx context.Context, client *Client, data []byte) {
	var cmd domain.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.sendError(client, "invalid JSON message")
		return
	}
	if strings.TrimSpace(cmd.Command) == "" {
		s.sendError(client, "command is required")
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	res, err := s.registry.ExecuteCommand(cmdCtx, cmd)
	if err != nil {
		s.log.Debug().
			Err(err).
			Str("command", cmd.Command).
			Str("agent", cmd.AgentID).
			Msg("command rejected")
		s.sendError(client, err.Error())
		return
	}

	if err := client.Send(NewMessage(TypeCommandResult, cmd.AgentID, res)); err != nil {
		s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("failed to send command result")
	}
}

func (s *Server) sendError(client *Client, msg string) {
	if err := client.Send(NewMessage(TypeError, "", ErrorPayload{Message: msg})); err != nil {
		s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("failed to send error")
	}
}

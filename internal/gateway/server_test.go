package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewDell/3AI/internal/agent"
	"github.com/AndrewDell/3AI/internal/config"
	"github.com/AndrewDell/3AI/internal/domain"
	"github.com/AndrewDell/3AI/internal/logging"
	"github.com/AndrewDell/3AI/internal/store"
)

// wireMessage mirrors the server→client envelope with raw data for
// per-test decoding.
type wireMessage struct {
	Type      string          `json:"type"`
	AgentID   string          `json:"agentId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func testServer(t *testing.T) (*Server, *agent.Registry, *httptest.Server) {
	t.Helper()

	cfg := config.Defaults()
	log := logging.New(io.Discard, "silent")

	registry, err := agent.FromConfig(&cfg, store.NewMemorySnapshotStore(), log)
	require.NoError(t, err)
	t.Cleanup(registry.StopAll)

	srv := New(cfg, registry, log)

	mux := http.NewServeMux()
	srv.registerHTTPRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return srv, registry, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWire(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg wireMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHealthEndpoint(t *testing.T) {
	_, _, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "3ai", health.Service)
	assert.Equal(t, 5, health.Agents)
	assert.Equal(t, 0, health.Clients)
	assert.Greater(t, health.Timestamp, int64(0))
}

func TestUnknownRouteReturns404(t *testing.T) {
	_, _, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "not found", body["error"])
	assert.Equal(t, "/nope", body["path"])
}

func TestListAgents(t *testing.T) {
	_, _, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/api/agents")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []AgentView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 5)

	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
		assert.Equal(t, domain.StatusIdle, v.Status)
	}
	assert.Contains(t, ids, "sales1")
	assert.Contains(t, ids, "executive1")
}

func TestGetAgent(t *testing.T) {
	_, _, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/api/agents/sales1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view struct {
		ID      string          `json:"id"`
		Domain  string          `json:"domain"`
		Status  string          `json:"status"`
		Metrics json.RawMessage `json:"metrics"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "sales1", view.ID)
	assert.Equal(t, "sales", view.Domain)
	assert.Equal(t, "idle", view.Status)
	assert.NotEmpty(t, view.Metrics)

	missing, err := http.Get(ts.URL + "/api/agents/ghost")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestConnectSendsSnapshotFirst(t *testing.T) {
	_, _, ts := testServer(t)

	conn := dialWS(t, ts)

	msg := readWire(t, conn)
	require.Equal(t, TypeMetrics, msg.Type)
	assert.Empty(t, msg.AgentID)
	assert.Greater(t, msg.Timestamp, int64(0))

	var payload struct {
		Metrics map[string]struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	require.Len(t, payload.Metrics, 5)
	for id, v := range payload.Metrics {
		assert.Equal(t, id, v.ID)
		assert.Equal(t, "idle", v.Status)
	}
}

func TestCommandRoundTrip(t *testing.T) {
	_, registry, ts := testServer(t)

	conn := dialWS(t, ts)
	readWire(t, conn) // initial snapshot

	require.NoError(t, conn.WriteJSON(map[string]string{
		"command": "start",
		"agentId": "sales1",
	}))

	// The transition broadcast is queued during command execution, so it
	// lands before the reply.
	change := readWire(t, conn)
	require.Equal(t, "status_change", change.Type)
	assert.Equal(t, "sales1", change.AgentID)

	var transition struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	require.NoError(t, json.Unmarshal(change.Data, &transition))
	assert.Equal(t, "idle", transition.From)
	assert.Equal(t, "active", transition.To)

	result := readWire(t, conn)
	require.Equal(t, TypeCommandResult, result.Type)
	assert.Equal(t, "sales1", result.AgentID)

	var res struct {
		Command string `json:"command"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(result.Data, &res))
	assert.Equal(t, "start", res.Command)
	assert.Equal(t, "active", res.Status)

	a, err := registry.Get("sales1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, a.Status())

	require.NoError(t, conn.WriteJSON(map[string]string{
		"command": "stop",
		"agentId": "sales1",
	}))
	change = readWire(t, conn)
	require.Equal(t, "status_change", change.Type)
	result = readWire(t, conn)
	require.Equal(t, TypeCommandResult, result.Type)
	assert.Equal(t, domain.StatusIdle, a.Status())
}

func TestGetMetricsCommand(t *testing.T) {
	_, _, ts := testServer(t)

	conn := dialWS(t, ts)
	readWire(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"command": "getMetrics",
		"agentId": "executive1",
	}))

	msg := readWire(t, conn)
	require.Equal(t, TypeCommandResult, msg.Type)
	assert.Equal(t, "executive1", msg.AgentID)

	var res struct {
		Status  string          `json:"status"`
		Metrics json.RawMessage `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &res))
	assert.Equal(t, "idle", res.Status)
	assert.NotEmpty(t, res.Metrics)
}

func TestBadCommandsErrorOnlyToSender(t *testing.T) {
	_, _, ts := testServer(t)

	sender := dialWS(t, ts)
	bystander := dialWS(t, ts)
	readWire(t, sender)
	readWire(t, bystander)

	cases := []struct {
		payload string
		want    string
	}{
		{"not json", "invalid JSON message"},
		{`{"command":""}`, "command is required"},
		{`{"command":"start","agentId":"ghost"}`, "agent not found"},
		{`{"command":"selfdestruct","agentId":"sales1"}`, "unknown command"},
	}
	for _, tc := range cases {
		require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(tc.payload)))

		msg := readWire(t, sender)
		require.Equal(t, TypeError, msg.Type, "payload %q", tc.payload)
		assert.Empty(t, msg.AgentID)

		var payload ErrorPayload
		require.NoError(t, json.Unmarshal(msg.Data, &payload))
		assert.Contains(t, payload.Message, tc.want)
	}

	// The bystander saw none of it: its next frame is the transition from
	// a valid command, not an error.
	require.NoError(t, sender.WriteJSON(map[string]string{
		"command": "start",
		"agentId": "marketing1",
	}))
	msg := readWire(t, bystander)
	assert.Equal(t, "status_change", msg.Type)
	assert.Equal(t, "marketing1", msg.AgentID)
}

func TestAgentEventsFanOutToAllClients(t *testing.T) {
	_, registry, ts := testServer(t)

	first := dialWS(t, ts)
	second := dialWS(t, ts)
	readWire(t, first)
	readWire(t, second)

	a, err := registry.Get("operations1")
	require.NoError(t, err)
	a.Start()

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readWire(t, conn)
		assert.Equal(t, "status_change", msg.Type)
		assert.Equal(t, "operations1", msg.AgentID)
	}
}

func TestHeartbeatRepeatsSnapshot(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gateway.HeartbeatMs = 20
	log := logging.New(io.Discard, "silent")

	registry, err := agent.FromConfig(&cfg, store.NewMemorySnapshotStore(), log)
	require.NoError(t, err)
	t.Cleanup(registry.StopAll)

	srv := New(cfg, registry, log)
	mux := http.NewServeMux()
	srv.registerHTTPRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.heartbeatLoop(ctx)

	conn := dialWS(t, ts)
	readWire(t, conn) // connect snapshot

	msg := readWire(t, conn)
	assert.Equal(t, TypeMetrics, msg.Type)
	msg = readWire(t, conn)
	assert.Equal(t, TypeMetrics, msg.Type)
}

func TestDisconnectLeavesAgentsRunning(t *testing.T) {
	srv, registry, ts := testServer(t)

	conn := dialWS(t, ts)
	readWire(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"command": "start",
		"agentId": "success1",
	}))
	readWire(t, conn) // status_change
	readWire(t, conn) // command_result

	conn.Close()
	require.Eventually(t, func() bool {
		return srv.Clients().Count() == 0
	}, 2*time.Second, 10*time.Millisecond)

	a, err := registry.Get("success1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, a.Status())
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.GatewayConfig
		want string
	}{
		{"loopback", config.GatewayConfig{Bind: "loopback", Port: 8080}, "127.0.0.1:8080"},
		{"lan", config.GatewayConfig{Bind: "lan", Port: 8080}, "0.0.0.0:8080"},
		{"auto", config.GatewayConfig{Bind: "auto", Port: 9090}, "0.0.0.0:9090"},
		{"custom", config.GatewayConfig{Bind: "custom", CustomBindHost: "10.1.2.3", Port: 7070}, "10.1.2.3:7070"},
		{"custom without host", config.GatewayConfig{Bind: "custom", Port: 7070}, "0.0.0.0:7070"},
		{"unknown falls back to loopback", config.GatewayConfig{Bind: "wat", Port: 8080}, "127.0.0.1:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveBindAddr(tt.cfg))
		})
	}
}

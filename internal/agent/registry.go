package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/AndrewDell/3AI/internal/bus"
	"github.com/AndrewDell/3AI/internal/config"
	"github.com/AndrewDell/3AI/internal/datasource"
	"github.com/AndrewDell/3AI/internal/domain"
	"github.com/AndrewDell/3AI/internal/logging"
	"github.com/AndrewDell/3AI/internal/store"
)

var (
	// ErrDuplicateID is returned by Create when the id is already taken.
	ErrDuplicateID = errors.New("agent id already registered")

	// ErrAgentNotFound is returned when no agent has the requested id.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrUnknownCommand is returned for commands outside the lifecycle set.
	ErrUnknownCommand = errors.New("unknown command")
)

// CommandResult is the reply to a successfully executed command.
type CommandResult struct {
	Command string         `json:"command"`
	AgentID string         `json:"agentId"`
	Status  domain.Status  `json:"status"`
	Metrics domain.Metrics `json:"metrics,omitempty"`
}

// Registry manages the agent fleet. It subscribes to every agent's event
// stream at creation time and republishes on its own bus, so observers watch
// one stream regardless of fleet size.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	subs   map[string]*bus.Subscription
	events *bus.Bus
	cache  store.SnapshotStore
	base   *logging.Logger
	log    *logging.Logger
}

// NewRegistry creates an empty registry sharing one snapshot cache.
func NewRegistry(cache store.SnapshotStore, log *logging.Logger) *Registry {
	return &Registry{
		agents: make(map[string]*Agent),
		subs:   make(map[string]*bus.Subscription),
		events: bus.New(log),
		cache:  cache,
		base:   log,
		log:    log.Sub("registry"),
	}
}

// FromConfig builds a registry with one agent per configured entry, each
// wired to its data source. Entries are created idle; the caller starts the
// autoStart ones.
func FromConfig(cfg *config.Config, cache store.SnapshotStore, log *logging.Logger) (*Registry, error) {
	r := NewRegistry(cache, log)
	cooldown := time.Duration(cfg.Agents.Defaults.CooldownMs) * time.Millisecond

	for _, e := range cfg.Agents.List {
		src := datasource.ForAgent(e, cfg.Integrations, log)
		_, err := r.Create(Config{
			ID:             e.ID,
			Name:           e.Name,
			Domain:         domain.Domain(e.Domain),
			SurveyInterval: time.Duration(e.SurveyIntervalMs) * time.Millisecond,
			TaskInterval:   time.Duration(e.TaskIntervalMs) * time.Millisecond,
			RetryAttempts:  e.RetryAttempts,
			Cooldown:       cooldown,
		}, src)
		if err != nil {
			return nil, fmt.Errorf("failed to create agent %q: %w", e.ID, err)
		}
	}
	return r, nil
}

// Create registers a new agent. The registry is unchanged when the id is
// already taken.
func (r *Registry) Create(cfg Config, source datasource.Source) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[cfg.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, cfg.ID)
	}

	a, err := New(cfg, source, r.cache, r.base)
	if err != nil {
		return nil, err
	}

	sub := a.Events().Subscribe(func(e domain.Event) {
		r.events.Publish(e)
	})
	r.agents[cfg.ID] = a
	r.subs[cfg.ID] = sub

	r.log.Info().
		Str("agent", cfg.ID).
		Str("domain", string(cfg.Domain)).
		Str("source", source.Name()).
		Msg("agent created")
	return a, nil
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return a, nil
}

// Remove stops the agent, detaches its listeners, and evicts it together
// with its cache entry. Returns false when the id is absent; idempotent.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	a, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	sub := r.subs[id]
	delete(r.agents, id)
	delete(r.subs, id)
	r.mu.Unlock()

	// The final statusChange still flows to observers; only then detach.
	a.Stop()
	a.Events().Unsubscribe(sub)
	r.cache.Discard(id)
	r.log.Info().Str("agent", id).Msg("agent removed")
	return true
}

// ExecuteCommand resolves the target agent and dispatches a lifecycle
// command. A config patch in Params is applied before dispatch. Restart's
// cooldown runs on the caller's goroutine.
func (r *Registry) ExecuteCommand(ctx context.Context, cmd domain.Command) (CommandResult, error) {
	a, err := r.Get(cmd.AgentID)
	if err != nil {
		return CommandResult{}, err
	}

	if len(cmd.Params) > 0 {
		var patch domain.ConfigPatch
		if err := json.Unmarshal(cmd.Params, &patch); err != nil {
			return CommandResult{}, fmt.Errorf("failed to parse command params: %w", err)
		}
		a.ApplyConfigPatch(patch)
	}

	res := CommandResult{Command: cmd.Command, AgentID: cmd.AgentID}
	switch cmd.Command {
	case domain.CommandStart:
		res.Status = a.Start()
	case domain.CommandStop:
		res.Status = a.Stop()
	case domain.CommandRestart:
		res.Status = a.Restart(ctx)
	case domain.CommandGetMetrics:
		res.Metrics = a.Metrics()
		res.Status = res.Metrics.Base().Status
	case domain.CommandSimulate:
		if err := a.Simulate(ctx); err != nil {
			return CommandResult{}, err
		}
		res.Metrics = a.Metrics()
		res.Status = res.Metrics.Base().Status
	default:
		return CommandResult{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
	return res, nil
}

// List returns all agents sorted by id.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		list = append(list, a)
	}
	slices.SortFunc(list, func(x, y *Agent) int {
		return strings.Compare(x.ID(), y.ID())
	})
	return list
}

// Events returns the registry-wide event bus.
func (r *Registry) Events() *bus.Bus { return r.events }

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// StopAll stops every agent. Used at shutdown.
func (r *Registry) StopAll() {
	agents := r.List()
	r.log.Info().Int("agents", len(agents)).Msg("stopping all agents")
	for _, a := range agents {
		a.Stop()
	}
}

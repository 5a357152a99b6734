// Package agent implements the lifecycle state machine behind every fleet
// member: two timers driving a data source, metrics folded under a per-agent
// lock, and a generation counter guarding late results.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AndrewDell/3AI/internal/bus"
	"github.com/AndrewDell/3AI/internal/datasource"
	"github.com/AndrewDell/3AI/internal/domain"
	"github.com/AndrewDell/3AI/internal/logging"
	"github.com/AndrewDell/3AI/internal/store"
)

// Defaults applied when a Config leaves fields unset.
const (
	DefaultSurveyInterval = 15 * time.Second
	DefaultTaskInterval   = 10 * time.Second
	DefaultRetryAttempts  = 3
	DefaultCooldown       = time.Second
)

// ErrNotActive is returned when a command needs a running agent.
var ErrNotActive = errors.New("agent not active")

// Config configures one agent. Interval changes applied through
// ApplyConfigPatch take effect on the next start; retryAttempts applies
// immediately.
type Config struct {
	ID             string
	Name           string
	Domain         domain.Domain
	SurveyInterval time.Duration
	TaskInterval   time.Duration
	RetryAttempts  int
	Cooldown       time.Duration
}

// Agent is a single fleet member. Status lives inside the metrics object;
// idle means no run loop, error means the loop is armed but every tick skips
// at the liveness guard until a restart.
type Agent struct {
	id     string
	name   string
	domain domain.Domain
	source datasource.Source
	cache  store.SnapshotStore
	events *bus.Bus
	log    *logging.Logger

	mu         sync.Mutex
	cfg        Config
	metrics    domain.Metrics
	generation uint64
	cancel     context.CancelFunc
}

// New creates an idle agent for the given domain.
func New(cfg Config, source datasource.Source, cache store.SnapshotStore, log *logging.Logger) (*Agent, error) {
	metrics := domain.NewMetrics(cfg.Domain)
	if metrics == nil {
		return nil, fmt.Errorf("unknown domain %q", cfg.Domain)
	}
	if cfg.SurveyInterval <= 0 {
		cfg.SurveyInterval = DefaultSurveyInterval
	}
	if cfg.TaskInterval <= 0 {
		cfg.TaskInterval = DefaultTaskInterval
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Agent{
		id:      cfg.ID,
		name:    cfg.Name,
		domain:  cfg.Domain,
		source:  source,
		cache:   cache,
		events:  bus.New(log),
		log:     log.Sub("agent." + cfg.ID),
		cfg:     cfg,
		metrics: metrics,
	}, nil
}

// ID returns the agent's identifier.
func (a *Agent) ID() string { return a.id }

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Domain returns the agent's business domain.
func (a *Agent) Domain() domain.Domain { return a.domain }

// SourceName returns the name of the data source backing this agent.
func (a *Agent) SourceName() string { return a.source.Name() }

// Events returns the agent's event bus.
func (a *Agent) Events() *bus.Bus { return a.events }

// Status returns the current lifecycle status.
func (a *Agent) Status() domain.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics.Base().Status
}

// Metrics returns a deep copy of the current metrics.
func (a *Agent) Metrics() domain.Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics.Clone()
}

// Config returns a copy of the agent's current configuration.
func (a *Agent) Config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Start moves an idle agent to active and arms both timers. Active and error
// agents are left untouched; error clears only through Restart, whose stop
// leg reaches idle first. A cached snapshot from the previous stop is
// restored wholesale before the transition.
func (a *Agent) Start() domain.Status {
	a.mu.Lock()
	base := a.metrics.Base()
	if base.Status != domain.StatusIdle {
		st := base.Status
		a.mu.Unlock()
		a.log.Debug().Str("status", string(st)).Msg("start ignored")
		return st
	}

	var events []domain.Event
	if restored, ok := a.cache.Restore(a.id); ok {
		a.metrics = restored
		base = a.metrics.Base()
		events = append(events, domain.NewEvent(domain.EventMetricsUpdate, a.id, a.domain, a.metrics.Clone()))
	}
	base.Status = domain.StatusActive
	base.ConsecutiveFailures = 0
	events = append(events, domain.NewEvent(domain.EventStatusChange, a.id, a.domain, domain.StatusChange{
		From: domain.StatusIdle,
		To:   domain.StatusActive,
	}))

	a.generation++
	gen := a.generation
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	surveyEvery, taskEvery := a.cfg.SurveyInterval, a.cfg.TaskInterval
	a.mu.Unlock()

	a.log.Info().
		Str("source", a.source.Name()).
		Int("surveyMs", int(surveyEvery.Milliseconds())).
		Int("taskMs", int(taskEvery.Milliseconds())).
		Msg("agent started")

	go a.run(ctx, gen, surveyEvery, taskEvery)
	a.publish(events)
	return domain.StatusActive
}

// Stop moves an active or error agent to idle, cancels the run loop, and
// captures a metrics snapshot so the next start resumes where this one left
// off. Idle agents are left untouched.
func (a *Agent) Stop() domain.Status {
	a.mu.Lock()
	base := a.metrics.Base()
	if base.Status == domain.StatusIdle {
		a.mu.Unlock()
		return domain.StatusIdle
	}

	from := base.Status
	a.generation++
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	base.Status = domain.StatusIdle
	a.cache.Capture(a.id, a.metrics)
	ev := domain.NewEvent(domain.EventStatusChange, a.id, a.domain, domain.StatusChange{
		From: from,
		To:   domain.StatusIdle,
	})
	a.mu.Unlock()

	a.log.Info().Str("from", string(from)).Msg("agent stopped")
	a.events.Publish(ev)
	return domain.StatusIdle
}

// Restart stops the agent, waits out the cooldown so in-flight work from the
// stopped period drains, and starts it again. This is the one path out of
// the error status. The wait is interruptible by ctx.
func (a *Agent) Restart(ctx context.Context) domain.Status {
	a.Stop()

	a.mu.Lock()
	cooldown := a.cfg.Cooldown
	a.mu.Unlock()

	select {
	case <-time.After(cooldown):
	case <-ctx.Done():
		return a.Status()
	}
	return a.Start()
}

// Simulate triggers one out-of-schedule task cycle. Only active agents
// simulate; source failures feed the normal failure transition rather than
// being returned.
func (a *Agent) Simulate(ctx context.Context) error {
	a.mu.Lock()
	if a.metrics.Base().Status != domain.StatusActive {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotActive, a.id)
	}
	gen := a.generation
	a.mu.Unlock()

	start := time.Now()
	sample, err := a.source.Task(ctx)
	a.commit(gen, sample, time.Since(start), err)
	return nil
}

// ApplyConfigPatch replaces timing fields with the patch's values. Nil or
// out-of-range fields are ignored.
func (a *Agent) ApplyConfigPatch(p domain.ConfigPatch) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p.SurveyIntervalMs != nil && *p.SurveyIntervalMs > 0 {
		a.cfg.SurveyInterval = time.Duration(*p.SurveyIntervalMs) * time.Millisecond
	}
	if p.TaskIntervalMs != nil && *p.TaskIntervalMs > 0 {
		a.cfg.TaskInterval = time.Duration(*p.TaskIntervalMs) * time.Millisecond
	}
	if p.RetryAttempts != nil && *p.RetryAttempts >= 1 {
		a.cfg.RetryAttempts = *p.RetryAttempts
	}
}

// run is the agent's single loop goroutine for one active period. One
// callback body completes before the next begins, so metrics mutation stays
// serialized the way the two-timer model expects.
func (a *Agent) run(ctx context.Context, gen uint64, surveyEvery, taskEvery time.Duration) {
	survey := time.NewTicker(surveyEvery)
	defer survey.Stop()
	task := time.NewTicker(taskEvery)
	defer task.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-survey.C:
			a.cycle(ctx, gen, false)
		case <-task.C:
			a.cycle(ctx, gen, true)
		}
	}
}

// cycle runs one timer callback: the source call happens without the lock,
// and commit re-checks the generation so a result from a stopped period is
// discarded.
func (a *Agent) cycle(ctx context.Context, gen uint64, task bool) {
	a.mu.Lock()
	if a.generation != gen || a.metrics.Base().Status != domain.StatusActive {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	start := time.Now()
	var sample domain.Sample
	var err error
	if task {
		sample, err = a.source.Task(ctx)
	} else {
		sample, err = a.source.Survey(ctx)
	}
	a.commit(gen, sample, time.Since(start), err)
}

func (a *Agent) commit(gen uint64, sample domain.Sample, elapsed time.Duration, callErr error) {
	a.mu.Lock()
	base := a.metrics.Base()
	if a.generation != gen || base.Status != domain.StatusActive {
		// Stale result from a previous period.
		a.mu.Unlock()
		return
	}

	now := time.Now()
	if callErr != nil {
		base.RecordFailure(now)
		events := []domain.Event{domain.NewEvent(domain.EventAgentError, a.id, a.domain, domain.AgentError{
			Message:             callErr.Error(),
			ConsecutiveFailures: base.ConsecutiveFailures,
		})}
		failures := base.ConsecutiveFailures
		threshold := a.cfg.RetryAttempts
		if failures >= threshold {
			base.Status = domain.StatusError
			events = append(events, domain.NewEvent(domain.EventStatusChange, a.id, a.domain, domain.StatusChange{
				From: domain.StatusActive,
				To:   domain.StatusError,
			}))
		}
		entered := base.Status == domain.StatusError
		a.mu.Unlock()

		a.log.Warn().Err(callErr).Int("consecutiveFailures", failures).Msg("activity step failed")
		if entered {
			a.log.Error().Int("retryAttempts", threshold).Msg("failure threshold reached, agent needs restart")
		}
		a.publish(events)
		return
	}

	if sample == nil {
		sample = domain.Sample{}
	}
	if _, ok := sample[domain.FieldResponseTime]; !ok {
		sample[domain.FieldResponseTime] = float64(elapsed.Milliseconds())
	}
	a.metrics.Apply(sample)
	base.RecordSuccess(now)
	ev := domain.NewEvent(domain.EventMetricsUpdate, a.id, a.domain, a.metrics.Clone())
	a.mu.Unlock()

	a.events.Publish(ev)
}

// publish dispatches events outside the agent lock so handlers may read the
// agent back.
func (a *Agent) publish(events []domain.Event) {
	for _, e := range events {
		a.events.Publish(e)
	}
}

package datasource

import (
	"context"
	"errors"
	"sync"

	"github.com/digitalocean/godo"
	"golang.org/x/oauth2"

	"github.com/AndrewDell/3AI/internal/config"
	"github.com/AndrewDell/3AI/internal/domain"
)

// DropletSource probes the DigitalOcean account behind the operations agent.
// Droplet inventory maps onto the operations metrics: running share becomes
// resourceUtilization, powered-off share drags serviceHealth, and fleet
// growth between task polls counts as executed tasks.
type DropletSource struct {
	mu        sync.Mutex
	client    *godo.Client
	lastTotal int
	primed    bool
}

// NewDropletSource creates a source authenticated with the configured token.
func NewDropletSource(cfg config.DigitalOceanConfig) *DropletSource {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	return &DropletSource{client: godo.NewClient(oauth2.NewClient(context.Background(), ts))}
}

// NewDropletSourceWithClient wires a preconfigured godo client. Tests use it
// with godo.SetBaseURL.
func NewDropletSourceWithClient(c *godo.Client) *DropletSource {
	return &DropletSource{client: c}
}

// Name returns the source name.
func (s *DropletSource) Name() string { return "digitalocean" }

// Survey reports the current fleet shape.
func (s *DropletSource) Survey(ctx context.Context) (domain.Sample, error) {
	droplets, err := s.listDroplets(ctx)
	if err != nil {
		return nil, err
	}
	return s.sample(droplets, false), nil
}

// Task reports the fleet shape plus the growth delta since the last task poll.
func (s *DropletSource) Task(ctx context.Context) (domain.Sample, error) {
	droplets, err := s.listDroplets(ctx)
	if err != nil {
		return nil, err
	}
	return s.sample(droplets, true), nil
}

func (s *DropletSource) listDroplets(ctx context.Context) ([]godo.Droplet, error) {
	opt := &godo.ListOptions{PerPage: 200}
	var all []godo.Droplet

	for {
		droplets, resp, err := s.client.Droplets.List(ctx, opt)
		if err != nil {
			var gerr *godo.ErrorResponse
			if errors.As(err, &gerr) {
				return nil, &SourceError{Source: "digitalocean", Code: gerr.Response.StatusCode, Message: gerr.Message}
			}
			return nil, &SourceError{Source: "digitalocean", Message: err.Error()}
		}
		all = append(all, droplets...)

		if resp.Links == nil || resp.Links.IsLastPage() {
			break
		}
		page, err := resp.Links.CurrentPage()
		if err != nil {
			break
		}
		opt.Page = page + 1
	}
	return all, nil
}

func (s *DropletSource) sample(droplets []godo.Droplet, withTask bool) domain.Sample {
	total := len(droplets)
	var active, off int
	for _, d := range droplets {
		switch d.Status {
		case "active":
			active++
		case "off", "archive":
			off++
		}
	}

	sample := domain.Sample{
		domain.FieldSuccessRate:     100,
		domain.FieldWorkflowsActive: float64(total),
	}
	if total > 0 {
		sample[domain.FieldResourceUtilization] = 100 * float64(active) / float64(total)
		sample[domain.FieldServiceHealth] = 100 * float64(total-off) / float64(total)
	}

	if withTask {
		s.mu.Lock()
		if s.primed && total > s.lastTotal {
			sample[domain.FieldTasksExecuted] = float64(total - s.lastTotal)
		}
		s.lastTotal = total
		s.primed = true
		s.mu.Unlock()
	}
	return sample
}

// Package datasource provides the produce-activity step behind every agent.
//
// A source answers two questions on the agent's two timers: Survey is the
// light status pulse (rates and gauges), Task is the full work step that also
// moves counters. Production deployments point agents at real integrations
// (CRM, DigitalOcean, IMAP); everything else runs on the synthetic source.
package datasource

import (
	"context"
	"fmt"

	"github.com/AndrewDell/3AI/internal/domain"
)

// Source is the interface all data sources must implement.
type Source interface {
	// Survey produces the light status sample for the survey timer.
	Survey(ctx context.Context) (domain.Sample, error)

	// Task produces the full activity sample for the task timer.
	Task(ctx context.Context) (domain.Sample, error)

	// Name returns the source name (e.g. "synthetic", "crm").
	Name() string
}

// SourceError is returned when a data source fails.
type SourceError struct {
	Source  string
	Message string
	Code    int // HTTP-like status code (401, 429, 500, etc.)
}

func (e *SourceError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Source, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

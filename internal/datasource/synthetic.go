package datasource

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/AndrewDell/3AI/internal/domain"
)

// Bounds is the inclusive range a synthetic field is drawn from. Whole
// fields are rounded to integers (counter deltas, gauge counts).
type Bounds struct {
	Min   float64
	Max   float64
	Whole bool
}

// surveyBounds are the fields a survey pulse draws, per domain.
var surveyBounds = map[domain.Domain]map[domain.Field]Bounds{
	domain.DomainSales: {
		domain.FieldSuccessRate:    {Min: 85, Max: 100},
		domain.FieldConversionRate: {Min: 10, Max: 40},
		domain.FieldPipelineValue:  {Min: 50000, Max: 500000},
	},
	domain.DomainMarketing: {
		domain.FieldSuccessRate:     {Min: 85, Max: 100},
		domain.FieldEngagementRate:  {Min: 2, Max: 12},
		domain.FieldCampaignsActive: {Min: 1, Max: 8, Whole: true},
	},
	domain.DomainSuccess: {
		domain.FieldSuccessRate:        {Min: 85, Max: 100},
		domain.FieldHealthScore:        {Min: 60, Max: 95},
		domain.FieldChurnRate:          {Min: 1, Max: 6},
		domain.FieldCustomersMonitored: {Min: 40, Max: 60, Whole: true},
	},
	domain.DomainExecutive: {
		domain.FieldSuccessRate:      {Min: 85, Max: 100},
		domain.FieldEmailsPending:    {Min: 0, Max: 25, Whole: true},
		domain.FieldPendingApprovals: {Min: 0, Max: 6, Whole: true},
	},
	domain.DomainOperations: {
		domain.FieldSuccessRate:         {Min: 85, Max: 100},
		domain.FieldResourceUtilization: {Min: 30, Max: 90},
		domain.FieldServiceHealth:       {Min: 70, Max: 100},
		domain.FieldWorkflowsActive:     {Min: 3, Max: 12, Whole: true},
	},
}

// taskExtraBounds are the counter deltas a task step draws on top of the
// survey fields.
var taskExtraBounds = map[domain.Domain]map[domain.Field]Bounds{
	domain.DomainSales: {
		domain.FieldLeadsGenerated: {Min: 0, Max: 3, Whole: true},
		domain.FieldLeadsQualified: {Min: 0, Max: 2, Whole: true},
		domain.FieldDealsClosed:    {Min: 0, Max: 1, Whole: true},
	},
	domain.DomainMarketing: {
		domain.FieldContentGenerated: {Min: 0, Max: 4, Whole: true},
		domain.FieldLeadsAttributed:  {Min: 0, Max: 5, Whole: true},
	},
	domain.DomainSuccess: {
		domain.FieldTicketsResolved:   {Min: 0, Max: 4, Whole: true},
		domain.FieldUpsellsIdentified: {Min: 0, Max: 2, Whole: true},
	},
	domain.DomainExecutive: {
		domain.FieldEmailsProcessed:   {Min: 0, Max: 8, Whole: true},
		domain.FieldReportsGenerated:  {Min: 0, Max: 1, Whole: true},
		domain.FieldMeetingsScheduled: {Min: 0, Max: 2, Whole: true},
	},
	domain.DomainOperations: {
		domain.FieldTasksExecuted:     {Min: 0, Max: 6, Whole: true},
		domain.FieldIncidentsResolved: {Min: 0, Max: 1, Whole: true},
	},
}

// SurveyBounds returns the survey field ranges for a domain.
func SurveyBounds(d domain.Domain) map[domain.Field]Bounds {
	out := make(map[domain.Field]Bounds, len(surveyBounds[d]))
	for f, b := range surveyBounds[d] {
		out[f] = b
	}
	return out
}

// TaskBounds returns the task field ranges for a domain: every survey field
// plus the domain's counter deltas.
func TaskBounds(d domain.Domain) map[domain.Field]Bounds {
	out := SurveyBounds(d)
	for f, b := range taskExtraBounds[d] {
		out[f] = b
	}
	return out
}

// Synthetic draws bounded random samples for one domain. It is the default
// source and the only one used by the demo fleet.
type Synthetic struct {
	mu      sync.Mutex
	domain  domain.Domain
	rng     *rand.Rand
	failFor int
}

// NewSynthetic creates a synthetic source. A zero seed picks one from the
// clock; tests pass a fixed seed for reproducible draws.
func NewSynthetic(d domain.Domain, seed int64) *Synthetic {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Synthetic{domain: d, rng: rand.New(rand.NewSource(seed))}
}

// Name returns the source name.
func (s *Synthetic) Name() string { return "synthetic" }

// Survey draws the light status sample.
func (s *Synthetic) Survey(_ context.Context) (domain.Sample, error) {
	return s.produce(SurveyBounds(s.domain))
}

// Task draws the full activity sample.
func (s *Synthetic) Task(_ context.Context) (domain.Sample, error) {
	return s.produce(TaskBounds(s.domain))
}

// FailFor makes the next n produce calls return an error, then recover.
func (s *Synthetic) FailFor(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor = n
}

func (s *Synthetic) produce(bounds map[domain.Field]Bounds) (domain.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFor > 0 {
		s.failFor--
		return nil, &SourceError{Source: "synthetic", Message: "injected failure"}
	}

	sample := make(domain.Sample, len(bounds))
	for f, b := range bounds {
		sample[f] = b.roll(s.rng)
	}
	return sample, nil
}

func (b Bounds) roll(rng *rand.Rand) float64 {
	v := b.Min + rng.Float64()*(b.Max-b.Min)
	if b.Whole {
		v = math.Round(v)
	}
	return v
}
